package triage

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestEngine() *SafetyEngine {
	return NewSafetyEngine(zerolog.Nop())
}

func intPtr(v int) *int { return &v }

// lowAssessment is a typical benign model result used as override input.
func lowAssessment() Assessment {
	return Assessment{
		RiskLevel:          RiskLow,
		Confidence:         0.9,
		SuggestedAction:    ActionSelfCare,
		Reasoning:          "Your symptoms are consistent with a mild viral infection.",
		PossibleConditions: []string{"common cold"},
		SelfCareTips:       []string{"rest", "fluids"},
		Disclaimer:         Disclaimer,
		AnalyzedAt:         time.Now().UTC(),
	}
}

func TestEmergencyKeywordOverridesEverything(t *testing.T) {
	eng := newTestEngine()

	got := eng.ApplyOverrides("I'm having severe chest pain and can't breathe", lowAssessment(), nil, nil)

	if got.RiskLevel != RiskEmergency {
		t.Errorf("risk = %s, want emergency", got.RiskLevel)
	}
	if got.SuggestedAction != ActionEmergencySOS {
		t.Errorf("action = %s, want emergency-sos", got.SuggestedAction)
	}
	if got.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", got.Confidence)
	}
	if !got.SafetyOverrideApplied {
		t.Error("expected override flag to be set")
	}
	if !strings.Contains(got.SafetyOverrideReason, "chest pain") {
		t.Errorf("override reason %q does not mention the matched phrase", got.SafetyOverrideReason)
	}
	if !strings.Contains(got.Reasoning, "chest pain") {
		t.Errorf("reasoning %q does not mention the matched phrase", got.Reasoning)
	}
}

func TestEmergencyOverrideIsCaseInsensitive(t *testing.T) {
	eng := newTestEngine()
	got := eng.ApplyOverrides("SUDDEN NUMBNESS in my left arm", lowAssessment(), nil, nil)
	if got.RiskLevel != RiskEmergency {
		t.Errorf("risk = %s, want emergency", got.RiskLevel)
	}
}

func TestEmergencyOverridePreservesConditions(t *testing.T) {
	eng := newTestEngine()
	in := lowAssessment()
	in.PossibleConditions = []string{"angina", "myocardial infarction"}
	in.RecommendedSpecialists = []string{"cardiologist"}
	in.SelfCareTips = []string{"rest"}

	got := eng.ApplyOverrides("crushing chest pressure and chest pain", in, nil, nil)

	if !reflect.DeepEqual(got.PossibleConditions, in.PossibleConditions) {
		t.Errorf("possible conditions = %v, want %v", got.PossibleConditions, in.PossibleConditions)
	}
	if got.RecommendedSpecialists != nil {
		t.Errorf("specialists should be dropped, got %v", got.RecommendedSpecialists)
	}
	if got.SelfCareTips != nil {
		t.Errorf("self-care tips should be dropped, got %v", got.SelfCareTips)
	}
	if len(got.WarningSigns) != 2 {
		t.Errorf("warning signs = %v, want the two standard emergency warnings", got.WarningSigns)
	}
}

func TestEmergencyOverrideReportsFirstMatch(t *testing.T) {
	eng := newTestEngine()
	// "chest pain" precedes "overdose" in the lexicon, so it is the
	// reported phrase even though both occur.
	got := eng.ApplyOverrides("took an overdose and now chest pain", lowAssessment(), nil, nil)
	if !strings.Contains(got.SafetyOverrideReason, "chest pain") {
		t.Errorf("override reason %q, want first lexicon match 'chest pain'", got.SafetyOverrideReason)
	}
}

func TestEmergencyOverrideIsIdempotent(t *testing.T) {
	eng := newTestEngine()
	text := "my father is unresponsive and not breathing"

	once := eng.ApplyOverrides(text, lowAssessment(), intPtr(62), intPtr(10))
	twice := eng.ApplyOverrides(text, once, intPtr(62), intPtr(10))

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("override not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestHighRiskKeywordUpgradesLow(t *testing.T) {
	eng := newTestEngine()
	in := lowAssessment()
	originalReasoning := in.Reasoning

	got := eng.ApplyOverrides("very high fever and severe headache", in, nil, nil)

	if got.RiskLevel != RiskMedium {
		t.Errorf("risk = %s, want medium", got.RiskLevel)
	}
	if got.SuggestedAction != ActionBookAppointment {
		t.Errorf("action = %s, want book-appointment", got.SuggestedAction)
	}
	if !got.SafetyOverrideApplied {
		t.Error("expected override flag to be set")
	}
	if !strings.Contains(got.SafetyOverrideReason, "high fever") {
		t.Errorf("override reason %q does not name the matched phrase", got.SafetyOverrideReason)
	}
	if !strings.HasPrefix(got.Reasoning, originalReasoning) {
		t.Errorf("reasoning should keep the original text, got %q", got.Reasoning)
	}
	if !strings.Contains(got.Reasoning, "warrants professional medical evaluation") {
		t.Errorf("reasoning %q missing the appended note", got.Reasoning)
	}
}

func TestHighRiskKeywordLeavesMediumAlone(t *testing.T) {
	eng := newTestEngine()
	in := lowAssessment()
	in.RiskLevel = RiskMedium
	in.SuggestedAction = ActionBookAppointment

	got := eng.ApplyOverrides("coughing blood since yesterday", in, nil, nil)

	if got.RiskLevel != RiskMedium {
		t.Errorf("risk = %s, want medium unchanged", got.RiskLevel)
	}
	if got.SafetyOverrideApplied {
		t.Error("override flag should not be set for a non-low assessment")
	}
}

func TestSeverityUpgradesToHigh(t *testing.T) {
	eng := newTestEngine()

	got := eng.ApplyOverrides("stomach cramps all day", lowAssessment(), nil, intPtr(9))

	if got.RiskLevel != RiskHigh {
		t.Errorf("risk = %s, want high", got.RiskLevel)
	}
	if got.SuggestedAction != ActionBookAppointment {
		t.Errorf("action = %s, want book-appointment", got.SuggestedAction)
	}
	if got.SafetyOverrideReason != "Elevated risk due to severity or patient demographics" {
		t.Errorf("override reason = %q", got.SafetyOverrideReason)
	}
}

func TestSeverityUpgradeAppliesToMedium(t *testing.T) {
	eng := newTestEngine()
	in := lowAssessment()
	in.RiskLevel = RiskMedium
	in.SuggestedAction = ActionBookAppointment

	got := eng.ApplyOverrides("stomach cramps all day", in, nil, intPtr(10))
	if got.RiskLevel != RiskHigh {
		t.Errorf("risk = %s, want high", got.RiskLevel)
	}
}

func TestSeverityDoesNotDowngradeHigh(t *testing.T) {
	eng := newTestEngine()
	in := lowAssessment()
	in.RiskLevel = RiskHigh
	in.SuggestedAction = ActionBookAppointment

	got := eng.ApplyOverrides("stomach cramps all day", in, nil, intPtr(9))
	if got.RiskLevel != RiskHigh || got.SafetyOverrideApplied {
		t.Errorf("high risk should pass through untouched, got %+v", got)
	}
}

func TestVulnerableAgeUpgrades(t *testing.T) {
	eng := newTestEngine()

	cases := []struct {
		name string
		age  int
		text string
		want RiskLevel
	}{
		{"elderly with fever", 85, "fever and some pain", RiskHigh},
		{"infant with vomiting", 1, "vomiting after feeding", RiskHigh},
		{"newborn with fever", 0, "fever since this morning", RiskHigh},
		{"elderly without marker", 85, "itchy elbow rash", RiskLow},
		{"adult with fever", 40, "fever and some pain", RiskLow},
	}
	for _, tc := range cases {
		got := eng.ApplyOverrides(tc.text, lowAssessment(), intPtr(tc.age), nil)
		if got.RiskLevel != tc.want {
			t.Errorf("%s: risk = %s, want %s", tc.name, got.RiskLevel, tc.want)
		}
	}
}

func TestEmergencyWinsOverOtherRules(t *testing.T) {
	eng := newTestEngine()
	// Text matches the emergency, high-risk and vulnerable lexicons at
	// once; the emergency rule must be terminal.
	got := eng.ApplyOverrides("high fever, severe pain and difficulty breathing", lowAssessment(), intPtr(85), intPtr(10))

	if got.RiskLevel != RiskEmergency {
		t.Errorf("risk = %s, want emergency", got.RiskLevel)
	}
	if got.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", got.Confidence)
	}
	if !strings.HasPrefix(got.SafetyOverrideReason, "Emergency keyword detected") {
		t.Errorf("override reason = %q, want the emergency reason", got.SafetyOverrideReason)
	}
}

func TestLaterRuleReplacesOverrideReason(t *testing.T) {
	eng := newTestEngine()
	// Both the high-risk rule and the severity rule fire; the severity
	// rule runs last, so its reason is the one reported while the
	// appended reasoning note from the high-risk rule survives.
	got := eng.ApplyOverrides("high fever for two days", lowAssessment(), nil, intPtr(9))

	if got.RiskLevel != RiskHigh {
		t.Errorf("risk = %s, want high", got.RiskLevel)
	}
	if got.SafetyOverrideReason != "Elevated risk due to severity or patient demographics" {
		t.Errorf("override reason = %q, want the severity reason", got.SafetyOverrideReason)
	}
	if !strings.Contains(got.Reasoning, "high fever") {
		t.Errorf("reasoning lost the high-risk note: %q", got.Reasoning)
	}
}

func TestNoOverrideForBenignText(t *testing.T) {
	eng := newTestEngine()
	in := lowAssessment()

	got := eng.ApplyOverrides("I have a runny nose and mild cough", in, intPtr(30), intPtr(2))

	if !reflect.DeepEqual(got, in) {
		t.Errorf("benign input should pass through unchanged:\ngot:  %+v\nwant: %+v", got, in)
	}
}

func TestValidate(t *testing.T) {
	eng := newTestEngine()

	cases := []struct {
		name string
		a    Assessment
		want bool
	}{
		{"valid low", lowAssessment(), true},
		{"emergency with sos", Assessment{RiskLevel: RiskEmergency, SuggestedAction: ActionEmergencySOS, Confidence: 1.0, Reasoning: "Call emergency services now."}, true},
		{"emergency without sos", Assessment{RiskLevel: RiskEmergency, SuggestedAction: ActionBookAppointment, Confidence: 1.0, Reasoning: "Call emergency services now."}, false},
		{"confidence too high", Assessment{RiskLevel: RiskLow, SuggestedAction: ActionSelfCare, Confidence: 1.2, Reasoning: "Rest and drink fluids today."}, false},
		{"confidence negative", Assessment{RiskLevel: RiskLow, SuggestedAction: ActionSelfCare, Confidence: -0.1, Reasoning: "Rest and drink fluids today."}, false},
		{"reasoning too short", Assessment{RiskLevel: RiskLow, SuggestedAction: ActionSelfCare, Confidence: 0.9, Reasoning: "ok"}, false},
		{"reasoning missing", Assessment{RiskLevel: RiskLow, SuggestedAction: ActionSelfCare, Confidence: 0.9}, false},
	}
	for _, tc := range cases {
		if got := eng.Validate(tc.a); got != tc.want {
			t.Errorf("%s: Validate = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestLexiconsAreNormalized(t *testing.T) {
	lists := map[string][]string{
		"emergency":  emergencyKeywords,
		"high-risk":  highRiskKeywords,
		"low-risk":   lowRiskKeywords,
		"vulnerable": vulnerableSymptomKeywords,
	}
	for name, list := range lists {
		seen := make(map[string]bool)
		for _, kw := range list {
			if kw == "" {
				t.Errorf("%s lexicon contains an empty phrase", name)
			}
			if kw != strings.ToLower(kw) {
				t.Errorf("%s lexicon phrase %q is not lowercase", name, kw)
			}
			if kw != strings.TrimSpace(kw) {
				t.Errorf("%s lexicon phrase %q has surrounding whitespace", name, kw)
			}
			if seen[kw] {
				t.Errorf("%s lexicon phrase %q appears twice", name, kw)
			}
			seen[kw] = true
		}
	}
}
