package triage

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/athishkirthikjd/MedTech-AI/internal/platform/ai"
)

func newTestClassifier(client ai.Client) *Service {
	return NewService(client, newTestEngine(), zerolog.Nop())
}

func checkRequest(text string) SymptomCheckRequest {
	return SymptomCheckRequest{SymptomText: text}
}

func TestClassifyUsesModelResult(t *testing.T) {
	mock := ai.NewMockClient()
	mock.JSONResponse = map[string]any{
		"risk_level":       "low",
		"confidence":       0.85,
		"suggested_action": "self-care",
		"reasoning":        "Sounds like a mild cold, rest and fluids should help.",
		"self_care_tips":   []any{"rest", "drink fluids"},
	}
	svc := newTestClassifier(mock)

	got, err := svc.Classify(context.Background(), checkRequest("I have a runny nose and mild cough"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RiskLevel != RiskLow {
		t.Errorf("risk = %s, want low", got.RiskLevel)
	}
	if got.SuggestedAction != ActionSelfCare {
		t.Errorf("action = %s, want self-care", got.SuggestedAction)
	}
	if got.SafetyOverrideApplied {
		t.Error("no override expected for benign text")
	}
	if got.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", got.Confidence)
	}
	if got.Disclaimer != Disclaimer {
		t.Errorf("disclaimer = %q", got.Disclaimer)
	}
	if len(mock.AnalyzeCalls) != 1 {
		t.Fatalf("analyze calls = %d, want 1", len(mock.AnalyzeCalls))
	}
}

func TestClassifyEmergencyOverridesModel(t *testing.T) {
	mock := ai.NewMockClient()
	mock.JSONResponse = map[string]any{
		"risk_level":       "low",
		"confidence":       0.95,
		"suggested_action": "self-care",
		"reasoning":        "Probably just heartburn, nothing to worry about.",
	}
	svc := newTestClassifier(mock)

	got, err := svc.Classify(context.Background(), checkRequest("I'm having severe chest pain and can't breathe"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
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
		t.Error("expected override flag")
	}
}

func TestClassifyHighRiskUpgrade(t *testing.T) {
	mock := ai.NewMockClient()
	mock.JSONResponse = map[string]any{
		"risk_level":       "low",
		"confidence":       0.8,
		"suggested_action": "self-care",
		"reasoning":        "Likely a seasonal infection that resolves on its own.",
	}
	svc := newTestClassifier(mock)

	got, err := svc.Classify(context.Background(), checkRequest("very high fever and severe headache"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RiskLevel != RiskMedium {
		t.Errorf("risk = %s, want medium", got.RiskLevel)
	}
	if got.SuggestedAction != ActionBookAppointment {
		t.Errorf("action = %s, want book-appointment", got.SuggestedAction)
	}
	if !got.SafetyOverrideApplied {
		t.Error("expected override flag")
	}
}

func TestClassifyVulnerableAgeUpgrade(t *testing.T) {
	mock := ai.NewMockClient()
	mock.JSONResponse = map[string]any{
		"risk_level":       "low",
		"confidence":       0.8,
		"suggested_action": "self-care",
		"reasoning":        "Mild symptoms that usually pass without treatment.",
	}
	svc := newTestClassifier(mock)

	req := checkRequest("fever and some pain")
	req.Age = intPtr(85)
	req.Severity = intPtr(7)

	got, err := svc.Classify(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RiskLevel != RiskHigh {
		t.Errorf("risk = %s, want high", got.RiskLevel)
	}
	if got.SuggestedAction != ActionBookAppointment {
		t.Errorf("action = %s, want book-appointment", got.SuggestedAction)
	}
	if !got.SafetyOverrideApplied {
		t.Error("expected override flag")
	}
}

func TestClassifyFallbackWhenUnavailable(t *testing.T) {
	mock := &ai.MockClient{Unavailable: true}
	svc := newTestClassifier(mock)

	got, err := svc.Classify(context.Background(), checkRequest("dull ache behind the eyes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RiskLevel == RiskLow {
		t.Error("fallback must never be low risk")
	}
	if got.RiskLevel != RiskMedium {
		t.Errorf("risk = %s, want medium", got.RiskLevel)
	}
	if got.SuggestedAction != ActionBookAppointment {
		t.Errorf("action = %s, want book-appointment", got.SuggestedAction)
	}
	if got.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", got.Confidence)
	}
	if len(mock.AnalyzeCalls) != 0 {
		t.Error("unavailable client should not be called")
	}
}

func TestClassifyFallbackWhenModelFails(t *testing.T) {
	mock := &ai.MockClient{ShouldFail: true}
	svc := newTestClassifier(mock)

	got, err := svc.Classify(context.Background(), checkRequest("dull ache behind the eyes"))
	if err != nil {
		t.Fatalf("classifier must absorb model failures, got error: %v", err)
	}
	if got.RiskLevel != RiskMedium {
		t.Errorf("risk = %s, want medium fallback", got.RiskLevel)
	}
	if len(got.WarningSigns) == 0 {
		t.Error("fallback should carry warning signs")
	}
}

func TestClassifyFallbackWhenPayloadEmpty(t *testing.T) {
	mock := ai.NewMockClient() // no scripted JSONResponse
	svc := newTestClassifier(mock)

	got, err := svc.Classify(context.Background(), checkRequest("dull ache behind the eyes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RiskLevel != RiskMedium || got.Confidence != 0.5 {
		t.Errorf("empty payload should fall back, got %+v", got)
	}
}

func TestClassifyEmergencyDespiteUnavailableModel(t *testing.T) {
	mock := &ai.MockClient{Unavailable: true}
	svc := newTestClassifier(mock)

	got, err := svc.Classify(context.Background(), checkRequest("my son swallowed poison"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RiskLevel != RiskEmergency || got.SuggestedAction != ActionEmergencySOS {
		t.Errorf("override must apply to the fallback too, got %s/%s", got.RiskLevel, got.SuggestedAction)
	}
	if got.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", got.Confidence)
	}
}

func TestClassifyCoercesMalformedPayload(t *testing.T) {
	mock := ai.NewMockClient()
	mock.JSONResponse = map[string]any{
		"risk_level":       "CATASTROPHIC",
		"confidence":       "very sure",
		"suggested_action": 42,
		"reasoning":        "",
		"possible_conditions": []any{
			"migraine", 7, map[string]any{"nested": true},
		},
	}
	svc := newTestClassifier(mock)

	got, err := svc.Classify(context.Background(), checkRequest("dull ache behind the eyes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RiskLevel != RiskMedium {
		t.Errorf("unknown risk should default to medium, got %s", got.RiskLevel)
	}
	if got.SuggestedAction != ActionBookAppointment {
		t.Errorf("unknown action should default to book-appointment, got %s", got.SuggestedAction)
	}
	if got.Confidence != 0.7 {
		t.Errorf("unparseable confidence should default to 0.7, got %v", got.Confidence)
	}
	if got.Reasoning != "Please consult a healthcare professional." {
		t.Errorf("empty reasoning should get the default, got %q", got.Reasoning)
	}
	if len(got.PossibleConditions) != 1 || got.PossibleConditions[0] != "migraine" {
		t.Errorf("non-string entries should be dropped, got %v", got.PossibleConditions)
	}
}

func TestClassifyCoercionKeepsRiskActionConsistent(t *testing.T) {
	mock := ai.NewMockClient()
	mock.JSONResponse = map[string]any{
		"risk_level":       "emergency",
		"confidence":       0.9,
		"suggested_action": "self-care",
		"reasoning":        "This needs immediate emergency attention right now.",
	}
	svc := newTestClassifier(mock)

	got, err := svc.Classify(context.Background(), checkRequest("feeling strange after new medication"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RiskLevel != RiskEmergency || got.SuggestedAction != ActionEmergencySOS {
		t.Errorf("emergency risk must force sos action, got %s/%s", got.RiskLevel, got.SuggestedAction)
	}
}

func TestClassifyCoercionFixesLowWithSOS(t *testing.T) {
	mock := ai.NewMockClient()
	mock.JSONResponse = map[string]any{
		"risk_level":       "low",
		"confidence":       0.9,
		"suggested_action": "emergency-sos",
		"reasoning":        "Minor irritation that should settle by itself soon.",
	}
	svc := newTestClassifier(mock)

	got, err := svc.Classify(context.Background(), checkRequest("itchy elbow rash since monday"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RiskLevel != RiskLow || got.SuggestedAction != ActionSelfCare {
		t.Errorf("low risk with sos action must become self-care, got %s/%s", got.RiskLevel, got.SuggestedAction)
	}
}

func TestClassifySubstitutesSafeFallbackOnValidationFailure(t *testing.T) {
	// A reasoning that is present but below the minimum length survives
	// coercion (only empty strings get the default) and then fails the
	// post-override validation, which must substitute the safe fallback
	// rather than return the invalid assessment.
	mock := ai.NewMockClient()
	mock.JSONResponse = map[string]any{
		"risk_level":       "low",
		"confidence":       0.9,
		"suggested_action": "self-care",
		"reasoning":        "ok",
	}
	svc := newTestClassifier(mock)

	got, err := svc.Classify(context.Background(), checkRequest("itchy elbow rash since monday"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RiskLevel != RiskMedium || got.SuggestedAction != ActionBookAppointment {
		t.Errorf("safe fallback expected, got %s/%s", got.RiskLevel, got.SuggestedAction)
	}
	if len(got.Reasoning) < 10 {
		t.Errorf("safe fallback reasoning too short: %q", got.Reasoning)
	}
}

func TestClassifyClampsConfidence(t *testing.T) {
	mock := ai.NewMockClient()
	mock.JSONResponse = map[string]any{
		"risk_level":       "medium",
		"confidence":       7.5,
		"suggested_action": "book-appointment",
		"reasoning":        "A clinician should look at this within a few days.",
	}
	svc := newTestClassifier(mock)

	got, err := svc.Classify(context.Background(), checkRequest("persistent cough for three weeks"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", got.Confidence)
	}
}

func TestClassifyRejectsInvalidRequests(t *testing.T) {
	svc := newTestClassifier(ai.NewMockClient())

	cases := []struct {
		name string
		req  SymptomCheckRequest
	}{
		{"empty text", SymptomCheckRequest{}},
		{"too short", checkRequest("hi")},
		{"whitespace only", checkRequest("    ")},
		{"too long", checkRequest(strings.Repeat("a", 2001))},
		{"negative age", func() SymptomCheckRequest { r := checkRequest("valid symptom text"); r.Age = intPtr(-1); return r }()},
		{"age too high", func() SymptomCheckRequest { r := checkRequest("valid symptom text"); r.Age = intPtr(151); return r }()},
		{"severity zero", func() SymptomCheckRequest { r := checkRequest("valid symptom text"); r.Severity = intPtr(0); return r }()},
		{"severity too high", func() SymptomCheckRequest { r := checkRequest("valid symptom text"); r.Severity = intPtr(11); return r }()},
		{"negative duration", func() SymptomCheckRequest { r := checkRequest("valid symptom text"); r.DurationHours = intPtr(-5); return r }()},
	}
	for _, tc := range cases {
		if _, err := svc.Classify(context.Background(), tc.req); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestClassifyPassesContextToModel(t *testing.T) {
	mock := ai.NewMockClient()
	mock.JSONResponse = map[string]any{
		"risk_level":       "medium",
		"confidence":       0.8,
		"suggested_action": "book-appointment",
		"reasoning":        "A clinician should review these symptoms promptly.",
	}
	svc := newTestClassifier(mock)

	req := checkRequest("shooting pains in my lower back")
	req.Age = intPtr(45)
	req.Gender = "male"
	req.Severity = intPtr(6)
	req.ExistingConditions = []string{"arthritis"}

	if _, err := svc.Classify(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.AnalyzeCalls) != 1 {
		t.Fatalf("analyze calls = %d, want 1", len(mock.AnalyzeCalls))
	}
	call := mock.AnalyzeCalls[0]
	if call.SymptomText != "shooting pains in my lower back" {
		t.Errorf("symptom text = %q", call.SymptomText)
	}
	if call.Context == nil || call.Context.Age == nil || *call.Context.Age != 45 {
		t.Errorf("age not passed through: %+v", call.Context)
	}
	if call.Context.Gender != "male" || len(call.Context.ExistingConditions) != 1 {
		t.Errorf("context not passed through: %+v", call.Context)
	}
}

func TestChat(t *testing.T) {
	mock := ai.NewMockClient()
	mock.TextResponse = "Staying hydrated helps with most mild headaches."
	svc := newTestClassifier(mock)

	reply, err := svc.Chat(context.Background(), "any tips for headaches?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != mock.TextResponse {
		t.Errorf("reply = %q", reply)
	}
	if len(mock.TextCalls) != 1 {
		t.Fatalf("text calls = %d, want 1", len(mock.TextCalls))
	}
	if !strings.Contains(mock.TextCalls[0].SystemPrompt, "MedBot") {
		t.Error("chat should use the MedBot system prompt")
	}
}

func TestChatUnavailable(t *testing.T) {
	svc := newTestClassifier(&ai.MockClient{Unavailable: true})
	if _, err := svc.Chat(context.Background(), "hello"); err == nil {
		t.Fatal("expected error when model unavailable")
	}
}
