package triage

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// SafetyEngine applies the hard-coded overrides that cap every
// assessment before it reaches a user. Model output never bypasses it:
// the classifier routes both real and fallback assessments through
// ApplyOverrides, and the rules here always win over the model.
//
// The engine is stateless apart from its logger and is safe for
// unlimited concurrent use.
type SafetyEngine struct {
	logger zerolog.Logger
}

// NewSafetyEngine returns an engine that logs override decisions to
// the given logger.
func NewSafetyEngine(logger zerolog.Logger) *SafetyEngine {
	return &SafetyEngine{logger: logger}
}

// ApplyOverrides runs the safety rules over an assessment and returns
// the possibly-upgraded result. Rules run in order of severity:
//
//  1. An emergency keyword in the symptom text replaces the assessment
//     wholesale with an emergency result and stops further processing.
//  2. A high-risk keyword upgrades a low risk to medium.
//  3. Very high reported severity (9+), or a vulnerable age (under 2
//     or over 80) combined with a vulnerable-symptom keyword, upgrades
//     low or medium risk to high.
//
// Overrides only ever raise risk, never lower it. The function is
// idempotent: applying it to its own output changes nothing.
func (e *SafetyEngine) ApplyOverrides(symptomText string, a Assessment, age, severity *int) Assessment {
	if kw, ok := matchKeyword(symptomText, emergencyKeywords); ok {
		e.logger.Warn().
			Str("keyword", kw).
			Str("original_risk", string(a.RiskLevel)).
			Str("original_action", string(a.SuggestedAction)).
			Msg("safety override: emergency keyword detected")

		return Assessment{
			RiskLevel: RiskEmergency,
			// Safety rules are absolute.
			Confidence:      1.0,
			SuggestedAction: ActionEmergencySOS,
			Reasoning: fmt.Sprintf("Your symptoms indicate a potential emergency. "+
				"This assessment detected: %s. "+
				"Please seek immediate medical attention or call emergency services.", kw),
			PossibleConditions:    a.PossibleConditions,
			WarningSigns:          []string{"This is a potential medical emergency", "Do not delay seeking care"},
			SafetyOverrideApplied: true,
			SafetyOverrideReason:  fmt.Sprintf("Emergency keyword detected: %s", kw),
			Disclaimer:            Disclaimer,
			AnalyzedAt:            a.AnalyzedAt,
		}
	}

	if kw, ok := matchKeyword(symptomText, highRiskKeywords); ok && a.RiskLevel == RiskLow {
		e.logger.Warn().
			Str("keyword", kw).
			Msg("safety override: upgrading risk from low to medium")

		a.RiskLevel = RiskMedium
		a.SuggestedAction = ActionBookAppointment
		a.SafetyOverrideApplied = true
		a.SafetyOverrideReason = fmt.Sprintf("High-risk indicator detected: %s", kw)
		a.Reasoning += fmt.Sprintf(" Note: Your symptoms mention '%s' which warrants "+
			"professional medical evaluation.", kw)
	}

	if vulnerableRisk(symptomText, age, severity) && (a.RiskLevel == RiskLow || a.RiskLevel == RiskMedium) {
		e.logger.Warn().Msg("safety override: upgrading risk for severity or age indicators")

		a.RiskLevel = RiskHigh
		a.SuggestedAction = ActionBookAppointment
		a.SafetyOverrideApplied = true
		a.SafetyOverrideReason = "Elevated risk due to severity or patient demographics"
	}

	return a
}

// Validate checks the structural invariants an assessment must satisfy
// before it may be returned to a user. It reports rather than repairs;
// the classifier substitutes a safe fallback when it returns false.
func (e *SafetyEngine) Validate(a Assessment) bool {
	if a.RiskLevel == RiskEmergency && a.SuggestedAction != ActionEmergencySOS {
		e.logger.Error().Msg("assessment validation failed: emergency risk without emergency action")
		return false
	}
	if a.Confidence < 0.0 || a.Confidence > 1.0 {
		e.logger.Error().Float64("confidence", a.Confidence).Msg("assessment validation failed: confidence out of range")
		return false
	}
	if len(a.Reasoning) < 10 {
		e.logger.Error().Msg("assessment validation failed: missing or insufficient reasoning")
		return false
	}
	return true
}

// vulnerableRisk reports whether the severity/age rule fires: reported
// severity of 9 or above, or a vulnerable age combined with any
// vulnerable-symptom keyword.
func vulnerableRisk(text string, age, severity *int) bool {
	if severity != nil && *severity >= 9 {
		return true
	}
	if age != nil && (*age < 2 || *age > 80) {
		if _, ok := matchKeyword(text, vulnerableSymptomKeywords); ok {
			return true
		}
	}
	return false
}

// matchKeyword scans the list in order and returns the first phrase
// contained in text. Matching is case-insensitive substring
// containment.
func matchKeyword(text string, keywords []string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range keywords {
		if strings.Contains(normalized, kw) {
			return kw, true
		}
	}
	return "", false
}
