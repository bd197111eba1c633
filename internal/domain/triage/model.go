package triage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RiskLevel classifies the urgency of a symptom presentation.
type RiskLevel string

const (
	RiskLow       RiskLevel = "low"
	RiskMedium    RiskLevel = "medium"
	RiskHigh      RiskLevel = "high"
	RiskEmergency RiskLevel = "emergency"
)

// SuggestedAction is the recommendation paired with a risk level.
type SuggestedAction string

const (
	ActionSelfCare        SuggestedAction = "self-care"
	ActionBookAppointment SuggestedAction = "book-appointment"
	ActionEmergencySOS    SuggestedAction = "emergency-sos"
)

// Disclaimer is attached to every assessment returned to a user.
const Disclaimer = "This is not a medical diagnosis. Please consult a healthcare professional for medical advice."

var validRiskLevels = map[RiskLevel]bool{
	RiskLow:       true,
	RiskMedium:    true,
	RiskHigh:      true,
	RiskEmergency: true,
}

var validActions = map[SuggestedAction]bool{
	ActionSelfCare:        true,
	ActionBookAppointment: true,
	ActionEmergencySOS:    true,
}

// SymptomCheckRequest is a triage request. SymptomText is the only
// required field; the optional context fields use pointers so that a
// present zero (a newborn's age, for instance) is distinguishable from
// an absent field.
type SymptomCheckRequest struct {
	SymptomText        string   `json:"symptom_text"`
	Age                *int     `json:"age,omitempty"`
	Gender             string   `json:"gender,omitempty"`
	DurationHours      *int     `json:"duration_hours,omitempty"`
	Severity           *int     `json:"severity,omitempty"`
	ExistingConditions []string `json:"existing_conditions,omitempty"`
	CurrentMedications []string `json:"current_medications,omitempty"`
}

// Validate trims the symptom text in place and checks every field
// against its allowed range.
func (r *SymptomCheckRequest) Validate() error {
	r.SymptomText = strings.TrimSpace(r.SymptomText)
	if r.SymptomText == "" {
		return fmt.Errorf("symptom_text is required")
	}
	if len(r.SymptomText) < 5 || len(r.SymptomText) > 2000 {
		return fmt.Errorf("symptom_text must be between 5 and 2000 characters")
	}
	if r.Age != nil && (*r.Age < 0 || *r.Age > 150) {
		return fmt.Errorf("age must be between 0 and 150")
	}
	if r.DurationHours != nil && *r.DurationHours < 0 {
		return fmt.Errorf("duration_hours must not be negative")
	}
	if r.Severity != nil && (*r.Severity < 1 || *r.Severity > 10) {
		return fmt.Errorf("severity must be between 1 and 10")
	}
	return nil
}

// Assessment is the canonical result of a triage request. Every path
// through the classifier, including all failure paths, produces one.
type Assessment struct {
	RiskLevel              RiskLevel       `json:"risk_level"`
	Confidence             float64         `json:"confidence"`
	SuggestedAction        SuggestedAction `json:"suggested_action"`
	Reasoning              string          `json:"reasoning"`
	PossibleConditions     []string        `json:"possible_conditions,omitempty"`
	RecommendedSpecialists []string        `json:"recommended_specialists,omitempty"`
	WarningSigns           []string        `json:"warning_signs,omitempty"`
	SelfCareTips           []string        `json:"self_care_tips,omitempty"`
	SafetyOverrideApplied  bool            `json:"safety_override_applied"`
	SafetyOverrideReason   string          `json:"safety_override_reason,omitempty"`
	Disclaimer             string          `json:"disclaimer"`
	AnalyzedAt             time.Time       `json:"analyzed_at"`
}

// ChatRequest is a general health chat message.
type ChatRequest struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversation_id"`
}

// ChatResponse is the assistant's reply to a chat message.
type ChatResponse struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversation_id"`
}

// assessmentFromPayload coerces a raw model payload into an
// Assessment. The payload is untrusted: coercion is total, so any
// missing, mistyped, or out-of-range field degrades to a conservative
// default instead of failing.
func assessmentFromPayload(payload map[string]any) Assessment {
	risk := RiskLevel(strings.ToLower(coerceString(payload["risk_level"], string(RiskMedium))))
	if !validRiskLevels[risk] {
		risk = RiskMedium
	}

	action := SuggestedAction(strings.ToLower(coerceString(payload["suggested_action"], string(ActionBookAppointment))))
	if !validActions[action] {
		action = ActionBookAppointment
	}

	// Keep risk and action consistent regardless of what the model said.
	if risk == RiskEmergency {
		action = ActionEmergencySOS
	} else if risk == RiskLow && action == ActionEmergencySOS {
		action = ActionSelfCare
	}

	confidence := coerceFloat(payload["confidence"], 0.7)
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	return Assessment{
		RiskLevel:              risk,
		Confidence:             confidence,
		SuggestedAction:        action,
		Reasoning:              coerceString(payload["reasoning"], "Please consult a healthcare professional."),
		PossibleConditions:     coerceStringSlice(payload["possible_conditions"]),
		RecommendedSpecialists: coerceStringSlice(payload["recommended_specialists"]),
		WarningSigns:           coerceStringSlice(payload["warning_signs"]),
		SelfCareTips:           coerceStringSlice(payload["self_care_tips"]),
		SafetyOverrideApplied:  false,
		Disclaimer:             Disclaimer,
		AnalyzedAt:             time.Now().UTC(),
	}
}

func coerceString(v any, def string) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func coerceFloat(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return def
}

func coerceStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
