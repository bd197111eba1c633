package triage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/athishkirthikjd/MedTech-AI/internal/platform/ai"
)

const chatSystemPrompt = `You are a helpful healthcare assistant named MedBot. You provide general
health information, wellness tips, and can answer questions about medical topics.

IMPORTANT RULES:
1. You are NOT a doctor and cannot diagnose conditions
2. Always recommend consulting a healthcare professional for medical decisions
3. Be empathetic and supportive
4. If symptoms sound serious, recommend seeking professional care
5. Keep responses concise and helpful`

// Service classifies symptoms: model analysis followed by the
// mandatory safety overrides. Past request validation every path
// yields a usable assessment; model failures degrade to conservative
// fallbacks instead of surfacing errors.
type Service struct {
	ai     ai.Client
	safety *SafetyEngine
	logger zerolog.Logger
}

// NewService wires the classifier to a model client and safety engine.
func NewService(client ai.Client, safety *SafetyEngine, logger zerolog.Logger) *Service {
	return &Service{ai: client, safety: safety, logger: logger}
}

// Classify runs a triage request end to end. The only error it returns
// is request validation failure; once the request is accepted the
// result is always a well-formed assessment, no matter what the model
// does.
func (s *Service) Classify(ctx context.Context, req SymptomCheckRequest) (Assessment, error) {
	if err := req.Validate(); err != nil {
		return Assessment{}, err
	}

	s.logger.Info().Msg("processing symptom classification request")

	var assessment Assessment
	payload, err := s.analyze(ctx, req)
	if err != nil || len(payload) == 0 {
		if err != nil {
			s.logger.Error().Err(err).Msg("AI analysis failed")
		}
		assessment = fallbackAssessment()
	} else {
		assessment = assessmentFromPayload(payload)
	}

	assessment = s.safety.ApplyOverrides(req.SymptomText, assessment, req.Age, req.Severity)

	if !s.safety.Validate(assessment) {
		s.logger.Error().Msg("assessment failed validation, returning safe fallback")
		return safeFallbackAssessment(), nil
	}

	s.logger.Info().
		Str("risk", string(assessment.RiskLevel)).
		Str("action", string(assessment.SuggestedAction)).
		Bool("safety_override", assessment.SafetyOverrideApplied).
		Msg("classification complete")

	return assessment, nil
}

// Chat answers a general health question. Unlike Classify there is no
// fallback: when the model is unavailable the caller gets an error and
// is expected to report the feature as down.
func (s *Service) Chat(ctx context.Context, message string) (string, error) {
	return s.ai.GenerateText(ctx, message, chatSystemPrompt)
}

// Available reports whether the assistant's model backend is up.
func (s *Service) Available() bool {
	return s.ai.Available()
}

// ModelInfo exposes the model configuration for the health endpoint.
func (s *Service) ModelInfo() ai.ModelInfo {
	return s.ai.ModelInfo()
}

func (s *Service) analyze(ctx context.Context, req SymptomCheckRequest) (map[string]any, error) {
	if !s.ai.Available() {
		return nil, ai.ErrUnavailable
	}
	pc := &ai.PatientContext{
		Age:                req.Age,
		Gender:             req.Gender,
		DurationHours:      req.DurationHours,
		Severity:           req.Severity,
		ExistingConditions: req.ExistingConditions,
		CurrentMedications: req.CurrentMedications,
	}
	return s.ai.AnalyzeSymptoms(ctx, req.SymptomText, pc)
}

// fallbackAssessment is returned when the model is unavailable or its
// output is unusable. It is deliberately never low risk.
func fallbackAssessment() Assessment {
	return Assessment{
		RiskLevel:       RiskMedium,
		Confidence:      0.5,
		SuggestedAction: ActionBookAppointment,
		Reasoning: "Our AI system is currently processing your request. " +
			"Based on your symptoms, we recommend consulting with a healthcare " +
			"professional for a proper evaluation.",
		WarningSigns: []string{
			"If symptoms worsen, seek immediate medical care",
			"If you experience difficulty breathing, chest pain, or severe symptoms, " +
				"call emergency services immediately",
		},
		Disclaimer: Disclaimer,
		AnalyzedAt: time.Now().UTC(),
	}
}

// safeFallbackAssessment is the last resort when a processed
// assessment fails validation. Reaching it means an internal invariant
// was violated, so the classifier logs at error severity before
// substituting it.
func safeFallbackAssessment() Assessment {
	return Assessment{
		RiskLevel:       RiskMedium,
		Confidence:      0.5,
		SuggestedAction: ActionBookAppointment,
		Reasoning: "We recommend scheduling an appointment with a healthcare provider " +
			"for a proper evaluation of your symptoms.",
		WarningSigns: []string{
			"If you experience severe symptoms, seek immediate medical care",
			"Call emergency services for life-threatening situations",
		},
		Disclaimer: Disclaimer,
		AnalyzedAt: time.Now().UTC(),
	}
}
