// Package ai provides access to the language model behind the
// assistant features: symptom analysis, structured generation, and
// general health chat. The concrete client speaks the OpenAI
// chat-completions protocol, which both OpenAI and Google's Gemini
// endpoints expose, so the provider is swappable through configuration
// alone. A MockClient is provided for tests.
package ai

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable indicates the client has no usable configuration
	// (typically a missing API key) and cannot serve requests.
	ErrUnavailable = errors.New("ai: client not available")

	// ErrEmptyResponse indicates the model returned no usable text.
	ErrEmptyResponse = errors.New("ai: empty model response")

	// ErrMalformedResponse indicates the model responded but the payload
	// could not be parsed as JSON. Callers must not retry on this error;
	// the model answered, it just answered badly.
	ErrMalformedResponse = errors.New("ai: malformed model response")
)

// PatientContext carries the optional patient details that accompany a
// symptom analysis call. Only fields that are set contribute to the
// prompt; absent fields are omitted entirely.
type PatientContext struct {
	Age                *int
	Gender             string
	DurationHours      *int
	Severity           *int
	ExistingConditions []string
	CurrentMedications []string
}

// ModelInfo describes the active model configuration. It is exposed
// verbatim on the AI health endpoint.
type ModelInfo struct {
	ModelName      string  `json:"model_name"`
	Temperature    float32 `json:"temperature"`
	MaxRetries     int     `json:"max_retries"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	IsAvailable    bool    `json:"is_available"`
}

// Client is the model access interface consumed by the assistant
// services. Implementations must be safe for concurrent use.
type Client interface {
	// Available reports whether the client is configured and ready to
	// serve requests. Callers are expected to check this before calling
	// the generation methods and to degrade gracefully when false.
	Available() bool

	// GenerateText sends a prompt (with optional system instructions)
	// and returns the model's text response. Transient transport
	// failures are retried internally up to the configured limit.
	GenerateText(ctx context.Context, prompt, systemPrompt string) (string, error)

	// GenerateJSON is GenerateText with a strict JSON instruction
	// appended and the response parsed into a generic map. Markdown
	// code fences around the payload are tolerated and stripped. A
	// response that is not valid JSON returns ErrMalformedResponse
	// without retrying.
	GenerateJSON(ctx context.Context, prompt, systemPrompt string) (map[string]any, error)

	// AnalyzeSymptoms runs the medical triage prompt over the symptom
	// description and returns the model's raw assessment payload. The
	// payload is untrusted: every field may be missing, mistyped, or
	// out of range, and callers must coerce it before use.
	AnalyzeSymptoms(ctx context.Context, symptomText string, pc *PatientContext) (map[string]any, error)

	// ModelInfo returns the active model configuration.
	ModelInfo() ModelInfo
}
