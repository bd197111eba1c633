package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// GeminiBaseURL is the OpenAI-compatible endpoint exposed by Google's
// Gemini API. It is the default base URL for the model client.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

const (
	defaultModel       = "gemini-2.0-flash"
	defaultTemperature = 0.3
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 3
)

const jsonInstruction = `IMPORTANT: Respond ONLY with valid JSON. No markdown, no code blocks, no explanations.
Just the raw JSON object.`

const symptomSystemPrompt = `You are a medical triage assistant. Your role is to analyze symptom descriptions
and provide structured risk assessments. You are NOT providing diagnoses.

CRITICAL RULES:
1. NEVER diagnose specific conditions definitively
2. ALWAYS recommend professional consultation for concerning symptoms
3. When in doubt, err on the side of caution (higher risk level)
4. Be clear this is for informational purposes only

You must respond with a JSON object in this exact format:
{
    "risk_level": "low" | "medium" | "high" | "emergency",
    "confidence": 0.0 to 1.0,
    "suggested_action": "self-care" | "book-appointment" | "emergency-sos",
    "reasoning": "Plain English explanation for the patient",
    "possible_conditions": ["condition1", "condition2"],
    "recommended_specialists": ["specialist1", "specialist2"],
    "warning_signs": ["sign1", "sign2"],
    "self_care_tips": ["tip1", "tip2"]
}

Risk Level Guidelines:
- LOW: Minor symptoms, self-care appropriate
- MEDIUM: Symptoms warrant professional evaluation soon
- HIGH: Symptoms require prompt medical attention
- EMERGENCY: Life-threatening, requires immediate emergency care`

// Config holds the model client configuration. Zero values fall back
// to the package defaults.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
	MaxRetries  int
}

// OpenAIClient is a Client backed by an OpenAI-compatible
// chat-completions endpoint. With the default base URL it talks to
// Gemini; pointing BaseURL at api.openai.com (or any compatible
// gateway) works unchanged.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	maxRetries  int
	logger      zerolog.Logger
}

// NewOpenAIClient builds a client from cfg. A missing API key yields a
// client that reports unavailable rather than an error, so the server
// still comes up with the assistant features degraded.
func NewOpenAIClient(cfg Config, logger zerolog.Logger) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = GeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	c := &OpenAIClient{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		logger:      logger,
	}

	if cfg.APIKey == "" {
		logger.Warn().Msg("AI API key not configured, assistant features unavailable")
		return c
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	c.client = openai.NewClientWithConfig(oc)
	logger.Info().Str("model", cfg.Model).Msg("AI client initialized")
	return c
}

// Available reports whether the client holds a configured connection.
func (c *OpenAIClient) Available() bool {
	return c.client != nil
}

// GenerateText sends the prompt to the model and returns its text
// response, retrying transient failures up to the configured limit.
func (c *OpenAIClient) GenerateText(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if !c.Available() {
		return "", ErrUnavailable
	}

	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := c.complete(ctx, msgs)
		if err == nil && text != "" {
			return text, nil
		}
		if err == nil {
			err = ErrEmptyResponse
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("model call failed")
	}
	return "", fmt.Errorf("model call failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *OpenAIClient) complete(ctx context.Context, msgs []openai.ChatCompletionMessage) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateJSON asks the model for a JSON object and parses the reply.
// A reply that is not valid JSON (after fence stripping) fails with
// ErrMalformedResponse and is never retried.
func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt, systemPrompt string) (map[string]any, error) {
	full := jsonInstruction
	if systemPrompt != "" {
		full = systemPrompt + "\n\n" + jsonInstruction
	}

	text, err := c.GenerateText(ctx, prompt, full)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(stripFences(text)), &out); err != nil {
		c.logger.Error().Err(err).Msg("failed to parse model JSON response")
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return out, nil
}

// AnalyzeSymptoms runs the triage prompt over the symptom description
// and returns the model's raw assessment payload.
func (c *OpenAIClient) AnalyzeSymptoms(ctx context.Context, symptomText string, pc *PatientContext) (map[string]any, error) {
	contextLine := "No additional patient context provided."
	if frag := pc.promptFragment(); frag != "" {
		contextLine = "Patient Context: " + frag
	}

	prompt := fmt.Sprintf(`Analyze the following symptom description and provide a risk assessment.

%s

Symptom Description:
%s

Provide your assessment as a JSON object.`, contextLine, symptomText)

	return c.GenerateJSON(ctx, prompt, symptomSystemPrompt)
}

// ModelInfo returns the active model configuration.
func (c *OpenAIClient) ModelInfo() ModelInfo {
	return ModelInfo{
		ModelName:      c.model,
		Temperature:    c.temperature,
		MaxRetries:     c.maxRetries,
		TimeoutSeconds: int(c.timeout / time.Second),
		IsAvailable:    c.Available(),
	}
}

// promptFragment renders the set fields as prompt sentences. Absent
// fields contribute nothing.
func (pc *PatientContext) promptFragment() string {
	if pc == nil {
		return ""
	}
	var b strings.Builder
	if pc.Age != nil {
		fmt.Fprintf(&b, "Patient age: %d years. ", *pc.Age)
	}
	if pc.Gender != "" {
		fmt.Fprintf(&b, "Gender: %s. ", pc.Gender)
	}
	if len(pc.ExistingConditions) > 0 {
		fmt.Fprintf(&b, "Existing conditions: %s. ", strings.Join(pc.ExistingConditions, ", "))
	}
	if len(pc.CurrentMedications) > 0 {
		fmt.Fprintf(&b, "Current medications: %s. ", strings.Join(pc.CurrentMedications, ", "))
	}
	if pc.DurationHours != nil {
		fmt.Fprintf(&b, "Symptoms duration: %d hours. ", *pc.DurationHours)
	}
	if pc.Severity != nil {
		fmt.Fprintf(&b, "Self-reported severity: %d/10. ", *pc.Severity)
	}
	return b.String()
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-3]
	}
	return strings.TrimSpace(s)
}
