package ai

import (
	"context"
	"fmt"
	"sync"
)

// TextCall records a GenerateText invocation on the mock.
type TextCall struct {
	Prompt       string
	SystemPrompt string
}

// AnalyzeCall records an AnalyzeSymptoms invocation on the mock.
type AnalyzeCall struct {
	SymptomText string
	Context     *PatientContext
}

// MockClient is a scriptable Client for tests. The zero value is an
// available client that returns empty responses; set JSONResponse and
// TextResponse to script replies, ShouldFail to make generation calls
// error, and Unavailable to simulate a missing API key.
type MockClient struct {
	mu sync.Mutex

	Unavailable  bool
	ShouldFail   bool
	TextResponse string
	JSONResponse map[string]any

	TextCalls    []TextCall
	AnalyzeCalls []AnalyzeCall
}

// NewMockClient returns an available mock with no scripted responses.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.Unavailable
}

func (m *MockClient) GenerateText(ctx context.Context, prompt, systemPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Unavailable {
		return "", ErrUnavailable
	}
	m.TextCalls = append(m.TextCalls, TextCall{Prompt: prompt, SystemPrompt: systemPrompt})
	if m.ShouldFail {
		return "", fmt.Errorf("mock generation failure")
	}
	return m.TextResponse, nil
}

func (m *MockClient) GenerateJSON(ctx context.Context, prompt, systemPrompt string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Unavailable {
		return nil, ErrUnavailable
	}
	m.TextCalls = append(m.TextCalls, TextCall{Prompt: prompt, SystemPrompt: systemPrompt})
	if m.ShouldFail {
		return nil, fmt.Errorf("mock generation failure")
	}
	return m.JSONResponse, nil
}

func (m *MockClient) AnalyzeSymptoms(ctx context.Context, symptomText string, pc *PatientContext) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Unavailable {
		return nil, ErrUnavailable
	}
	m.AnalyzeCalls = append(m.AnalyzeCalls, AnalyzeCall{SymptomText: symptomText, Context: pc})
	if m.ShouldFail {
		return nil, fmt.Errorf("mock analysis failure")
	}
	return m.JSONResponse, nil
}

func (m *MockClient) ModelInfo() ModelInfo {
	return ModelInfo{
		ModelName:      "mock-model",
		Temperature:    defaultTemperature,
		MaxRetries:     defaultMaxRetries,
		TimeoutSeconds: int(defaultTimeout.Seconds()),
		IsAvailable:    m.Available(),
	}
}
