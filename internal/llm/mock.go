package llm

import (
	"context"
	"strings"
)

// Canned outputs of MockProvider.
const (
	MockAnswer       = "Based on the retrieved documents, this appears to be a relevant answer to your question."
	MockHypothetical = "This is a generated hypothetical document that would answer the user question."
)

// MockProvider is a deterministic stand-in used when no real model is
// configured or reachable. Prompts mentioning "question" or "query" get
// MockAnswer; anything else gets MockHypothetical.
type MockProvider struct{}

// NewMockProvider returns a MockProvider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var prompt strings.Builder
	for _, msg := range req.Messages {
		prompt.WriteString(msg.Content)
		prompt.WriteByte('\n')
	}
	lower := strings.ToLower(prompt.String())

	content := MockHypothetical
	if strings.Contains(lower, "question") || strings.Contains(lower, "query") {
		content = MockAnswer
	}
	return &CompletionResponse{
		Content:      content,
		Model:        "mock",
		FinishReason: "stop",
	}, nil
}
