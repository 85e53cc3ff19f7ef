package llm

import (
	"context"
	"fmt"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}

// Generate sends prompt as a single user message and returns the completion
// text. Provider defaults apply for model, temperature and token limit.
func Generate(ctx context.Context, p Provider, prompt string) (string, error) {
	resp, err := p.Complete(ctx, CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", p.Name(), err)
	}
	return resp.Content, nil
}
