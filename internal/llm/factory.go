package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Supported provider types.
const (
	TypeOpenAI = "openai"
	TypeOllama = "ollama"
	TypeMock   = "mock"
)

// pingTimeout bounds the reachability check for local providers.
const pingTimeout = 3 * time.Second

// NewProvider creates a new LLM provider based on the given provider type.
// Supported provider types: "openai", "ollama", "mock".
func NewProvider(providerType string, s Settings) (Provider, error) {
	switch providerType {
	case TypeOpenAI:
		if s.APIKey == "" {
			s.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if s.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(s), nil

	case TypeOllama:
		if s.BaseURL == "" {
			s.BaseURL = os.Getenv("OLLAMA_HOST")
		}
		return NewOllamaProvider(s), nil

	case TypeMock:
		return NewMockProvider(), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// NewProviderWithFallback builds a provider like NewProvider. When fallback is
// true, a provider that cannot be constructed, or an Ollama server that does
// not answer a ping, is replaced by the mock provider and a warning is logged.
func NewProviderWithFallback(ctx context.Context, providerType string, s Settings, fallback bool, log zerolog.Logger) (Provider, error) {
	p, err := NewProvider(providerType, s)
	if err != nil {
		if !fallback {
			return nil, err
		}
		log.Warn().Err(err).Str("provider", providerType).Msg("LLM unavailable, using mock provider")
		return NewMockProvider(), nil
	}

	if op, ok := p.(*OllamaProvider); ok && fallback {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := op.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("provider", providerType).Msg("LLM unavailable, using mock provider")
			return NewMockProvider(), nil
		}
	}
	return p, nil
}
