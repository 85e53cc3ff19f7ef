// Package retrieval turns a question into an answer: a query-embedding
// strategy produces the search vector, the vector store supplies context, and
// a language model writes the answer.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/llm"
)

// Mode selects how a question is embedded before nearest-neighbour search.
type Mode string

const (
	// ModeBaseline embeds the question itself.
	ModeBaseline Mode = "baseline"
	// ModeHyDE embeds a model-written hypothetical answer to the question.
	ModeHyDE Mode = "hyde"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeBaseline, ModeHyDE}

// ErrInvalidMode is returned by ParseMode for unknown mode names.
var ErrInvalidMode = errors.New("mode must be one of: baseline, hyde")

// ErrEmptyHypothetical is returned by HyDE when the model produces blank text.
var ErrEmptyHypothetical = errors.New("language model returned an empty hypothetical document")

// ParseMode converts s into a Mode. An empty string selects ModeBaseline.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeBaseline:
		return ModeBaseline, nil
	case ModeHyDE:
		return ModeHyDE, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidMode, s)
	}
}

// QueryEmbedder turns query text into a search vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Baseline embeds the query text directly.
type Baseline struct {
	Embedder embeddings.Embedder
}

func (b Baseline) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return embeddings.EmbedOne(ctx, b.Embedder, text)
}

// HyDEPromptTemplate asks the model for a short answer-shaped passage.
const HyDEPromptTemplate = "Generate a short passage that would answer the user question. Keep it concise.\n\nQuestion: %s"

// HyDEPrompt renders HyDEPromptTemplate for question.
func HyDEPrompt(question string) string {
	return fmt.Sprintf(HyDEPromptTemplate, question)
}

// HyDE embeds a hypothetical document generated by LLM instead of the query.
// There is no fallback to the raw query: a failed or blank generation is an
// error.
type HyDE struct {
	LLM      llm.Provider
	Embedder embeddings.Embedder

	// OnGenerate, if set, is called with each hypothetical document.
	OnGenerate func(hypothetical string)
}

func (h HyDE) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	hypothetical, err := llm.Generate(ctx, h.LLM, HyDEPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("generate hypothetical document: %w", err)
	}
	if strings.TrimSpace(hypothetical) == "" {
		return nil, ErrEmptyHypothetical
	}
	if h.OnGenerate != nil {
		h.OnGenerate(hypothetical)
	}
	return embeddings.EmbedOne(ctx, h.Embedder, hypothetical)
}

// Strategies maps each Mode to its QueryEmbedder. Both share the base
// embedder used at ingest time.
type Strategies map[Mode]QueryEmbedder

// NewStrategies builds the baseline and HyDE strategies. onHypothetical, if
// non-nil, sees every generated hypothetical answer.
func NewStrategies(embedder embeddings.Embedder, provider llm.Provider, onHypothetical func(string)) Strategies {
	return Strategies{
		ModeBaseline: Baseline{Embedder: embedder},
		ModeHyDE:     HyDE{LLM: provider, Embedder: embedder, OnGenerate: onHypothetical},
	}
}

// For returns the strategy registered for mode.
func (s Strategies) For(mode Mode) (QueryEmbedder, error) {
	qe, ok := s[mode]
	if !ok {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMode, mode)
	}
	return qe, nil
}
