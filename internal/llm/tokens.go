package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenEncoding is the BPE used to estimate prompt sizes.
const TokenEncoding = "cl100k_base"

// TokenCounter counts tokens with tiktoken. The encoding is fetched in the
// background on first use; until it is ready, or when it cannot be loaded,
// counts fall back to EstimateTokens. Count never waits on the fetch.
type TokenCounter struct {
	once     sync.Once
	done     chan struct{}
	encoding *tiktoken.Tiktoken
	err      error

	getEncoding func(string) (*tiktoken.Tiktoken, error)
}

// NewTokenCounter returns a TokenCounter for TokenEncoding.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{done: make(chan struct{}), getEncoding: tiktoken.GetEncoding}
}

func (t *TokenCounter) start() {
	t.once.Do(func() {
		go func() {
			defer close(t.done)
			t.encoding, t.err = t.getEncoding(TokenEncoding)
		}()
	})
}

// Preload starts loading the encoding and waits for it until ctx is done.
func (t *TokenCounter) Preload(ctx context.Context) error {
	t.start()
	select {
	case <-t.done:
		if t.err != nil {
			return fmt.Errorf("loading %s encoding: %w", TokenEncoding, t.err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns the number of tokens in text.
func (t *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	t.start()
	select {
	case <-t.done:
	default:
		return EstimateTokens(text)
	}
	if t.encoding == nil {
		return EstimateTokens(text)
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// EstimateTokens approximates a token count as one token per four bytes,
// with a minimum of one for non-empty text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		return 1
	}
	return n
}
