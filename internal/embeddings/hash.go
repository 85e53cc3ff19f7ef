package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashModelName identifies the hashing embedder in collection ledgers.
const HashModelName = "hash-bow"

// DefaultHashDimensions matches the width of small sentence-transformer models.
const DefaultHashDimensions = 384

// HashEmbedder is an offline, deterministic embedder. Each lower-cased word
// token is hashed into one of Dimensions buckets with a hash-derived sign, and
// the resulting bag-of-words vector is L2-normalized. Texts that share words
// score a positive cosine similarity, which is enough to run the whole
// pipeline without any model or credentials.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a HashEmbedder. dimensions <= 0 uses
// DefaultHashDimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (e *HashEmbedder) Name() string {
	return fmt.Sprintf("%s-%d", HashModelName, e.dimensions)
}

func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.dimensions)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		if t := strings.TrimSpace(text); t != "" {
			tokens = []string{t}
		}
	}

	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		idx := sum % uint64(e.dimensions)
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// Tokenize splits text into lower-cased runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
