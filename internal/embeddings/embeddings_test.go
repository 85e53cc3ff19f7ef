package embeddings

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	first, err := e.Embed(ctx, []string{"Weaviate stores vectors"})
	require.NoError(t, err)
	second, err := e.Embed(ctx, []string{"weaviate STORES vectors!"})
	require.NoError(t, err)

	require.Len(t, first, 1)
	assert.Len(t, first[0], 64)
	assert.Equal(t, first, second)
}

func TestHashEmbedderNormalized(t *testing.T) {
	vec, err := EmbedOne(context.Background(), NewHashEmbedder(0), "the quick brown fox jumps over the lazy dog")
	require.NoError(t, err)
	require.Len(t, vec, DefaultHashDimensions)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestHashEmbedderSimilarity(t *testing.T) {
	e := NewHashEmbedder(256)
	vecs, err := e.Embed(context.Background(), []string{
		"Weaviate stores vectors",
		"What stores vectors?",
		"Bananas are yellow fruit",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	related := cosine(vecs[0], vecs[1])
	unrelated := cosine(vecs[0], vecs[2])
	assert.Greater(t, related, unrelated)
	assert.Greater(t, related, 0.3)
}

func TestHashEmbedderEmptyInput(t *testing.T) {
	e := NewHashEmbedder(16)

	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)

	vecs, err = e.Embed(context.Background(), []string{""})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, make([]float32, 16), vecs[0])
}

func TestHashEmbedderName(t *testing.T) {
	assert.Equal(t, "hash-bow-384", NewHashEmbedder(0).Name())
	assert.Equal(t, 32, NewHashEmbedder(32).Dimensions())
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"what", "stores", "vectors"}, Tokenize("What stores vectors?"))
	assert.Equal(t, []string{"gpt", "4o", "mini"}, Tokenize("gpt-4o-mini"))
	assert.Empty(t, Tokenize("  ?! "))
}

func TestToChromemFunc(t *testing.T) {
	e := NewHashEmbedder(8)
	fn := ToChromemFunc(e)

	got, err := fn(context.Background(), "hello world")
	require.NoError(t, err)
	want, err := EmbedOne(context.Background(), e, "hello world")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOllamaEmbedder(t *testing.T) {
	var gotReq ollamaEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := ollamaEmbedResponse{}
		for i := range gotReq.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(i), 1, 0})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("nomic-embed-text", 3, srv.URL+"/")
	assert.Equal(t, "ollama/nomic-embed-text", e.Name())

	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", gotReq.Model)
	assert.Equal(t, []string{"a", "b"}, gotReq.Input)
	assert.Equal(t, [][]float32{{0, 1, 0}, {1, 1, 0}}, vecs)
}

func TestOllamaEmbedderErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			},
		},
		{
			name: "count mismatch",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 2, 3}}})
			},
		},
		{
			name: "dimension mismatch",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1}, {2}}})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewOllamaEmbedder("m", 3, srv.URL).Embed(context.Background(), []string{"a", "b"})
			assert.Error(t, err)
		})
	}
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions int      `json:"dimensions"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, 0, req.Dimensions)

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{float32(i), 0.5}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("sk-test", ModelTextEmbedding3Small, 0, srv.URL)
	assert.Equal(t, 1536, e.Dimensions())
	assert.Equal(t, "text-embedding-3-small", e.Name())

	vecs, err := e.Embed(context.Background(), []string{"x", "y", "z"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 0.5}, {1, 0.5}, {2, 0.5}}, vecs)
}
