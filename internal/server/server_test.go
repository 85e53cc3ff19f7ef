package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/docqa/internal/db"
	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/ingest"
	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/loader"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

// failingLLM fails every completion, or returns reply when err is nil.
type failingLLM struct {
	err   error
	reply string
}

func (f failingLLM) Name() string { return "failing" }

func (f failingLLM) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.reply}, nil
}

type fixture struct {
	srv    *Server
	ledger *db.DB
	root   string
}

func newFixture(t *testing.T, provider llm.Provider, files map[string]string) *fixture {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	ledger, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	embedder := embeddings.NewHashEmbedder(64)
	store := vectordb.NewChromemStore(embedder)
	if provider == nil {
		provider = llm.NewMockProvider()
	}

	svc := &ingest.Service{
		Store:      store,
		Embedder:   embedder,
		Ledger:     ledger,
		Collection: "Document",
		Loader:     loader.Options{Root: root, Logger: zerolog.Nop()},
		Logger:     zerolog.Nop(),
	}
	srv := New(Config{}, Deps{
		Store:      store,
		Embedder:   embedder,
		LLM:        provider,
		Collection: "Document",
		Ingester:   svc,
		Ledger:     ledger,
		Logger:     zerolog.Nop(),
	})
	return &fixture{srv: srv, ledger: ledger, root: root}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(w, req)
	return w
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Detail
}

var sampleFiles = map[string]string{"a.txt": "Weaviate stores vectors"}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, nil, nil)
	w := f.do(t, "GET", "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestShutdownBeforeStart(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, f.srv.Shutdown(context.Background()))
	assert.ErrorIs(t, f.srv.Start(), http.ErrServerClosed)
}

func TestShutdownWhileStarting(t *testing.T) {
	f := newFixture(t, nil, nil)

	errc := make(chan error, 1)
	go func() { errc <- f.srv.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.srv.Shutdown(ctx))

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func TestCORSHeaders(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.srv = New(Config{AllowAll: true}, f.srv.deps)

	req := httptest.NewRequest("OPTIONS", "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS Allow-Origin header")
	}
}

func TestIngestNoDocuments(t *testing.T) {
	f := newFixture(t, nil, nil)
	w := f.do(t, "POST", "/ingest", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No documents found to ingest", detail(t, w))
}

func TestIngestAndQueryEndToEnd(t *testing.T) {
	f := newFixture(t, nil, sampleFiles)

	w := f.do(t, "POST", "/ingest", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"ingested":1}`, w.Body.String())

	w = f.do(t, "POST", "/query", `{"question":"What stores vectors?","k":1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, llm.MockAnswer, resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, Source{Source: "a.txt", Title: "a", Content: "Weaviate stores vectors"}, resp.Sources[0])
}

func TestQueryDefaultsK(t *testing.T) {
	files := map[string]string{
		"a.txt": "Weaviate stores vectors",
		"b.txt": "FastAPI serves the HTTP API",
		"c.txt": "The loader reads text and PDF files",
		"d.txt": "HyDE embeds a hypothetical answer",
	}
	f := newFixture(t, nil, files)
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/ingest", "").Code)

	w := f.do(t, "POST", "/query", `{"question":"What stores vectors?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Sources, DefaultK)
}

func TestModesShareResponseSchema(t *testing.T) {
	f := newFixture(t, nil, sampleFiles)
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/ingest", "").Code)

	keys := func(mode string) ([]string, []string) {
		w := f.do(t, "POST", "/query", `{"question":"What stores vectors?","k":1,"mode":"`+mode+`"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var body map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		var sources []map[string]any
		require.NoError(t, json.Unmarshal(body["sources"], &sources))
		require.NotEmpty(t, sources)

		top := make([]string, 0, len(body))
		for k := range body {
			top = append(top, k)
		}
		src := make([]string, 0, len(sources[0]))
		for k := range sources[0] {
			src = append(src, k)
		}
		sort.Strings(top)
		sort.Strings(src)
		return top, src
	}

	baseTop, baseSrc := keys("baseline")
	hydeTop, hydeSrc := keys("hyde")
	assert.Equal(t, []string{"answer", "sources"}, baseTop)
	assert.Equal(t, baseTop, hydeTop)
	assert.Equal(t, baseSrc, hydeSrc)
}

func TestQueryValidation(t *testing.T) {
	f := newFixture(t, nil, sampleFiles)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"question":`},
		{"empty body", ``},
		{"blank question", `{"question":"   "}`},
		{"zero k", `{"question":"q","k":0}`},
		{"negative k", `{"question":"q","k":-2}`},
		{"unknown mode", `{"question":"q","mode":"rerank"}`},
		{"wrong type", `{"question":"q","k":"three"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, "POST", "/query", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.NotEmpty(t, detail(t, w))
		})
	}
}

func TestQueryRetrievalFailures(t *testing.T) {
	tests := []struct {
		name   string
		llm    llm.Provider
		mode   string
		detail string
	}{
		{"answer generation fails", failingLLM{err: errors.New("model offline")}, "baseline", "model offline"},
		{"hyde generation fails", failingLLM{err: errors.New("model offline")}, "hyde", "model offline"},
		{"hyde returns blank", failingLLM{reply: " "}, "hyde", "empty hypothetical"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.llm, sampleFiles)
			require.Equal(t, http.StatusOK, f.do(t, "POST", "/ingest", "").Code)

			w := f.do(t, "POST", "/query", `{"question":"What stores vectors?","mode":"`+tt.mode+`"}`)
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Contains(t, detail(t, w), tt.detail)
		})
	}
}

func TestQueryBeforeIngest(t *testing.T) {
	f := newFixture(t, nil, sampleFiles)
	w := f.do(t, "POST", "/query", `{"question":"What stores vectors?"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, detail(t, w), "collection not found")
}

func TestQueryModelMismatch(t *testing.T) {
	f := newFixture(t, nil, sampleFiles)
	_, err := f.ledger.RegisterCollection(context.Background(), "Document", "text-embedding-3-small", 1536)
	require.NoError(t, err)

	w := f.do(t, "POST", "/query", `{"question":"What stores vectors?"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, detail(t, w), "text-embedding-3-small")
}

func TestRecentQueries(t *testing.T) {
	f := newFixture(t, nil, sampleFiles)
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/ingest", "").Code)
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/query", `{"question":"first","k":1}`).Code)
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/query", `{"question":"second","k":1,"mode":"hyde"}`).Code)

	w := f.do(t, "GET", "/queries?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var records []db.QueryRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "second", records[0].Question)
	assert.Equal(t, "hyde", records[0].Mode)
	assert.Equal(t, []string{"a.txt"}, records[0].Sources)
	assert.Positive(t, records[0].PromptTokens)

	assert.Equal(t, http.StatusUnprocessableEntity, f.do(t, "GET", "/queries?limit=abc", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil, sampleFiles)
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/ingest", "").Code)
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/query", `{"question":"q","k":1,"mode":"hyde"}`).Code)

	w := f.do(t, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `docqa_queries_total{mode="hyde",status="ok"} 1`)
	assert.Contains(t, body, `docqa_llm_generations_total{purpose="hypothetical"} 1`)
	assert.Contains(t, body, `docqa_llm_generations_total{purpose="answer"} 1`)
	assert.Contains(t, body, `docqa_ingested_documents_total 1`)
}

func TestBootstrap(t *testing.T) {
	empty := newFixture(t, nil, nil)
	assert.NoError(t, empty.srv.Bootstrap(context.Background()))

	f := newFixture(t, nil, sampleFiles)
	require.NoError(t, f.srv.Bootstrap(context.Background()))
	w := f.do(t, "POST", "/query", `{"question":"What stores vectors?","k":1}`)
	assert.Equal(t, http.StatusOK, w.Code)

	missing := newFixture(t, nil, nil)
	missing.srv.deps.Ingester.(*ingest.Service).Loader.Root = filepath.Join(missing.root, "nope")
	assert.Error(t, missing.srv.Bootstrap(context.Background()))
}

func TestWebSocketQuery(t *testing.T) {
	f := newFixture(t, nil, sampleFiles)
	require.NoError(t, f.srv.Bootstrap(context.Background()))

	ts := httptest.NewServer(f.srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"question":"What stores vectors?","k":1,"mode":"hyde"}`)))
	var resp QueryResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, llm.MockAnswer, resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "a.txt", resp.Sources[0].Source)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"question":"q","k":0}`)))
	var errResp ErrorResponse
	require.NoError(t, conn.ReadJSON(&errResp))
	assert.Contains(t, errResp.Detail, "k")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	errResp = ErrorResponse{}
	require.NoError(t, conn.ReadJSON(&errResp))
	assert.Equal(t, "invalid message format", errResp.Detail)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ValidationError{Field: "k", Message: "bad"}, http.StatusUnprocessableEntity},
		{ingest.ErrNoDocuments, http.StatusBadRequest},
		{ingest.ErrModelMismatch, http.StatusConflict},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := statusFor(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}
