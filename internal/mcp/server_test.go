package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/ingest"
	"github.com/ziadkadry99/docqa/internal/loader"
	api "github.com/ziadkadry99/docqa/internal/server"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

// fakeService implements Service for testing.
type fakeService struct {
	lastReq   api.QueryRequest
	resp      *api.QueryResponse
	queryErr  error
	report    *ingest.Report
	ingestErr error
}

func (f *fakeService) Query(_ context.Context, req api.QueryRequest) (*api.QueryResponse, error) {
	f.lastReq = req
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.resp, nil
}

func (f *fakeService) Ingest(context.Context) (*ingest.Report, error) {
	return f.report, f.ingestErr
}

func newTestServer(t *testing.T, svc Service, docs ...loader.Document) *Server {
	t.Helper()
	embedder := embeddings.NewHashEmbedder(64)
	store := vectordb.NewChromemStore(embedder)
	if len(docs) > 0 {
		ctx := context.Background()
		if _, err := store.EnsureCollection(ctx, "Document"); err != nil {
			t.Fatalf("EnsureCollection: %v", err)
		}
		if _, err := store.Upsert(ctx, "Document", docs); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	return NewServer(svc, store, embedder, "Document")
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"query_documents", queryDocumentsTool, "query_documents"},
		{"search_documents", searchDocumentsTool, "search_documents"},
		{"ingest_documents", ingestDocumentsTool, "ingest_documents"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc)

	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
	if srv.collection != "Document" {
		t.Errorf("collection = %q, want %q", srv.collection, "Document")
	}
}

func TestHandleQueryDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("passes arguments through", func(t *testing.T) {
		svc := &fakeService{resp: &api.QueryResponse{
			Answer:  "Weaviate.",
			Sources: []api.Source{{Source: "manual.pdf", Title: "manual", Content: "Weaviate stores vectors", Page: 2}},
		}}
		srv := newTestServer(t, svc)

		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"question": "What stores vectors?",
			"k":        float64(2),
			"mode":     "hyde",
		}
		result, err := srv.handleQueryDocuments(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}

		if svc.lastReq.Question != "What stores vectors?" || svc.lastReq.Mode != "hyde" {
			t.Errorf("request = %+v", svc.lastReq)
		}
		if svc.lastReq.K == nil || *svc.lastReq.K != 2 {
			t.Errorf("k = %v, want 2", svc.lastReq.K)
		}

		text := extractText(result)
		for _, want := range []string{"Weaviate.", "Sources (1)", "manual.pdf (page 2)", "Weaviate stores vectors"} {
			if !strings.Contains(text, want) {
				t.Errorf("result missing %q:\n%s", want, text)
			}
		}
	})

	t.Run("omitted k stays unset", func(t *testing.T) {
		svc := &fakeService{resp: &api.QueryResponse{Answer: "ok"}}
		srv := newTestServer(t, svc)

		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"question": "q"}
		if _, err := srv.handleQueryDocuments(ctx, req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc.lastReq.K != nil {
			t.Errorf("k = %d, want nil", *svc.lastReq.K)
		}
	})

	t.Run("missing question", func(t *testing.T) {
		srv := newTestServer(t, &fakeService{})
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}

		result, err := srv.handleQueryDocuments(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for missing question")
		}
	})

	t.Run("query failure", func(t *testing.T) {
		srv := newTestServer(t, &fakeService{queryErr: errors.New("model offline")})
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"question": "q"}

		result, err := srv.handleQueryDocuments(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Fatal("expected tool error")
		}
		if !strings.Contains(extractText(result), "model offline") {
			t.Errorf("error text = %q", extractText(result))
		}
	})
}

func TestHandleSearchDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("finds ingested document", func(t *testing.T) {
		srv := newTestServer(t, &fakeService{},
			loader.Document{Content: "Weaviate stores vectors", Source: "a.txt", Title: "a"},
			loader.Document{Content: "The answer is drafted by the language model", Source: "b.txt", Title: "b"},
		)
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "Weaviate stores vectors", "limit": float64(1)}

		result, err := srv.handleSearchDocuments(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		text := extractText(result)
		if !strings.Contains(text, "Found 1 result(s)") || !strings.Contains(text, "Source: a.txt") {
			t.Errorf("unexpected result:\n%s", text)
		}
	})

	t.Run("not ingested", func(t *testing.T) {
		srv := newTestServer(t, &fakeService{})
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "anything"}

		result, err := srv.handleSearchDocuments(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Error("missing collection should not be a tool error")
		}
		if !strings.Contains(extractText(result), "No results found") {
			t.Errorf("unexpected result: %q", extractText(result))
		}
	})

	t.Run("missing query", func(t *testing.T) {
		srv := newTestServer(t, &fakeService{})
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}

		result, err := srv.handleSearchDocuments(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for missing query")
		}
	})
}

func TestHandleIngestDocuments(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		svc     *fakeService
		wantErr bool
		want    string
	}{
		{
			name: "success",
			svc:  &fakeService{report: &ingest.Report{Documents: 4, Collection: "Document", Duration: 1500 * time.Millisecond}},
			want: "Ingested 4 document(s) into Document in 1.5s.",
		},
		{
			name:    "empty data dir",
			svc:     &fakeService{ingestErr: ingest.ErrNoDocuments},
			wantErr: true,
			want:    "No documents found to ingest",
		},
		{
			name:    "failure",
			svc:     &fakeService{ingestErr: errors.New("store down")},
			wantErr: true,
			want:    "ingest failed: store down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.svc)
			result, err := srv.handleIngestDocuments(ctx, mcp.CallToolRequest{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.IsError != tt.wantErr {
				t.Errorf("IsError = %v, want %v", result.IsError, tt.wantErr)
			}
			if got := extractText(result); got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
		})
	}
}

// extractText gets the text content from a CallToolResult.
func extractText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
