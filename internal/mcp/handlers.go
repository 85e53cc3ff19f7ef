package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/ingest"
	api "github.com/ziadkadry99/docqa/internal/server"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

// handleQueryDocuments runs the full question answering chain.
func (s *Server) handleQueryDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	req := api.QueryRequest{
		Question: question,
		Mode:     request.GetString("mode", ""),
	}
	if k := request.GetInt("k", 0); k != 0 {
		req.K = &k
	}

	resp, err := s.svc.Query(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatAnswer(resp)), nil
}

// handleSearchDocuments returns the nearest records for a query without
// calling the language model.
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 5)
	if limit <= 0 {
		limit = 5
	}

	vec, err := embeddings.EmbedOne(ctx, s.embedder, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("embedding query: %v", err)), nil
	}

	matches, err := s.store.Nearest(ctx, s.collection, vec, limit)
	if errors.Is(err, vectordb.ErrCollectionNotFound) {
		return mcp.NewToolResultText("No results found. The documents may not be ingested yet. Run `docqa ingest` first."), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return mcp.NewToolResultText(vectordb.FormatResults(matches)), nil
}

// handleIngestDocuments re-ingests the data directory.
func (s *Server) handleIngestDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.svc.Ingest(ctx)
	if errors.Is(err, ingest.ErrNoDocuments) {
		return mcp.NewToolResultError("No documents found to ingest"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ingest failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Ingested %d document(s) into %s in %s.",
		report.Documents, report.Collection, report.Duration.Round(time.Millisecond))), nil
}

// formatAnswer renders an answer and its sources for AI agent consumption.
func formatAnswer(resp *api.QueryResponse) string {
	var sb strings.Builder
	sb.WriteString(resp.Answer)
	sb.WriteString("\n")

	if len(resp.Sources) == 0 {
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("\nSources (%d):\n", len(resp.Sources)))
	for i, src := range resp.Sources {
		loc := src.Source
		if src.Page > 0 {
			loc = fmt.Sprintf("%s (page %d)", src.Source, src.Page)
		}
		sb.WriteString(fmt.Sprintf("\n[%d] %s\n%s\n", i+1, loc, src.Content))
	}

	return sb.String()
}
