package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/ingest"
	api "github.com/ziadkadry99/docqa/internal/server"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Service answers questions and re-ingests the data directory.
// *server.Server satisfies it.
type Service interface {
	Query(ctx context.Context, req api.QueryRequest) (*api.QueryResponse, error)
	Ingest(ctx context.Context) (*ingest.Report, error)
}

// Server wraps an MCP server that exposes document question answering tools.
type Server struct {
	svc        Service
	store      vectordb.VectorStore
	embedder   embeddings.Embedder
	collection string
	mcp        *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(svc Service, store vectordb.VectorStore, embedder embeddings.Embedder, collection string) *Server {
	s := &Server{
		svc:        svc,
		store:      store,
		embedder:   embedder,
		collection: collection,
	}

	s.mcp = server.NewMCPServer(
		"docqa",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(queryDocumentsTool, s.handleQueryDocuments)
	s.mcp.AddTool(searchDocumentsTool, s.handleSearchDocuments)
	s.mcp.AddTool(ingestDocumentsTool, s.handleIngestDocuments)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
