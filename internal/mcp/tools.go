package mcp

import "github.com/mark3labs/mcp-go/mcp"

// queryDocumentsTool defines the query_documents MCP tool.
var queryDocumentsTool = mcp.NewTool("query_documents",
	mcp.WithDescription("Answer a question from the ingested documents. Returns the answer followed by the cited sources."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("Natural language question"),
	),
	mcp.WithNumber("k",
		mcp.Description("Number of passages to retrieve (default 3)"),
	),
	mcp.WithString("mode",
		mcp.Description("Query embedding strategy (default baseline)"),
		mcp.Enum("baseline", "hyde"),
	),
)

// searchDocumentsTool defines the search_documents MCP tool.
var searchDocumentsTool = mcp.NewTool("search_documents",
	mcp.WithDescription("Semantic search over the ingested documents without generating an answer."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 5)"),
	),
)

// ingestDocumentsTool defines the ingest_documents MCP tool.
var ingestDocumentsTool = mcp.NewTool("ingest_documents",
	mcp.WithDescription("Re-ingest the configured data directory into the vector store."),
)
