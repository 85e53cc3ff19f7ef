package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/docqa/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing document question answering, search and ingest tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		// Stdout carries the protocol; logs go to stderr.
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.IngestOnStart {
			if err := a.server.Bootstrap(ctx); err != nil {
				return err
			}
		}

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		count, _ := a.store.Count(ctx, a.cfg.Collection)
		fmt.Fprintf(os.Stderr, "docqa MCP server started on stdio (collection=%s, documents=%d)\n", a.cfg.Collection, count)

		srv := mcpserver.NewServer(a.server, a.store, a.embedder, a.cfg.Collection)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
