package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/oasis-cli/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

Tools: ask, query_facilities, region_deserts, facility_stats.
Resources: oasis://regions, oasis://runs and
oasis://facilities/{id}/assessment.

By default the server speaks JSON-RPC over stdio. Use --http to serve the
streamable HTTP transport instead.

Examples:
  # Stdio mode (default, for desktop assistants)
  oasis mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  oasis mcp serve --http :8080

Assistant configuration:
  {
    "mcpServers": {
      "oasis": {
        "command": "/path/to/oasis",
        "args": ["mcp", "serve", "--data", "/path/to/facilities.json"]
      }
    }
  }`,
	Args:        cobra.NoArgs,
	Annotations: engineCommand(),
	RunE:        runMCPServe,
}

func init() {
	mcpServeCmd.Flags().String("http", "", "HTTP listen address (empty = use stdio)")
	mcpServeCmd.Flags().Bool("watch", false, "reload the dataset file when it changes")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if analysisService == nil {
		return errors.New("analysis service not configured")
	}
	addr, err := cmd.Flags().GetString("http")
	if err != nil {
		return fmt.Errorf("getting http flag: %w", err)
	}
	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return fmt.Errorf("getting watch flag: %w", err)
	}

	ctx := cmd.Context()
	if err := ensureIndex(ctx); err != nil {
		return err
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Analysis:  analysisService,
		Answer:    answerService,
		Query:     queryService,
		Telemetry: telemetryService,
	})
	if err != nil {
		return err
	}
	startWatcher(ctx, watch)

	if addr != "" {
		// Stdout belongs to the protocol in stdio mode only.
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}
	return server.Run(ctx)
}
