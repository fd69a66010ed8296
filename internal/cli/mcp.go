package cli

import (
	"github.com/spf13/cobra"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	var ingest bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve search as MCP tools over stdio",
		Long: `Starts a Model Context Protocol server on stdin/stdout exposing
search_documents and ingestion_status. With --ingest the object store is
opened too and run_ingestion_cycle is offered.

Example client configuration:
  {
    "mcpServers": {
      "neurosearch": {
        "command": "/path/to/neurosearch",
        "args": ["mcp"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := opts.open(cmd, ingest)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			return a.MCPServer().Serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&ingest, "ingest", false, "open the object store and offer run_ingestion_cycle")
	return cmd
}
