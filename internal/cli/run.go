package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dshills/neurosearch/internal/app"
)

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the ingestion worker",
		Long: `Polls the object store on the configured interval and ingests new
documents. With reconcile_on_start the recovery cache is replayed first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApp(cmd, opts, true, (*app.App).RunWorker)
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP search API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApp(cmd, opts, false, (*app.App).RunServer)
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the ingestion worker and the HTTP API together",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApp(cmd, opts, true, (*app.App).RunAll)
		},
	}
}

func runApp(cmd *cobra.Command, opts *rootOptions, ingest bool, run func(*app.App, context.Context) error) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := opts.open(cmd, ingest)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return run(a, ctx)
}
