// Package cli implements the neurosearch command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/neurosearch/internal/app"
	"github.com/dshills/neurosearch/internal/config"
	"github.com/dshills/neurosearch/internal/logger"
)

// BuildInfo is stamped into the binary at link time
type BuildInfo struct {
	Version   string
	BuildTime string
}

type rootOptions struct {
	configPath string
	logLevel   string
	build      BuildInfo
}

// NewRootCommand builds the full command tree
func NewRootCommand(build BuildInfo) *cobra.Command {
	if build.Version == "" {
		build.Version = "dev"
	}
	opts := &rootOptions{build: build}

	root := &cobra.Command{
		Use:   "neurosearch",
		Short: "Semantic search over documents in an object store",
		Long: `NeuroSearch polls an object store for PDF, DOCX and plain-text files,
embeds their text and answers natural-language queries with the most
similar documents.

Configuration is read from a TOML file (--config or $NEUROSEARCH_CONFIG),
then a .env file in the working directory, then the environment.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a TOML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the log level (debug, info, warn, error)")

	root.AddCommand(
		newWorkerCmd(opts),
		newServeCmd(opts),
		newRunCmd(opts),
		newCycleCmd(opts),
		newReconcileCmd(opts),
		newSearchCmd(opts),
		newEmbedCmd(opts),
		newMCPCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

// Execute runs the command tree and returns the process exit code
func Execute(build BuildInfo) int {
	if err := NewRootCommand(build).Execute(); err != nil {
		return 1
	}
	return 0
}

// open loads configuration and builds the application. Logs go to the
// command's stderr so stdout stays clean for results and MCP.
func (o *rootOptions) open(cmd *cobra.Command, ingest bool) (*app.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	log := logger.New(cfg.Log, cmd.ErrOrStderr())
	return app.New(cmd.Context(), cfg, log, app.Options{Ingest: ingest, Version: o.build.Version})
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
