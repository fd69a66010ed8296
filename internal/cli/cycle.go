package cli

import (
	"github.com/spf13/cobra"
)

func newCycleCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run a single poll cycle and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := opts.open(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats, err := a.Indexer.RunCycle(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, stats)
			}
			cmd.Printf("listed %d, ingested %d, skipped %d, unsupported %d, duplicates %d, failed %d (%s)\n",
				stats.Listed, stats.Ingested, stats.Skipped, stats.Unsupported,
				stats.Duplicates, stats.Failed, stats.Duration)
			for _, msg := range stats.ErrorMessages {
				cmd.Printf("  error: %s\n", msg)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print statistics as JSON")
	return cmd
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay the recovery cache into the stores",
		Long: `Re-upserts every cached vector into the vector index and restores
missing metadata records. Entries whose input hash or dimension no longer
matches are reported as stale and left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a, err := opts.open(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			report, err := a.Indexer.Reconcile(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, report)
			}
			cmd.Printf("entries %d, upserted %d, restored %d, conflicts %d, stale %d, drifted %d, corrupt %d, failed %d (%s)\n",
				report.Entries, report.Upserted, report.Restored, report.Conflicts,
				report.Stale, report.Drifted, report.Corrupt, report.Failed, report.Duration)
			for _, msg := range report.ErrorMessages {
				cmd.Printf("  error: %s\n", msg)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
