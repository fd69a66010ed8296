package cli

import (
	"github.com/spf13/cobra"

	"github.com/dshills/neurosearch/internal/storage"
)

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("neurosearch version %s\n", opts.build.Version)
			if opts.build.BuildTime != "" {
				cmd.Printf("Build Time: %s\n", opts.build.BuildTime)
			}
			cmd.Printf("Build Mode: %s\n", storage.BuildMode)
			cmd.Printf("SQLite Driver: %s\n", storage.DriverName)
		},
	}
}
