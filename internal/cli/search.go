package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/neurosearch/internal/searcher"
	"github.com/dshills/neurosearch/pkg/types"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		topK     int
		pageSize int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search ingested documents",
		Long: `Embeds the query and prints the most similar documents, best first.
The first page is printed as results and the remainder as more.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			resp, err := a.Searcher.Search(cmd.Context(), searcher.SearchRequest{
				Query:    args[0],
				TopK:     topK,
				PageSize: pageSize,
			})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if asJSON {
				return printJSON(cmd, resp)
			}
			printResults(cmd, resp)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "candidates requested from the index (0 uses the configured value)")
	cmd.Flags().IntVarP(&pageSize, "page-size", "n", 0, "results on the first page (0 uses the configured value)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func printResults(cmd *cobra.Command, resp *types.SearchResponse) {
	cmd.Println(resp.Message)
	for i, r := range resp.Primary {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, r.Title, r.Score)
		cmd.Printf("      %s %s\n", r.Type, r.URL)
	}
	if len(resp.More) > 0 {
		cmd.Printf("\n%d more:\n", len(resp.More))
		offset := len(resp.Primary)
		for i, r := range resp.More {
			cmd.Printf("  [%d] %s (%.3f)\n", offset+i+1, r.Title, r.Score)
		}
	}
}
