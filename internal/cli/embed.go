package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/neurosearch/internal/config"
	"github.com/dshills/neurosearch/internal/embedder"
	"github.com/dshills/neurosearch/internal/logger"
)

// newEmbedCmd checks the configured embedding provider end to end
func newEmbedCmd(opts *rootOptions) *cobra.Command {
	var show int
	cmd := &cobra.Command{
		Use:   "embed [text]",
		Short: "Embed text with the configured provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logger.New(cfg.Log, cmd.ErrOrStderr())

			emb, err := embedder.New(cmd.Context(), embedder.Config{
				Provider:          cfg.Embedding.Provider,
				APIKey:            cfg.Embedding.APIKey(),
				Model:             cfg.Embedding.Model,
				Endpoint:          cfg.Embedding.Endpoint,
				Dimension:         cfg.Embedding.Dimension,
				RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
			}, log)
			if err != nil {
				return err
			}
			defer func() { _ = emb.Close() }()

			text := embedder.Truncate(args[0], cfg.Ingest.TruncateChars)
			e, err := emb.GenerateEmbedding(cmd.Context(), embedder.EmbeddingRequest{Text: text})
			if err != nil {
				return fmt.Errorf("embedding failed: %w", err)
			}

			cmd.Printf("provider:  %s\n", e.Provider)
			cmd.Printf("model:     %s\n", e.Model)
			cmd.Printf("dimension: %d\n", e.Dimension)
			cmd.Printf("hash:      %s\n", e.Hash)
			n := min(show, len(e.Vector))
			cmd.Printf("vector:    %v\n", e.Vector[:n])
			return nil
		},
	}
	cmd.Flags().IntVar(&show, "show", 8, "number of leading vector components to print")
	return cmd
}
