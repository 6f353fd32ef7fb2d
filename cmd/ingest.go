package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DuongD0/multimodal-rag/internal/app"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest documents into the knowledge base",
	Long: `Extracts text from the given PDF, TXT or Markdown files, splits it
into chunks, embeds them and stores them in the local vector index.
Re-ingesting a file replaces its previous chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := app.Setup(cmd.Context(), cfg, newLogger())
		if err != nil {
			return fmt.Errorf("initializing application: %w", err)
		}
		defer func() { _ = a.Close() }()

		for _, path := range args {
			result, err := a.Ingestor.Ingest(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s: %d pages, %d chunks\n",
				result.Source, result.Pages, result.Chunks)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
