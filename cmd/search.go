package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DuongD0/multimodal-rag/internal/app"
	"github.com/DuongD0/multimodal-rag/internal/knowledge"
)

var (
	searchTopK   int
	searchSource string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Long: `Runs a similarity search against the vector index and prints the
matching chunks with their scores. Useful for inspecting retrieval
quality without involving the chat model.`,
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

		query := strings.Join(args, " ")
		opts := []knowledge.SearchOption{}
		if searchTopK > 0 {
			opts = append(opts, knowledge.WithTopK(searchTopK))
		}
		if searchSource != "" {
			opts = append(opts, knowledge.WithSource(searchSource))
		}

		results, err := a.Knowledge.Search(cmd.Context(), query, opts...)
		if err != nil {
			return fmt.Errorf("searching: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, "No results.")
			return nil
		}
		for i, res := range results {
			fmt.Fprintf(out, "[%d] %.4f  %s (page %d)\n%s\n\n",
				i+1, res.Score, res.Chunk.Source, res.Chunk.Page, res.Chunk.Text)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().StringVar(&searchSource, "source", "", "restrict search to one source document")
	rootCmd.AddCommand(searchCmd)
}
