package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/spf13/cobra"

	"github.com/DuongD0/multimodal-rag/internal/app"
)

var askSessionID string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a one-shot question",
	Long: `Sends a single question through the agent and streams the answer to
stdout. The agent may call the knowledge base tools to ground its
answer. Pass --session to continue an existing conversation.`,
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

		question := strings.Join(args, " ")

		sessionID := askSessionID
		if sessionID == "" {
			sess, err := a.Sessions.Create(cmd.Context(), "", cfg.ModelName)
			if err != nil {
				return fmt.Errorf("creating session: %w", err)
			}
			sessionID = sess.ID
		}

		out := cmd.OutOrStdout()
		_, err = a.Agent.ExecuteStream(cmd.Context(), sessionID, question,
			func(_ context.Context, chunk *ai.ModelResponseChunk) error {
				for _, p := range chunk.Content {
					fmt.Fprint(out, p.Text)
				}
				return nil
			})
		if err != nil {
			return fmt.Errorf("executing question: %w", err)
		}
		fmt.Fprintln(out)
		fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", sessionID)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "", "continue an existing session")
	rootCmd.AddCommand(askCmd)
}
