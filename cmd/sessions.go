package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DuongD0/multimodal-rag/internal/app"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := app.Setup(cmd.Context(), cfg, newLogger())
		if err != nil {
			return fmt.Errorf("initializing application: %w", err)
		}
		defer func() { _ = a.Close() }()

		sessions, err := a.Sessions.List(cmd.Context(), 50, 0)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No sessions.")
			return nil
		}
		for _, s := range sessions {
			title := s.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Fprintf(out, "%s  %s  %s\n",
				s.ID, s.UpdatedAt.Format("2006-01-02 15:04"), title)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a chat session and its messages",
	Args:  cobra.ExactArgs(1),
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

		if err := a.Sessions.Delete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
