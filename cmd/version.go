package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information, injected at build time via ldflags.
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "mmrag v%s\n", Version)
		fmt.Fprintf(out, "Build: %s\n", BuildTime)
		fmt.Fprintf(out, "Commit: %s\n", GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
