// Package cli implements the fuzzycleanse command line tool.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/FuzzyCleanse/internal/logging"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "fuzzycleanse",
		Short:         "Join tabular files on shared columns and filter the rows.",
		Long:          "Join CSV and Excel files on the columns they share, then keep or drop rows by exact or fuzzy keyword rules.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			format, _ := cmd.Flags().GetString("log-format")
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), level, format))
		},
	}

	root.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn or error")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")
	root.PersistentFlags().String("fallback", "abort", "what to do when files share no column: abort or stack")

	root.AddCommand(newPlanCommand(), newFilterCommand())
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		root.PrintErrln(formatError(err))
		os.Exit(1)
	}
}
