package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/FuzzyCleanse/internal/core"
	"github.com/JonMunkholm/FuzzyCleanse/internal/join"
	"github.com/JonMunkholm/FuzzyCleanse/internal/loader"
)

func newPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan FILE...",
		Short: "Show how the given files would be consolidated.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fallback, err := fallbackFlag(cmd)
			if err != nil {
				return err
			}

			uploads, closeAll, err := openFiles(args)
			if err != nil {
				return err
			}
			defer closeAll()

			tables, err := core.LoadTables(cmd.Context(), uploads, loader.Options{})
			if err != nil {
				return err
			}
			_, sum, err := core.BuildConsolidatedTable(tables, fallback)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, t := range tables {
				fmt.Fprintf(out, "source    %s (%d rows, %d fields)\n", t.Name(), t.Len(), t.Width())
			}
			fmt.Fprintf(out, "strategy  %s\n", sum.Strategy)
			if len(sum.Keys) > 0 {
				fmt.Fprintf(out, "keys      %s\n", strings.Join(sum.Keys, ", "))
			}
			fmt.Fprintf(out, "fields    %s\n", strings.Join(sum.Fields, ", "))
			fmt.Fprintf(out, "rows      %d\n", sum.OutputRows)
			return nil
		},
	}
}

func fallbackFlag(cmd *cobra.Command) (join.Fallback, error) {
	s, err := cmd.Flags().GetString("fallback")
	if err != nil {
		return "", err
	}
	return join.ParseFallback(s)
}
