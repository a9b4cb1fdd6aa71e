package cli

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/FuzzyCleanse/internal/core"
	"github.com/JonMunkholm/FuzzyCleanse/internal/export"
	"github.com/JonMunkholm/FuzzyCleanse/internal/similarity"
)

func newFilterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter FILE...",
		Short: "Consolidate the given files and write the rows that pass every rule.",
		Example: `  fuzzycleanse filter orders.csv customers.xlsx \
      --rule 'country:include:exact=France,Italy' \
      --rule 'name:exclude:fuzzy:85=test,dummy' -o cleaned.xlsx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runFilter,
	}

	cmd.Flags().StringArrayP("rule", "r", nil, "filter rule field:include|exclude:exact|fuzzy[:threshold]=kw1,kw2 (repeatable)")
	cmd.Flags().StringP("output", "o", "", "output file; .csv or .xlsx (default: CSV on stdout)")
	cmd.Flags().String("scorer", similarity.NameRatio, "fuzzy scorer: ratio or partial")
	cmd.Flags().Float64("threshold", 0, "default fuzzy threshold in [0,100] (0 selects 80)")
	return cmd
}

func runFilter(cmd *cobra.Command, args []string) error {
	var (
		rawRules, _  = cmd.Flags().GetStringArray("rule")
		output, _    = cmd.Flags().GetString("output")
		scorer, _    = cmd.Flags().GetString("scorer")
		threshold, _ = cmd.Flags().GetFloat64("threshold")
	)

	fallback, err := fallbackFlag(cmd)
	if err != nil {
		return err
	}

	rules := make([]ruleSpec, 0, len(rawRules))
	for _, raw := range rawRules {
		spec, err := parseRuleSpec(raw)
		if err != nil {
			return err
		}
		rules = append(rules, spec)
	}

	format := export.FormatCSV
	if output != "" && output != "-" {
		format, err = export.ParseFormat(strings.ToLower(strings.TrimPrefix(filepath.Ext(output), ".")))
		if err != nil {
			return err
		}
	}

	svc, err := core.NewService(core.Options{
		MaxFiles:         len(args),
		DefaultThreshold: threshold,
		Scorer:           scorer,
		Fallback:         fallback,
	}, nil)
	if err != nil {
		return err
	}

	uploads, closeAll, err := openFiles(args)
	if err != nil {
		return err
	}
	defer closeAll()

	ctx := cmd.Context()
	sess, err := svc.CreateSession(ctx, uploads)
	if err != nil {
		return err
	}
	for _, r := range rules {
		if err := svc.SetFilterRule(sess.ID, r.Field, r.Mode, r.Match, r.Keywords, r.Threshold); err != nil {
			return err
		}
	}

	res, err := svc.RunFilter(ctx, sess.ID)
	if err != nil {
		return err
	}
	if len(res.MissingFields) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: no such field, rule ignored: %s\n", strings.Join(res.MissingFields, ", "))
	}

	// Render fully before touching the output file so a failure leaves no
	// partial file behind.
	var buf bytes.Buffer
	if err := export.Write(&buf, res.Table, format); err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), output, buf.Bytes()); err != nil {
		return err
	}

	slog.Info("filter complete",
		"strategy", sess.Join.Strategy,
		"input_rows", res.InputRows,
		"output_rows", res.OutputRows,
		"output", output,
	)
	if output != "" && output != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d rows kept, written to %s\n", res.OutputRows, res.InputRows, output)
	}
	return nil
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// openFiles opens every path as an upload. The returned func closes them.
func openFiles(paths []string) ([]core.Upload, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	uploads := make([]core.Upload, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		files = append(files, f)
		uploads = append(uploads, core.Upload{Name: filepath.Base(p), Reader: f})
	}
	return uploads, closeAll, nil
}

// formatError renders err the way the web UI does, with its error code.
func formatError(err error) string {
	if !core.IsUserFacing(err) {
		return "error: " + err.Error()
	}
	return "error: " + core.FormatUserError(err) + "\n  " + err.Error()
}
