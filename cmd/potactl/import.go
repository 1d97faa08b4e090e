package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/pota/internal/core"
)

var (
	importFile      string
	importEncoding  string
	importBatchSize int
	importShowErrs  int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a park CSV file into the park database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importEncoding != "" {
			cfg.Import.Encoding = importEncoding
		}
		if importBatchSize > 0 {
			cfg.Import.BatchSize = importBatchSize
		}

		svc, st, err := openService(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := svc.RunImport(ctx, importFile, progressLogger())
		if err != nil {
			return eris.Wrapf(err, "import %s", importFile)
		}

		printResult(cmd.OutOrStdout(), res, importShowErrs)
		return nil
	},
}

// progressLogger logs each phase change, and importing progress per batch.
func progressLogger() core.ProgressCallback {
	var last core.ImportPhase
	return func(p core.ImportProgress) {
		if p.Phase == last && p.Phase != core.PhaseImporting {
			return
		}
		last = p.Phase
		slog.Info("import progress",
			"phase", p.Phase,
			"processed", p.RecordsProcessed,
			"total", p.TotalRecords,
			"percent", p.Percent(),
		)
	}
}

// printResult writes a human-readable import summary and up to maxErrs row
// errors.
func printResult(w io.Writer, res *core.ImportResult, maxErrs int) {
	if res.FileName != "" {
		fmt.Fprintf(w, "File:      %s\n", res.FileName)
	}
	fmt.Fprintf(w, "Rows:      %d\n", res.TotalRows)
	fmt.Fprintf(w, "Valid:     %d\n", res.ValidRows)
	fmt.Fprintf(w, "Invalid:   %d\n", res.InvalidRows)
	fmt.Fprintf(w, "Imported:  %d\n", res.Imported)
	if res.Rejected > 0 {
		fmt.Fprintf(w, "Rejected:  %d\n", res.Rejected)
	}
	if len(res.MissingColumns) > 0 {
		fmt.Fprintf(w, "Missing:   %s\n", strings.Join(res.MissingColumns, ", "))
	}
	fmt.Fprintf(w, "Duration:  %s\n", res.Duration.Round(time.Millisecond))

	if len(res.Errors) == 0 || maxErrs <= 0 {
		return
	}
	fmt.Fprintln(w, "\nRow errors:")
	for i, e := range res.Errors {
		if i == maxErrs {
			fmt.Fprintf(w, "  ... %d more\n", res.InvalidRows-maxErrs)
			break
		}
		for _, msg := range e.Errors {
			fmt.Fprintf(w, "  line %d: %s\n", e.Line, msg)
		}
	}
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "path to the park CSV file (required)")
	importCmd.Flags().StringVar(&importEncoding, "encoding", "", "input encoding: utf-8, windows-1252, iso-8859-1 (default from IMPORT_ENCODING)")
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", 0, "parks per insert batch (default from IMPORT_BATCH_SIZE)")
	importCmd.Flags().IntVar(&importShowErrs, "show-errors", 10, "number of row errors to print")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
