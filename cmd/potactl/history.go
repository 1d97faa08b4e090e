package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent imports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		svc, st, err := openService(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := svc.ImportHistory(ctx, historyLimit)
		if err != nil {
			return eris.Wrap(err, "import history")
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tFILE\tSTATUS\tROWS\tIMPORTED\tDURATION\tERROR")
		for _, rec := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				rec.ImportedAt.Local().Format("2006-01-02 15:04"),
				rec.FileName, rec.Status, rec.TotalRows, rec.Imported,
				(time.Duration(rec.DurationMs) * time.Millisecond).String(),
				rec.Error,
			)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of imports to show")
	rootCmd.AddCommand(historyCmd)
}
