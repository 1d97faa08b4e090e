package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	validateFile   string
	validateStrict bool
	validateErrs   int
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a park CSV file without importing it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		svc, st, err := openService(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := svc.PreviewImport(ctx, validateFile)
		if err != nil {
			return eris.Wrapf(err, "validate %s", validateFile)
		}

		printResult(cmd.OutOrStdout(), res, validateErrs)

		if validateStrict && res.InvalidRows > 0 {
			return eris.Errorf("%d invalid rows", res.InvalidRows)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "path to the park CSV file (required)")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "fail when any row is invalid")
	validateCmd.Flags().IntVar(&validateErrs, "show-errors", 10, "number of row errors to print")
	_ = validateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(validateCmd)
}
