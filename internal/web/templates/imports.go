// Package templates renders the HTML fragments served to HTMX clients.
//
// Components live in .templ files; run `templ generate` after editing them.
package templates

import "github.com/JonMunkholm/pota/internal/core"

// maxSummaryErrors caps the row errors listed in a summary fragment.
const maxSummaryErrors = 20

type summaryCount struct {
	Label string
	Value int
}

func summaryCounts(res *core.ImportResult) []summaryCount {
	return []summaryCount{
		{"Rows", res.TotalRows},
		{"Valid", res.ValidRows},
		{"Invalid", res.InvalidRows},
		{"Imported", res.Imported},
		{"Skipped", res.Skipped},
		{"Rejected", res.Rejected},
	}
}

func shownErrors(res *core.ImportResult) []core.RowValidationError {
	if len(res.Errors) > maxSummaryErrors {
		return res.Errors[:maxSummaryErrors]
	}
	return res.Errors
}

// errorsHidden reports whether the summary lists fewer errors than the file had.
func errorsHidden(res *core.ImportResult) bool {
	return len(res.Errors) > maxSummaryErrors || res.ErrorsTruncated
}
