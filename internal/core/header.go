package core

import "strings"

// Header keys of the park columns, compared after lowercasing.
const (
	colReference    = "reference"
	colName         = "name"
	colActive       = "active"
	colEntityID     = "entityid"
	colLocationDesc = "locationdesc"
	colLatitude     = "latitude"
	colLongitude    = "longitude"
	colGrid         = "grid"
)

// KnownColumns lists the park columns in their canonical export order.
var KnownColumns = []string{
	"reference", "name", "active", "entityId",
	"locationDesc", "latitude", "longitude", "grid",
}

// HeaderIndex maps column names (lowercase) to their position in the CSV row.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a tokenized header row.
// Keys are trimmed and lowercased; a repeated name keeps its last position.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// Has reports whether the header contains the named column.
func (h HeaderIndex) Has(name string) bool {
	_, ok := h[strings.ToLower(name)]
	return ok
}

// Missing returns the known park columns absent from the header, in
// canonical order. Absent columns are not an error; their cells read as "".
func (h HeaderIndex) Missing() []string {
	var missing []string
	for _, col := range KnownColumns {
		if !h.Has(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// cell returns the trimmed value of the named column, or "" when the column
// is unknown or the row is too short.
func (h HeaderIndex) cell(fields []string, name string) string {
	pos, ok := h[name]
	if !ok || pos < 0 || pos >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[pos])
}

// ExtractRow builds a RawRow from a tokenized data line.
// Unknown columns are ignored.
func ExtractRow(fields []string, idx HeaderIndex) RawRow {
	return RawRow{
		Reference:    idx.cell(fields, colReference),
		Name:         idx.cell(fields, colName),
		Active:       idx.cell(fields, colActive),
		EntityID:     idx.cell(fields, colEntityID),
		LocationDesc: idx.cell(fields, colLocationDesc),
		Latitude:     idx.cell(fields, colLatitude),
		Longitude:    idx.cell(fields, colLongitude),
		Grid:         idx.cell(fields, colGrid),
	}
}
