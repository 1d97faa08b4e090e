package core

import (
	"context"
	"time"
)

// ParkReference is a validated POTA park identifier such as "K-0039".
// Values are only produced by ParseParkReference.
type ParkReference string

// GridSquare is a validated, uppercased Maidenhead locator such as "DN44".
// Values are only produced by ParseGridSquare.
type GridSquare string

// NormalizedPark is a validated, insertion-ready park record.
// Optional values are nil when absent or rejected.
type NormalizedPark struct {
	Reference    ParkReference `json:"reference"`
	Name         string        `json:"name"`
	Latitude     *float64      `json:"latitude"`
	Longitude    *float64      `json:"longitude"`
	Grid         *GridSquare   `json:"grid"`
	State        *string       `json:"state"`
	Country      *string       `json:"country"`
	EntityID     *int          `json:"entity_id"`
	LocationDesc *string       `json:"location_desc"`
	IsActive     int           `json:"is_active"`
	IsFavorite   int           `json:"is_favorite"`
}

// RawRow holds the eight known park columns of one CSV line, untyped.
type RawRow struct {
	Reference    string `json:"reference"`
	Name         string `json:"name"`
	Active       string `json:"active"`
	EntityID     string `json:"entity_id"`
	LocationDesc string `json:"location_desc"`
	Latitude     string `json:"latitude"`
	Longitude    string `json:"longitude"`
	Grid         string `json:"grid"`
}

// RowValidationError describes one rejected line.
type RowValidationError struct {
	Line   int      `json:"line"` // 1-based, header included
	Row    RawRow   `json:"row"`
	Errors []string `json:"errors"`
}

// ImportPhase indicates the current stage of import processing.
type ImportPhase string

const (
	PhaseReading   ImportPhase = "reading"
	PhaseParsing   ImportPhase = "parsing"
	PhaseImporting ImportPhase = "importing"
	PhaseCompleted ImportPhase = "completed"
	PhaseError     ImportPhase = "error"
)

// Terminal reports whether no further progress follows this phase.
func (p ImportPhase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseError
}

// ImportProgress is a snapshot of an import operation.
type ImportProgress struct {
	ImportID         string      `json:"import_id,omitempty"`
	Phase            ImportPhase `json:"phase"`
	RecordsProcessed int         `json:"records_processed"`
	TotalRecords     int         `json:"total_records"` // 0 while unknown
	Message          string      `json:"message,omitempty"`
}

// Percent returns the progress as a percentage (0-100).
// Returns 0 while the total is unknown.
func (p ImportProgress) Percent() int {
	if p.TotalRecords <= 0 {
		return 0
	}
	pct := (p.RecordsProcessed * 100) / p.TotalRecords
	if pct > 100 {
		return 100
	}
	return pct
}

// ProgressCallback is called with each progress emission.
// It runs on the importing goroutine and must not block for long.
type ProgressCallback func(ImportProgress)

// InsertBatchFunc persists a batch of parks and returns how many rows the
// store actually wrote.
type InsertBatchFunc func(ctx context.Context, parks []NormalizedPark) (int, error)

// ParseResult is the output of the streaming parser.
type ParseResult struct {
	Parks          []NormalizedPark
	Errors         []RowValidationError
	TotalRows      int
	ValidRows      int
	InvalidRows    int
	MissingColumns []string // known park columns absent from the header
}

// ImportResult contains the final result of an import operation.
type ImportResult struct {
	ImportID        string               `json:"import_id,omitempty"`
	FileName        string               `json:"file_name,omitempty"`
	TotalRows       int                  `json:"total_rows"`
	ValidRows       int                  `json:"valid_rows"`
	InvalidRows     int                  `json:"invalid_rows"`
	Errors          []RowValidationError `json:"errors"`
	ErrorsTruncated bool                 `json:"errors_truncated"`
	Imported        int                  `json:"imported"`
	Skipped         int                  `json:"skipped"`
	Rejected        int                  `json:"rejected"` // valid rows the store did not write
	MissingColumns  []string             `json:"missing_columns,omitempty"`
	Duration        time.Duration        `json:"duration"`
}

// ParkFilter narrows park listings.
type ParkFilter struct {
	Search        string // matches reference prefix or name substring, case-insensitive
	Country       string
	FavoritesOnly bool
	ActiveOnly    bool
	Limit         int
	Offset        int
}

// ImportRecord is one entry of the import history.
type ImportRecord struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	Status      string    `json:"status"` // "completed" or "error"
	TotalRows   int       `json:"total_rows"`
	ValidRows   int       `json:"valid_rows"`
	InvalidRows int       `json:"invalid_rows"`
	Imported    int       `json:"imported"`
	DurationMs  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	ImportedAt  time.Time `json:"imported_at"`
}

// ParkStore is the persistence the Service needs. Implemented by
// internal/store.
type ParkStore interface {
	InsertParks(ctx context.Context, parks []NormalizedPark) (int, error)
	GetPark(ctx context.Context, ref string) (*NormalizedPark, error)
	ListParks(ctx context.Context, filter ParkFilter) ([]NormalizedPark, error)
	CountParks(ctx context.Context) (int64, error)
	SetFavorite(ctx context.Context, ref string, favorite bool) error
	RecordImport(ctx context.Context, rec ImportRecord) error
	ListImports(ctx context.Context, limit int) ([]ImportRecord, error)
}
