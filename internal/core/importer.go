package core

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Importer defaults.
const (
	DefaultBatchSize         = 500
	DefaultMaxRetainedErrors = 100
)

// Importer runs the parser over a file and hands the valid parks to an
// insert function in fixed-size batches.
//
// An Importer must not run concurrently against the same store; Service
// enforces that with an ImportLimiter.
type Importer struct {
	Parser            *Parser
	BatchSize         int
	MaxRetainedErrors int
}

func (im *Importer) batchSize() int {
	if im.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return im.BatchSize
}

func (im *Importer) maxErrors() int {
	if im.MaxRetainedErrors <= 0 {
		return DefaultMaxRetainedErrors
	}
	return im.MaxRetainedErrors
}

// Import parses path and inserts every valid park through insert.
//
// Progress goes reading, parsing (from the parser), importing, completed.
// Import never emits the error phase; the caller reports failures.
// Parser errors are returned as is. An insert error stops the import and
// batches already inserted stay in place.
func (im *Importer) Import(ctx context.Context, path string, insert InsertBatchFunc, onProgress ProgressCallback) (*ImportResult, error) {
	start := time.Now()
	emit := func(phase ImportPhase, processed, total int) {
		if onProgress != nil {
			onProgress(ImportProgress{Phase: phase, RecordsProcessed: processed, TotalRecords: total})
		}
	}

	emit(PhaseReading, 0, 0)

	parsed, err := im.Parser.ParseFile(ctx, path, onProgress)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{
		TotalRows:      parsed.TotalRows,
		ValidRows:      parsed.ValidRows,
		InvalidRows:    parsed.InvalidRows,
		Errors:         parsed.Errors,
		Skipped:        parsed.InvalidRows,
		MissingColumns: parsed.MissingColumns,
	}
	if limit := im.maxErrors(); len(result.Errors) > limit {
		result.Errors = result.Errors[:limit]
		result.ErrorsTruncated = true
	}

	total := len(parsed.Parks)
	if total == 0 {
		emit(PhaseCompleted, 0, 0)
		result.Duration = time.Since(start)
		return result, nil
	}

	emit(PhaseImporting, 0, total)

	size := im.batchSize()
	for offset := 0; offset < total; offset += size {
		end := min(offset+size, total)
		batch := parsed.Parks[offset:end]

		n, err := insert(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("insert batch at row %d: %w", offset, err)
		}
		result.Imported += max(0, min(n, len(batch)))

		emit(PhaseImporting, end, total)
		runtime.Gosched()
	}

	emit(PhaseCompleted, result.Imported, total)

	result.Rejected = result.ValidRows - result.Imported
	result.Duration = time.Since(start)
	return result, nil
}
