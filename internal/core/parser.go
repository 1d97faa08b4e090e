package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/JonMunkholm/pota/internal/logging"
)

// Parser defaults.
const (
	DefaultProgressInterval = 500 * time.Millisecond
	DefaultProgressEvery    = 100
)

const parserBufferSize = 64 * 1024

// Parser streams a park CSV file line by line, validating each row.
// The zero value is ready to use.
type Parser struct {
	// ProgressInterval is the minimum time between parsing-phase progress
	// events.
	ProgressInterval time.Duration

	// ProgressEvery is how many rows pass between clock checks.
	ProgressEvery int

	// Encoding names the input character set. Empty means UTF-8.
	Encoding string
}

func (p *Parser) interval() time.Duration {
	if p == nil || p.ProgressInterval <= 0 {
		return DefaultProgressInterval
	}
	return p.ProgressInterval
}

func (p *Parser) every() int {
	if p == nil || p.ProgressEvery <= 0 {
		return DefaultProgressEvery
	}
	return p.ProgressEvery
}

func (p *Parser) encoding() string {
	if p == nil {
		return ""
	}
	return p.Encoding
}

// ParseFile opens path and parses it. The file is closed before returning.
func (p *Parser) ParseFile(ctx context.Context, path string, onProgress ProgressCallback) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open park file: %w", err)
	}
	defer f.Close()

	return p.Parse(ctx, f, onProgress)
}

// Parse reads park rows from r until EOF.
//
// The first non-blank line is the header. Blank lines are skipped but still
// count toward line numbers reported in RowValidationError. A read failure or
// context cancellation aborts the parse with an error; rows parsed so far are
// discarded. Parsing-phase events carry how much of the input has been read.
func (p *Parser) Parse(ctx context.Context, r io.Reader, onProgress ProgressCallback) (*ParseResult, error) {
	counter, stream, err := WrapForStreaming(r, inputSize(r), p.encoding())
	if err != nil {
		return nil, fmt.Errorf("open park file: %w", err)
	}
	br := bufio.NewReaderSize(stream, parserBufferSize)

	emit := func(processed, total int) {
		if onProgress != nil {
			onProgress(ImportProgress{
				Phase:            PhaseParsing,
				RecordsProcessed: processed,
				TotalRecords:     total,
				Message:          readMessage(counter),
			})
		}
	}

	var (
		result     = &ParseResult{}
		header     HeaderIndex
		lineNumber int
		interval   = p.interval()
		every      = p.every()
		lastEmit   = time.Now()
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("read park file line %d: %w", lineNumber+1, err)
		}

		line, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("read park file line %d: %w", lineNumber+1, readErr)
		}
		atEOF := readErr != nil
		if atEOF && line == "" {
			break
		}

		lineNumber++
		line = strings.TrimRight(line, "\r\n")

		if strings.TrimSpace(line) != "" {
			if header == nil {
				header = MakeHeaderIndex(Tokenize(line))
				if missing := header.Missing(); len(missing) > 0 {
					result.MissingColumns = missing
					logging.FromContext(ctx).Warn("park file header is missing columns", "missing", missing)
				}
			} else {
				result.TotalRows++
				p.parseRow(result, line, lineNumber, header)

				if result.TotalRows%every == 0 && time.Since(lastEmit) >= interval {
					emit(result.TotalRows, 0)
					lastEmit = time.Now()
				}
			}
		}

		if atEOF {
			break
		}
	}

	logging.FromContext(ctx).Debug("park file parsed",
		"rows", result.TotalRows,
		"invalid_rows", result.InvalidRows,
		"bytes_read", counter.BytesRead,
	)
	emit(result.TotalRows, result.TotalRows)
	return result, nil
}

// inputSize returns the byte length of r when it is known up front, else 0.
func inputSize(r io.Reader) int64 {
	switch v := r.(type) {
	case interface{ Stat() (os.FileInfo, error) }:
		if fi, err := v.Stat(); err == nil {
			return fi.Size()
		}
	case interface{ Size() int64 }:
		return v.Size()
	}
	return 0
}

// readMessage describes how much raw input has been consumed.
func readMessage(c *StreamingCountingReader) string {
	if c.Total > 0 {
		return fmt.Sprintf("%d%% of file read", c.Progress())
	}
	return fmt.Sprintf("%d bytes read", c.BytesRead)
}

func (p *Parser) parseRow(result *ParseResult, line string, lineNumber int, header HeaderIndex) {
	row := ExtractRow(Tokenize(line), header)
	v := ValidateRow(row, lineNumber)
	if v.Valid() {
		result.Parks = append(result.Parks, *v.Park)
		result.ValidRows++
		return
	}
	result.Errors = append(result.Errors, RowValidationError{
		Line:   lineNumber,
		Row:    row,
		Errors: v.Errors,
	})
	result.InvalidRows++
}
