package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// ============================================================================
// Line Handling Benchmarks
// ============================================================================

// BenchmarkTokenize benchmarks splitting a single line.
// This runs once per data row during every import.
func BenchmarkTokenize(b *testing.B) {
	tests := []struct {
		name string
		line string
	}{
		{"plain", "K-0039,Yellowstone National Park,1,291,US-WY,44.4280,-110.5885,DN44"},
		{"quoted", `K-0039,Yellowstone National Park,1,291,"Wyoming, US",44.4280,-110.5885,DN44`},
		{"escaped", `K-0001,"The ""Big"" Park, North",1,291,"Alaska, US",61.0,-150.0,BP51`},
	}

	for _, tt := range tests {
		b.Run(tt.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				Tokenize(tt.line)
			}
		})
	}
}

// BenchmarkMakeHeaderIndex benchmarks header index creation.
// Called once per file to build the column lookup map.
func BenchmarkMakeHeaderIndex(b *testing.B) {
	headers := Tokenize("reference,name,active,entityId,locationDesc,latitude,longitude,grid")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		MakeHeaderIndex(headers)
	}
}

// BenchmarkExtractRow benchmarks pulling the known columns from a row.
func BenchmarkExtractRow(b *testing.B) {
	idx := MakeHeaderIndex(Tokenize(benchHeader))
	fields := Tokenize(`K-0039,Yellowstone National Park,1,291,"Wyoming, US",44.4280,-110.5885,DN44`)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ExtractRow(fields, idx)
	}
}

// ============================================================================
// Validation Benchmarks
// ============================================================================

// BenchmarkValidateRow benchmarks row validation for a valid row and for a
// row that fails every check.
func BenchmarkValidateRow(b *testing.B) {
	valid := RawRow{
		Reference: "K-0039", Name: "Yellowstone National Park", Active: "1",
		EntityID: "291", LocationDesc: "Wyoming, US",
		Latitude: "44.4280", Longitude: "-110.5885", Grid: "DN44",
	}
	invalid := RawRow{Reference: "bad", Latitude: "north", Longitude: "west", Grid: "Z"}

	b.Run("valid", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			ValidateRow(valid, 2)
		}
	})

	b.Run("invalid", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			ValidateRow(invalid, 2)
		}
	})
}

// BenchmarkValidateRowParallel benchmarks validation under concurrency.
// ValidateRow shares only the compiled regexes.
func BenchmarkValidateRowParallel(b *testing.B) {
	row := RawRow{Reference: "VE-12345", Name: "Algonquin", Latitude: "45.5", Longitude: "-78.5", Grid: "fn05"}

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			ValidateRow(row, 2)
		}
	})
}

// ============================================================================
// Stream Benchmarks
// ============================================================================

// BenchmarkSanitizeUTF8_LargeDataset benchmarks the sanitizer on clean input.
func BenchmarkSanitizeUTF8_LargeDataset(b *testing.B) {
	// ~40KB of valid UTF-8 with accented park names
	data := bytes.Repeat([]byte("VE-0001,Forêt Montmorency,1,1,\"Québec, CA\",47.3,-71.1,FN47\n"), 700)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		io.Copy(io.Discard, NewStreamingUTF8Sanitizer(bytes.NewReader(data)))
	}
}

// BenchmarkWrapForStreaming_Windows1252 benchmarks the decoding chain.
func BenchmarkWrapForStreaming_Windows1252(b *testing.B) {
	data := bytes.Repeat([]byte("VE-0001,For\xeat Montmorency,1,1,\"Qu\xe9bec, CA\",47.3,-71.1,FN47\n"), 700)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, r, err := WrapForStreaming(bytes.NewReader(data), int64(len(data)), EncodingWindows1252)
		if err != nil {
			b.Fatal(err)
		}
		io.Copy(io.Discard, r)
	}
}

// ============================================================================
// Parser and Importer Benchmarks
// ============================================================================

const benchHeader = "reference,name,active,entityId,locationDesc,latitude,longitude,grid"

// generateParkCSV generates a park file with the given number of rows.
// Every tenth row is invalid.
func generateParkCSV(rows int) []byte {
	var buf bytes.Buffer
	buf.WriteString(benchHeader + "\n")
	for i := 0; i < rows; i++ {
		if i%10 == 9 {
			fmt.Fprintf(&buf, "BAD-%d,,1,291,,north,west,ZZ\n", i)
			continue
		}
		fmt.Fprintf(&buf, "K-%04d,Park %d,1,291,\"Wyoming, US\",44.%04d,-110.%04d,DN44\n", i%10000, i, i%10000, i%10000)
	}
	return buf.Bytes()
}

// BenchmarkParse benchmarks a full parse of an in-memory file.
func BenchmarkParse(b *testing.B) {
	for _, rows := range []int{100, 10000} {
		data := generateParkCSV(rows)
		b.Run(fmt.Sprintf("rows=%d", rows), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := (&Parser{}).Parse(context.Background(), bytes.NewReader(data), nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkParse_VsEncodingCSV compares the line parser with encoding/csv
// reading the same data row by row.
func BenchmarkParse_VsEncodingCSV(b *testing.B) {
	data := generateParkCSV(5000)

	b.Run("Parser", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			(&Parser{}).Parse(context.Background(), bytes.NewReader(data), nil)
		}
	})

	b.Run("encoding/csv", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			r := csv.NewReader(bytes.NewReader(data))
			r.FieldsPerRecord = -1
			for {
				if _, err := r.Read(); err == io.EOF {
					break
				}
			}
		}
	})
}

// BenchmarkImport benchmarks the importer end to end with a no-op sink.
func BenchmarkImport(b *testing.B) {
	data := generateParkCSV(10000)
	path := writeBenchFile(b, data)
	discard := func(_ context.Context, parks []NormalizedPark) (int, error) {
		return len(parks), nil
	}

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := (&Importer{Parser: &Parser{}}).Import(context.Background(), path, discard, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func writeBenchFile(b *testing.B, data []byte) string {
	b.Helper()
	path := filepath.Join(b.TempDir(), "parks.csv")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		b.Fatal(err)
	}
	return path
}
