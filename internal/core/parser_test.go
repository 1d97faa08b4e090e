package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"testing/iotest"
	"time"
)

const parkHeader = "reference,name,active,entityId,locationDesc,latitude,longitude,grid"

// writeParkFile writes content to a temp file and returns its path.
func writeParkFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parks.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write park file: %v", err)
	}
	return path
}

// parkLines builds n valid data rows.
func parkLines(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "K-%04d,Park %d,1,291,\"Wyoming, US\",44.0,-110.0,DN44\n", i+1, i+1)
	}
	return b.String()
}

func TestParser_ScenarioA(t *testing.T) {
	path := writeParkFile(t, parkHeader+"\n"+
		`K-0039,Yellowstone National Park,1,291,"Wyoming, US",44.4280,-110.5885,DN44`+"\n")

	res, err := (&Parser{}).ParseFile(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if res.TotalRows != 1 || res.ValidRows != 1 || res.InvalidRows != 0 {
		t.Fatalf("counts = %d/%d/%d, want 1/1/0", res.TotalRows, res.ValidRows, res.InvalidRows)
	}
	p := res.Parks[0]
	if p.Reference != "K-0039" || *p.State != "Wyoming" || *p.Country != "US" || *p.Latitude != 44.428 || p.IsActive != 1 {
		t.Errorf("park = %+v, want Yellowstone normalized", p)
	}
}

func TestParser_ScenarioB(t *testing.T) {
	path := writeParkFile(t, parkHeader+"\n"+
		`K0039,Yellowstone National Park,1,291,"Wyoming, US",44.4280,-110.5885,DN44`+"\n")

	res, err := (&Parser{}).ParseFile(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if len(res.Parks) != 0 {
		t.Errorf("got %d parks, want 0", len(res.Parks))
	}
	if len(res.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(res.Errors))
	}
	e := res.Errors[0]
	if e.Line != 2 {
		t.Errorf("Line = %d, want 2", e.Line)
	}
	if e.Row.Reference != "K0039" {
		t.Errorf("Row.Reference = %q, want K0039", e.Row.Reference)
	}
	if len(e.Errors) == 0 || !strings.Contains(e.Errors[0], "Invalid park reference format: K0039") {
		t.Errorf("Errors = %q, want reference format error", e.Errors)
	}
}

func TestParser_BlankLinesAdvanceLineNumbers(t *testing.T) {
	content := "\n" + parkHeader + "\r\n" +
		"K-0001,First,1,,,,,\r\n" +
		"\r\n" +
		"   \n" +
		"K-0002,,1,,,,,\r\n" +
		"K-0003,Third,1,,,,,"

	res, err := (&Parser{}).Parse(context.Background(), strings.NewReader(content), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if res.TotalRows != 3 || res.ValidRows != 2 || res.InvalidRows != 1 {
		t.Fatalf("counts = %d/%d/%d, want 3/2/1", res.TotalRows, res.ValidRows, res.InvalidRows)
	}
	if res.Errors[0].Line != 6 {
		t.Errorf("error line = %d, want 6", res.Errors[0].Line)
	}
	if res.Parks[1].Name != "Third" {
		t.Errorf("last park name = %q, want Third (no trailing newline)", res.Parks[1].Name)
	}
	if res.Parks[0].Name != "First" {
		t.Errorf("first park name = %q, want First without CR", res.Parks[0].Name)
	}
}

func TestParser_HeaderOnlyAndEmpty(t *testing.T) {
	for name, content := range map[string]string{
		"header only": parkHeader + "\n",
		"empty file":  "",
		"blank lines": "\n\n\n",
	} {
		t.Run(name, func(t *testing.T) {
			res, err := (&Parser{}).Parse(context.Background(), strings.NewReader(content), nil)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if res.TotalRows != 0 || res.ValidRows != 0 || res.InvalidRows != 0 {
				t.Errorf("counts = %d/%d/%d, want zeros", res.TotalRows, res.ValidRows, res.InvalidRows)
			}
		})
	}
}

func TestParser_BOMAndEncoding(t *testing.T) {
	t.Run("utf-8 BOM before header", func(t *testing.T) {
		content := "\xEF\xBB\xBF" + parkHeader + "\nK-0001,Park,1,,,,,\n"
		res, err := (&Parser{}).Parse(context.Background(), strings.NewReader(content), nil)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if res.ValidRows != 1 {
			t.Errorf("ValidRows = %d, want 1 (BOM must not corrupt the reference column)", res.ValidRows)
		}
	})

	t.Run("windows-1252", func(t *testing.T) {
		content := parkHeader + "\nVE-0001,For\xEAt,1,,,,,\n"
		p := &Parser{Encoding: EncodingWindows1252}
		res, err := p.Parse(context.Background(), strings.NewReader(content), nil)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if res.ValidRows != 1 || res.Parks[0].Name != "Forêt" {
			t.Errorf("parks = %+v, want one park named Forêt", res.Parks)
		}
	})

	t.Run("unknown encoding", func(t *testing.T) {
		p := &Parser{Encoding: "ebcdic"}
		if _, err := p.Parse(context.Background(), strings.NewReader(parkHeader), nil); err == nil {
			t.Fatal("Parse() error = nil, want unsupported encoding")
		}
	})
}

func TestParser_CountsAddUpAndIdempotent(t *testing.T) {
	content := parkHeader + "\n" + parkLines(40) +
		"bad,,,,,,,\n" +
		"K-9999,Too Far North,1,,,95,,\n"
	path := writeParkFile(t, content)
	p := &Parser{}

	first, err := p.ParseFile(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("first ParseFile() error = %v", err)
	}
	second, err := p.ParseFile(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("second ParseFile() error = %v", err)
	}

	if first.ValidRows+first.InvalidRows != first.TotalRows {
		t.Errorf("valid %d + invalid %d != total %d", first.ValidRows, first.InvalidRows, first.TotalRows)
	}
	if first.TotalRows != 42 || first.InvalidRows != 2 {
		t.Errorf("counts = %d total / %d invalid, want 42 / 2", first.TotalRows, first.InvalidRows)
	}
	if first.TotalRows != second.TotalRows || first.ValidRows != second.ValidRows || first.InvalidRows != second.InvalidRows {
		t.Errorf("second parse differs: %+v vs %+v", second, first)
	}
}

func TestParser_ErrorsAreNotCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString(parkHeader + "\n")
	for i := 0; i < 250; i++ {
		b.WriteString("bad,,,,,,,\n")
	}

	res, err := (&Parser{}).Parse(context.Background(), strings.NewReader(b.String()), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Errors) != 250 {
		t.Errorf("got %d errors, want 250", len(res.Errors))
	}
}

func TestParser_Progress(t *testing.T) {
	p := &Parser{ProgressInterval: time.Nanosecond, ProgressEvery: 2}

	var events []ImportProgress
	_, err := p.Parse(context.Background(), strings.NewReader(parkHeader+"\n"+parkLines(5)), func(ev ImportProgress) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []ImportProgress{
		{Phase: PhaseParsing, RecordsProcessed: 2},
		{Phase: PhaseParsing, RecordsProcessed: 4},
		{Phase: PhaseParsing, RecordsProcessed: 5, TotalRecords: 5},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events %+v, want %d", len(events), events, len(want))
	}
	for i := range want {
		got := events[i]
		got.Message = ""
		if got != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestParser_ProgressReportsBytesRead(t *testing.T) {
	content := parkHeader + "\n" + parkLines(3)

	tests := []struct {
		name string
		open func(t *testing.T) io.Reader
		want string
	}{
		{
			name: "file size known from Stat",
			open: func(t *testing.T) io.Reader {
				f, err := os.Open(writeParkFile(t, content))
				if err != nil {
					t.Fatal(err)
				}
				t.Cleanup(func() { f.Close() })
				return f
			},
			want: "100% of file read",
		},
		{
			name: "size known from reader",
			open: func(*testing.T) io.Reader { return strings.NewReader(content) },
			want: "100% of file read",
		},
		{
			name: "size unknown",
			open: func(*testing.T) io.Reader { return io.MultiReader(strings.NewReader(content)) },
			want: fmt.Sprintf("%d bytes read", len(content)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var last ImportProgress
			_, err := (&Parser{}).Parse(context.Background(), tt.open(t), func(ev ImportProgress) { last = ev })
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if last.Message != tt.want {
				t.Errorf("final message = %q, want %q", last.Message, tt.want)
			}
		})
	}
}

func TestParser_MissingColumns(t *testing.T) {
	res, err := (&Parser{}).Parse(context.Background(),
		strings.NewReader("Reference,NAME,latitude\nK-0039,Yellowstone,44.4\n"), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []string{"active", "entityId", "locationDesc", "longitude", "grid"}
	if !slices.Equal(res.MissingColumns, want) {
		t.Errorf("MissingColumns = %v, want %v", res.MissingColumns, want)
	}
	if res.ValidRows != 1 {
		t.Errorf("ValidRows = %d, want 1; absent columns are not an error", res.ValidRows)
	}

	full, err := (&Parser{}).Parse(context.Background(), strings.NewReader(parkHeader+"\n"), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if full.MissingColumns != nil {
		t.Errorf("MissingColumns = %v, want nil for a complete header", full.MissingColumns)
	}
}

func TestParser_ProgressThrottled(t *testing.T) {
	p := &Parser{ProgressInterval: time.Hour, ProgressEvery: 1}

	var events []ImportProgress
	_, err := p.Parse(context.Background(), strings.NewReader(parkHeader+"\n"+parkLines(300)), func(ev ImportProgress) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(events) != 1 || events[0].TotalRecords != 300 {
		t.Errorf("events = %+v, want only the final event", events)
	}
}

func TestParser_MissingFile(t *testing.T) {
	_, err := (&Parser{}).ParseFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), nil)
	if err == nil {
		t.Fatal("ParseFile() error = nil, want error")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
	if !strings.HasPrefix(err.Error(), "open park file") {
		t.Errorf("error = %q, want open park file prefix", err)
	}
}

func TestParser_ReadErrorMidStream(t *testing.T) {
	boom := errors.New("disk on fire")
	r := io.MultiReader(strings.NewReader(parkHeader+"\n"), iotest.ErrReader(boom))

	_, err := (&Parser{}).Parse(context.Background(), r, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Parse() error = %v, want %v", err, boom)
	}
	if !strings.Contains(err.Error(), "read park file line 2") {
		t.Errorf("error = %q, want line number", err)
	}
}

func TestParser_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Parser{}).Parse(ctx, strings.NewReader(parkHeader+"\n"+parkLines(3)), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Parse() error = %v, want context.Canceled", err)
	}
}
