package core

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "plain fields",
			line: "K-0039,Yellowstone National Park,1",
			want: []string{"K-0039", "Yellowstone National Park", "1"},
		},
		{
			name: "quoted comma",
			line: `K-0039,"Wyoming, US",291`,
			want: []string{"K-0039", "Wyoming, US", "291"},
		},
		{
			name: "escaped quote",
			line: `"The ""Big"" Park",x`,
			want: []string{`The "Big" Park`, "x"},
		},
		{
			name: "fields are trimmed",
			line: "  K-0039 ,  Yellowstone  ",
			want: []string{"K-0039", "Yellowstone"},
		},
		{
			name: "empty line",
			line: "",
			want: []string{""},
		},
		{
			name: "trailing comma",
			line: "a,b,",
			want: []string{"a", "b", ""},
		},
		{
			name: "only commas",
			line: ",,",
			want: []string{"", "", ""},
		},
		{
			name: "unterminated quote swallows the rest",
			line: `a,"b,c`,
			want: []string{"a", "b,c"},
		},
		{
			name: "quotes mid-field",
			line: `ab"c,d"e,f`,
			want: []string{"abc,de", "f"},
		},
		{
			name: "multibyte runes",
			line: "VE-0001,Forêt Montmorency",
			want: []string{"VE-0001", "Forêt Montmorency"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestTokenize_AlwaysAtLeastOneField(t *testing.T) {
	inputs := []string{"", " ", `"`, `""`, ",", "x", `"a""`}
	for _, in := range inputs {
		if got := Tokenize(in); len(got) < 1 {
			t.Errorf("Tokenize(%q) returned %d fields, want >= 1", in, len(got))
		}
	}
}

func TestTokenize_RoundTrip(t *testing.T) {
	rows := [][]string{
		{"K-0039", "Yellowstone National Park", "1", "291"},
		{"VE-0001", "Forêt", "0", ""},
		{"single"},
	}

	for _, fields := range rows {
		line := strings.Join(fields, ",")
		if got := Tokenize(line); !reflect.DeepEqual(got, fields) {
			t.Errorf("round trip of %q = %q, want %q", line, got, fields)
		}
	}
}
