package core

import (
	"slices"
	"strings"
	"testing"
)

func validRow() RawRow {
	return RawRow{
		Reference:    "K-0039",
		Name:         "Yellowstone National Park",
		Active:       "1",
		EntityID:     "291",
		LocationDesc: "Wyoming, US",
		Latitude:     "44.4280",
		Longitude:    "-110.5885",
		Grid:         "DN44",
	}
}

func TestValidateRow_Valid(t *testing.T) {
	v := ValidateRow(validRow(), 2)

	if !v.Valid() || len(v.Errors) != 0 {
		t.Fatalf("ValidateRow() errors = %v, want valid park", v.Errors)
	}
	p := v.Park

	if p.Reference != "K-0039" {
		t.Errorf("Reference = %q, want K-0039", p.Reference)
	}
	if p.State == nil || *p.State != "Wyoming" {
		t.Errorf("State = %v, want Wyoming", p.State)
	}
	if p.Country == nil || *p.Country != "US" {
		t.Errorf("Country = %v, want US", p.Country)
	}
	if p.Latitude == nil || *p.Latitude != 44.428 {
		t.Errorf("Latitude = %v, want 44.428", p.Latitude)
	}
	if p.Longitude == nil || *p.Longitude != -110.5885 {
		t.Errorf("Longitude = %v, want -110.5885", p.Longitude)
	}
	if p.Grid == nil || *p.Grid != "DN44" {
		t.Errorf("Grid = %v, want DN44", p.Grid)
	}
	if p.EntityID == nil || *p.EntityID != 291 {
		t.Errorf("EntityID = %v, want 291", p.EntityID)
	}
	if p.LocationDesc == nil || *p.LocationDesc != "Wyoming, US" {
		t.Errorf("LocationDesc = %v, want %q", p.LocationDesc, "Wyoming, US")
	}
	if p.IsActive != 1 {
		t.Errorf("IsActive = %d, want 1", p.IsActive)
	}
	if p.IsFavorite != 0 {
		t.Errorf("IsFavorite = %d, want 0", p.IsFavorite)
	}
}

func TestValidateRow_Normalization(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*RawRow)
		check func(*testing.T, *NormalizedPark)
	}{
		{
			name: "lowercase reference is canonicalized",
			edit: func(r *RawRow) { r.Reference = "k-0039" },
			check: func(t *testing.T, p *NormalizedPark) {
				if p.Reference != "K-0039" {
					t.Errorf("Reference = %q, want K-0039", p.Reference)
				}
			},
		},
		{
			name: "grid is uppercased",
			edit: func(r *RawRow) { r.Grid = "dn44xk" },
			check: func(t *testing.T, p *NormalizedPark) {
				if p.Grid == nil || *p.Grid != "DN44XK" {
					t.Errorf("Grid = %v, want DN44XK", p.Grid)
				}
			},
		},
		{
			name: "active true in any case",
			edit: func(r *RawRow) { r.Active = "TRUE" },
			check: func(t *testing.T, p *NormalizedPark) {
				if p.IsActive != 1 {
					t.Errorf("IsActive = %d, want 1", p.IsActive)
				}
			},
		},
		{
			name: "active other value is inactive",
			edit: func(r *RawRow) { r.Active = "yes" },
			check: func(t *testing.T, p *NormalizedPark) {
				if p.IsActive != 0 {
					t.Errorf("IsActive = %d, want 0", p.IsActive)
				}
			},
		},
		{
			name: "country falls back to entity id",
			edit: func(r *RawRow) { r.LocationDesc = "" },
			check: func(t *testing.T, p *NormalizedPark) {
				if p.State != nil {
					t.Errorf("State = %v, want nil", *p.State)
				}
				if p.Country == nil || *p.Country != "291" {
					t.Errorf("Country = %v, want 291", p.Country)
				}
				if p.LocationDesc != nil {
					t.Errorf("LocationDesc = %v, want nil", *p.LocationDesc)
				}
			},
		},
		{
			name: "single segment location keeps state only",
			edit: func(r *RawRow) { r.LocationDesc = "US-WY"; r.EntityID = "" },
			check: func(t *testing.T, p *NormalizedPark) {
				if p.State == nil || *p.State != "US-WY" {
					t.Errorf("State = %v, want US-WY", p.State)
				}
				if p.Country != nil {
					t.Errorf("Country = %v, want nil", *p.Country)
				}
			},
		},
		{
			name: "unparsable entity id is silently dropped",
			edit: func(r *RawRow) { r.EntityID = "abc" },
			check: func(t *testing.T, p *NormalizedPark) {
				if p.EntityID != nil {
					t.Errorf("EntityID = %d, want nil", *p.EntityID)
				}
			},
		},
		{
			name: "entity id past int32 is silently dropped",
			edit: func(r *RawRow) { r.EntityID = "4294967587" },
			check: func(t *testing.T, p *NormalizedPark) {
				if p.EntityID != nil {
					t.Errorf("EntityID = %d, want nil", *p.EntityID)
				}
			},
		},
		{
			name: "optional columns may be empty",
			edit: func(r *RawRow) { r.Latitude, r.Longitude, r.Grid = "", "", "" },
			check: func(t *testing.T, p *NormalizedPark) {
				if p.Latitude != nil || p.Longitude != nil || p.Grid != nil {
					t.Errorf("expected nil coordinates and grid, got %v %v %v", p.Latitude, p.Longitude, p.Grid)
				}
			},
		},
		{
			name: "boundary coordinates accepted",
			edit: func(r *RawRow) { r.Latitude, r.Longitude = "-90", "180" },
			check: func(t *testing.T, p *NormalizedPark) {
				if p.Latitude == nil || *p.Latitude != -90 {
					t.Errorf("Latitude = %v, want -90", p.Latitude)
				}
				if p.Longitude == nil || *p.Longitude != 180 {
					t.Errorf("Longitude = %v, want 180", p.Longitude)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := validRow()
			tt.edit(&row)
			v := ValidateRow(row, 2)
			if !v.Valid() {
				t.Fatalf("ValidateRow() errors = %v, want valid", v.Errors)
			}
			tt.check(t, v.Park)
		})
	}
}

func TestValidateRow_Errors(t *testing.T) {
	tests := []struct {
		name       string
		edit       func(*RawRow)
		wantErrors []string
	}{
		{
			name:       "missing reference",
			edit:       func(r *RawRow) { r.Reference = "" },
			wantErrors: []string{"Missing required field: reference"},
		},
		{
			name:       "reference without hyphen",
			edit:       func(r *RawRow) { r.Reference = "K0039" },
			wantErrors: []string{"Invalid park reference format: K0039"},
		},
		{
			name:       "reference with too many digits",
			edit:       func(r *RawRow) { r.Reference = "K-123456" },
			wantErrors: []string{"Invalid park reference format: K-123456"},
		},
		{
			name:       "missing name",
			edit:       func(r *RawRow) { r.Name = "" },
			wantErrors: []string{"Missing required field: name"},
		},
		{
			name:       "latitude out of range",
			edit:       func(r *RawRow) { r.Latitude = "91.0" },
			wantErrors: []string{"Invalid latitude: 91.0"},
		},
		{
			name:       "latitude not a number",
			edit:       func(r *RawRow) { r.Latitude = "north" },
			wantErrors: []string{"Invalid latitude: north"},
		},
		{
			name:       "latitude hex float",
			edit:       func(r *RawRow) { r.Latitude = "0x1p4" },
			wantErrors: []string{"Invalid latitude: 0x1p4"},
		},
		{
			name:       "latitude NaN",
			edit:       func(r *RawRow) { r.Latitude = "NaN" },
			wantErrors: []string{"Invalid latitude: NaN"},
		},
		{
			name:       "longitude infinite",
			edit:       func(r *RawRow) { r.Longitude = "Inf" },
			wantErrors: []string{"Invalid longitude: Inf"},
		},
		{
			name:       "longitude out of range",
			edit:       func(r *RawRow) { r.Longitude = "-180.5" },
			wantErrors: []string{"Invalid longitude: -180.5"},
		},
		{
			name:       "grid keeps original text in message",
			edit:       func(r *RawRow) { r.Grid = "d44" },
			wantErrors: []string{"Invalid grid square format: d44"},
		},
		{
			name: "all errors reported in order",
			edit: func(r *RawRow) {
				r.Reference = "bad"
				r.Name = ""
				r.Latitude = "100"
				r.Longitude = "200"
				r.Grid = "ZZ"
			},
			wantErrors: []string{
				"Invalid park reference format: bad",
				"Missing required field: name",
				"Invalid latitude: 100",
				"Invalid longitude: 200",
				"Invalid grid square format: ZZ",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := validRow()
			tt.edit(&row)
			v := ValidateRow(row, 5)

			if v.Park != nil {
				t.Fatalf("Park = %+v, want nil", v.Park)
			}
			if !slices.Equal(v.Errors, tt.wantErrors) {
				t.Errorf("Errors = %q, want %q", v.Errors, tt.wantErrors)
			}
		})
	}
}

func TestValidateRow_BadReferencesMentionReference(t *testing.T) {
	refs := []string{"K0039", "-0039", "ABCD-0001", "K-39", "K-00A9", "0039-K", "K_0039"}

	for _, ref := range refs {
		row := validRow()
		row.Reference = ref
		v := ValidateRow(row, 2)

		if v.Park != nil {
			t.Errorf("reference %q: got park, want nil", ref)
			continue
		}
		if !slices.ContainsFunc(v.Errors, func(e string) bool { return strings.Contains(e, "reference") }) {
			t.Errorf("reference %q: errors %q do not mention reference", ref, v.Errors)
		}
	}
}

func TestParseParkReference(t *testing.T) {
	tests := []struct {
		in      string
		want    ParkReference
		wantErr bool
	}{
		{"K-0039", "K-0039", false},
		{"ve-12345", "VE-12345", false},
		{"GFF-0001", "GFF-0001", false},
		{"K-039", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseParkReference(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseParkReference(%q) = %q, %v; want %q, wantErr %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestParseGridSquare(t *testing.T) {
	tests := []struct {
		in      string
		want    GridSquare
		wantErr bool
	}{
		{"DN44", "DN44", false},
		{"fn31pr", "FN31PR", false},
		{"DN4", "", true},
		{"DN44XKA", "", true},
		{"1N44", "", true},
	}

	for _, tt := range tests {
		got, err := ParseGridSquare(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseGridSquare(%q) = %q, %v; want %q, wantErr %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}
