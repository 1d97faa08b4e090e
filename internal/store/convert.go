package store

// convert.go provides nullable-value helpers for the Postgres engine.
//
// NormalizedPark carries optional values as pointers. pgx wants pgtype
// values for COPY, so these functions map nil to an invalid (NULL) value.

import (
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/pota/internal/core"
)

// ToPgText converts an optional string to pgtype.Text.
func ToPgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

// ToPgGrid converts an optional grid square to pgtype.Text.
func ToPgGrid(g *core.GridSquare) pgtype.Text {
	if g == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: g.String(), Valid: true}
}

// ToPgFloat8 converts an optional coordinate to pgtype.Float8.
func ToPgFloat8(f *float64) pgtype.Float8 {
	if f == nil {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Float64: *f, Valid: true}
}

// ToPgInt4 converts an optional int to pgtype.Int4. Values outside the
// int32 range become NULL rather than wrapping.
func ToPgInt4(i *int) pgtype.Int4 {
	if i == nil || *i < math.MinInt32 || *i > math.MaxInt32 {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(*i), Valid: true}
}

// ToPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is not a valid UUID.
func ToPgUUID(s string) pgtype.UUID {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// PgUUIDToString converts a pgtype.UUID to its string representation.
// Returns empty string if the UUID is invalid.
func PgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

func fromPgText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func fromPgGrid(t pgtype.Text) *core.GridSquare {
	if !t.Valid {
		return nil
	}
	g := core.GridSquare(t.String)
	return &g
}

func fromPgFloat8(f pgtype.Float8) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func fromPgInt4(i pgtype.Int4) *int {
	if !i.Valid {
		return nil
	}
	v := int(i.Int32)
	return &v
}

// parkRow is the COPY row for one park, in parkColumns order.
func parkRow(p core.NormalizedPark) []any {
	return []any{
		p.Reference.String(),
		p.Name,
		ToPgFloat8(p.Latitude),
		ToPgFloat8(p.Longitude),
		ToPgGrid(p.Grid),
		ToPgText(p.State),
		ToPgText(p.Country),
		ToPgInt4(p.EntityID),
		ToPgText(p.LocationDesc),
		int32(p.IsActive),
		int32(p.IsFavorite),
	}
}
