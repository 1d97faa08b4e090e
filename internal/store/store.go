// Package store persists parks and import history.
//
// Two engines implement Store: SQLite for the local single-operator setup
// and Postgres for a shared server. Both upsert parks on their reference and
// keep the operator's favorite flag across re-imports.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/JonMunkholm/pota/internal/core"
)

// ErrNotFound is returned when a park does not exist.
var ErrNotFound = errors.New("park not found")

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Defaults for park listings.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Store is the full persistence interface, including lifecycle.
type Store interface {
	core.ParkStore

	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and tunes the storage engine.
type Config struct {
	Driver   string // "sqlite" (default) or "postgres"
	URL      string // file path for sqlite, connection string for postgres
	MaxConns int32
	MinConns int32
}

// Open connects to the configured engine. It does not migrate.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverSQLite:
		return NewSQLite(cfg.URL)
	case DriverPostgres, "postgresql", "pgx":
		return NewPostgres(ctx, cfg.URL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// parkColumns is the column order used by every park query.
var parkColumns = []string{
	"reference", "name", "latitude", "longitude", "grid", "state",
	"country", "entity_id", "location_desc", "is_active", "is_favorite",
}

// upsertColumns are overwritten on conflict. is_favorite is owned by the
// operator and survives re-imports.
var upsertColumns = []string{
	"name", "latitude", "longitude", "grid", "state",
	"country", "entity_id", "location_desc", "is_active",
}

// buildParkFilter turns a ParkFilter into a WHERE clause and its arguments.
// placeholder renders the n-th (1-based) bind parameter for the engine.
func buildParkFilter(f core.ParkFilter, placeholder func(int) string) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, vals ...any) {
		for _, v := range vals {
			args = append(args, v)
			cond = strings.Replace(cond, "?", placeholder(len(args)), 1)
		}
		conds = append(conds, cond)
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		add("(reference LIKE ? OR LOWER(name) LIKE ?)", strings.ToUpper(s)+"%", "%"+strings.ToLower(s)+"%")
	}
	if c := strings.TrimSpace(f.Country); c != "" {
		add("country = ?", c)
	}
	if f.FavoritesOnly {
		conds = append(conds, "is_favorite = 1")
	}
	if f.ActiveOnly {
		conds = append(conds, "is_active = 1")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// pageBounds clamps a filter's limit and offset.
func pageBounds(f core.ParkFilter) (limit, offset int) {
	limit = f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	return limit, max(f.Offset, 0)
}

// dedupeByReference keeps the last occurrence of each reference, preserving
// first-seen order. A single upsert statement cannot touch a row twice.
func dedupeByReference(parks []core.NormalizedPark) []core.NormalizedPark {
	pos := make(map[core.ParkReference]int, len(parks))
	out := make([]core.NormalizedPark, 0, len(parks))
	for _, p := range parks {
		if i, ok := pos[p.Reference]; ok {
			out[i] = p
			continue
		}
		pos[p.Reference] = len(out)
		out = append(out, p)
	}
	return out
}

func sqlitePlaceholder(int) string     { return "?" }
func postgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }
