package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/pota/internal/core"
)

// sqliteTimeFormat is fixed-width so text ordering matches time ordering.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = "pota.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection; a single connection keeps them applied.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS parks (
	reference     TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	latitude      REAL,
	longitude     REAL,
	grid          TEXT,
	state         TEXT,
	country       TEXT,
	entity_id     INTEGER,
	location_desc TEXT,
	is_active     INTEGER NOT NULL DEFAULT 1,
	is_favorite   INTEGER NOT NULL DEFAULT 0,
	updated_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE TABLE IF NOT EXISTS imports (
	id           TEXT PRIMARY KEY,
	file_name    TEXT NOT NULL,
	status       TEXT NOT NULL,
	total_rows   INTEGER NOT NULL DEFAULT 0,
	valid_rows   INTEGER NOT NULL DEFAULT 0,
	invalid_rows INTEGER NOT NULL DEFAULT 0,
	imported     INTEGER NOT NULL DEFAULT 0,
	duration_ms  INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	imported_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_parks_country ON parks(country);
CREATE INDEX IF NOT EXISTS idx_parks_favorite ON parks(is_favorite);
CREATE INDEX IF NOT EXISTS idx_imports_imported_at ON imports(imported_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var sqliteUpsert = `INSERT INTO parks (` + strings.Join(parkColumns, ", ") + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(reference) DO UPDATE SET ` + excludedSet(upsertColumns) + `,
	updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`

func excludedSet(cols []string) string {
	set := make([]string, len(cols))
	for i, c := range cols {
		set[i] = c + " = excluded." + c
	}
	return strings.Join(set, ", ")
}

// InsertParks upserts a batch in one transaction and returns the number of
// rows written.
func (s *SQLiteStore) InsertParks(ctx context.Context, parks []core.NormalizedPark) (int, error) {
	if len(parks) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert parks: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert parks: prepare")
	}
	defer stmt.Close()

	written := 0
	for _, p := range parks {
		res, err := stmt.ExecContext(ctx,
			p.Reference.String(), p.Name,
			nullFloat(p.Latitude), nullFloat(p.Longitude),
			nullGrid(p.Grid), nullString(p.State), nullString(p.Country),
			nullInt(p.EntityID), nullString(p.LocationDesc),
			p.IsActive, p.IsFavorite,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert parks: %s", p.Reference)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert parks: commit")
	}
	return written, nil
}

const sqliteSelectPark = `SELECT reference, name, latitude, longitude, grid, state,
	country, entity_id, location_desc, is_active, is_favorite FROM parks`

// GetPark returns a park by reference, or nil if it does not exist.
func (s *SQLiteStore) GetPark(ctx context.Context, ref string) (*core.NormalizedPark, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectPark+` WHERE reference = ?`, ref)
	p, err := scanSQLitePark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get park %s", ref)
	}
	return p, nil
}

// ListParks returns parks matching the filter, ordered by reference.
func (s *SQLiteStore) ListParks(ctx context.Context, filter core.ParkFilter) ([]core.NormalizedPark, error) {
	where, args := buildParkFilter(filter, sqlitePlaceholder)
	limit, offset := pageBounds(filter)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, sqliteSelectPark+where+` ORDER BY reference LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list parks")
	}
	defer rows.Close()

	var parks []core.NormalizedPark
	for rows.Next() {
		p, err := scanSQLitePark(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list parks: scan")
		}
		parks = append(parks, *p)
	}
	return parks, eris.Wrap(rows.Err(), "sqlite: list parks: iterate")
}

// CountParks returns the number of stored parks.
func (s *SQLiteStore) CountParks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parks`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count parks")
}

// SetFavorite sets the favorite flag. Returns ErrNotFound for unknown parks.
func (s *SQLiteStore) SetFavorite(ctx context.Context, ref string, favorite bool) error {
	fav := 0
	if favorite {
		fav = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE parks SET is_favorite = ? WHERE reference = ?`, fav, ref)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set favorite %s", ref)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: set favorite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: set favorite %s", ref)
	}
	return nil
}

// RecordImport appends an entry to the import history.
func (s *SQLiteStore) RecordImport(ctx context.Context, rec core.ImportRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO imports (id, file_name, status, total_rows, valid_rows, invalid_rows, imported, duration_ms, error, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FileName, rec.Status, rec.TotalRows, rec.ValidRows, rec.InvalidRows,
		rec.Imported, rec.DurationMs, nullString(optional(rec.Error)),
		rec.ImportedAt.UTC().Format(sqliteTimeFormat),
	)
	return eris.Wrap(err, "sqlite: record import")
}

// ListImports returns the newest import records first.
func (s *SQLiteStore) ListImports(ctx context.Context, limit int) ([]core.ImportRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, status, total_rows, valid_rows, invalid_rows, imported, duration_ms, error, imported_at
		 FROM imports ORDER BY imported_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list imports")
	}
	defer rows.Close()

	var recs []core.ImportRecord
	for rows.Next() {
		var (
			rec        core.ImportRecord
			errMsg     sql.NullString
			importedAt string
		)
		if err := rows.Scan(&rec.ID, &rec.FileName, &rec.Status, &rec.TotalRows, &rec.ValidRows,
			&rec.InvalidRows, &rec.Imported, &rec.DurationMs, &errMsg, &importedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: list imports: scan")
		}
		rec.Error = errMsg.String
		if t, err := time.Parse(sqliteTimeFormat, importedAt); err == nil {
			rec.ImportedAt = t
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list imports: iterate")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLitePark(row scanner) (*core.NormalizedPark, error) {
	var (
		p                           core.NormalizedPark
		ref                         string
		lat, lon                    sql.NullFloat64
		grid, state, country, locat sql.NullString
		entity                      sql.NullInt64
	)
	if err := row.Scan(&ref, &p.Name, &lat, &lon, &grid, &state, &country,
		&entity, &locat, &p.IsActive, &p.IsFavorite); err != nil {
		return nil, err
	}

	p.Reference = core.ParkReference(ref)
	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lon.Valid {
		p.Longitude = &lon.Float64
	}
	if grid.Valid {
		g := core.GridSquare(grid.String)
		p.Grid = &g
	}
	if state.Valid {
		p.State = &state.String
	}
	if country.Valid {
		p.Country = &country.String
	}
	if entity.Valid {
		n := int(entity.Int64)
		p.EntityID = &n
	}
	if locat.Valid {
		p.LocationDesc = &locat.String
	}
	return &p, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullGrid(g *core.GridSquare) sql.NullString {
	if g == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: g.String(), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}
