package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/JonMunkholm/pota/internal/core"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS parks (
	reference     TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	latitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	grid          TEXT,
	state         TEXT,
	country       TEXT,
	entity_id     INTEGER,
	location_desc TEXT,
	is_active     INTEGER NOT NULL DEFAULT 1,
	is_favorite   INTEGER NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS imports (
	id           UUID PRIMARY KEY,
	file_name    TEXT NOT NULL,
	status       TEXT NOT NULL,
	total_rows   INTEGER NOT NULL DEFAULT 0,
	valid_rows   INTEGER NOT NULL DEFAULT 0,
	invalid_rows INTEGER NOT NULL DEFAULT 0,
	imported     INTEGER NOT NULL DEFAULT 0,
	duration_ms  BIGINT NOT NULL DEFAULT 0,
	error        TEXT,
	imported_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_parks_country ON parks(country);
CREATE INDEX IF NOT EXISTS idx_parks_favorite ON parks(is_favorite) WHERE is_favorite = 1;
CREATE INDEX IF NOT EXISTS idx_imports_imported_at ON imports(imported_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const tempParksTable = "_tmp_parks"

// InsertParks upserts a batch via a temp table and INSERT ... ON CONFLICT.
//  1. Creates a temp table shaped like parks, dropped on commit
//  2. COPYs the batch into it
//  3. Upserts into parks, leaving is_favorite untouched
//
// Duplicate references within the batch collapse to the last occurrence,
// so the returned count can be lower than len(parks).
func (s *PostgresStore) InsertParks(ctx context.Context, parks []core.NormalizedPark) (int, error) {
	if len(parks) == 0 {
		return 0, nil
	}
	parks = dedupeByReference(parks)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert parks: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE parks INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempParksTable}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrap(err, "postgres: insert parks: create temp table")
	}

	rows := make([][]any, len(parks))
	for i, p := range parks {
		rows[i] = parkRow(p)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempParksTable}, parkColumns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrap(err, "postgres: insert parks: COPY into temp table")
	}

	tag, err := tx.Exec(ctx, postgresUpsertSQL())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert parks: INSERT ON CONFLICT")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: insert parks: commit tx")
	}
	return int(tag.RowsAffected()), nil
}

func postgresUpsertSQL() string {
	colList := quoteAndJoin(parkColumns)

	setClauses := make([]string, 0, len(upsertColumns)+1)
	for _, col := range upsertColumns {
		id := pgx.Identifier{col}.Sanitize()
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", id, id))
	}
	setClauses = append(setClauses, `"updated_at" = now()`)

	return fmt.Sprintf(
		"INSERT INTO parks (%s) SELECT %s FROM %s ON CONFLICT (reference) DO UPDATE SET %s",
		colList,
		colList,
		pgx.Identifier{tempParksTable}.Sanitize(),
		strings.Join(setClauses, ", "),
	)
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

const postgresSelectPark = `SELECT reference, name, latitude, longitude, grid, state,
	country, entity_id, location_desc, is_active, is_favorite FROM parks`

// GetPark returns a park by reference, or nil if it does not exist.
func (s *PostgresStore) GetPark(ctx context.Context, ref string) (*core.NormalizedPark, error) {
	p, err := scanPostgresPark(s.pool.QueryRow(ctx, postgresSelectPark+` WHERE reference = $1`, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get park %s", ref)
	}
	return p, nil
}

// ListParks returns parks matching the filter, ordered by reference.
func (s *PostgresStore) ListParks(ctx context.Context, filter core.ParkFilter) ([]core.NormalizedPark, error) {
	where, args := buildParkFilter(filter, postgresPlaceholder)
	limit, offset := pageBounds(filter)
	query := fmt.Sprintf("%s%s ORDER BY reference LIMIT $%d OFFSET $%d",
		postgresSelectPark, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list parks")
	}
	defer rows.Close()

	var parks []core.NormalizedPark
	for rows.Next() {
		p, err := scanPostgresPark(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list parks: scan")
		}
		parks = append(parks, *p)
	}
	return parks, eris.Wrap(rows.Err(), "postgres: list parks: iterate")
}

// CountParks returns the number of stored parks.
func (s *PostgresStore) CountParks(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM parks`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count parks")
}

// SetFavorite sets the favorite flag. Returns ErrNotFound for unknown parks.
func (s *PostgresStore) SetFavorite(ctx context.Context, ref string, favorite bool) error {
	fav := 0
	if favorite {
		fav = 1
	}
	tag, err := s.pool.Exec(ctx, `UPDATE parks SET is_favorite = $1, updated_at = now() WHERE reference = $2`, fav, ref)
	if err != nil {
		return eris.Wrapf(err, "postgres: set favorite %s", ref)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: set favorite %s", ref)
	}
	return nil
}

// RecordImport appends an entry to the import history.
func (s *PostgresStore) RecordImport(ctx context.Context, rec core.ImportRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO imports (id, file_name, status, total_rows, valid_rows, invalid_rows, imported, duration_ms, error, imported_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ToPgUUID(rec.ID), rec.FileName, rec.Status, rec.TotalRows, rec.ValidRows, rec.InvalidRows,
		rec.Imported, rec.DurationMs, ToPgText(optional(rec.Error)), rec.ImportedAt,
	)
	return eris.Wrap(err, "postgres: record import")
}

// ListImports returns the newest import records first.
func (s *PostgresStore) ListImports(ctx context.Context, limit int) ([]core.ImportRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, file_name, status, total_rows, valid_rows, invalid_rows, imported, duration_ms, error, imported_at
		 FROM imports ORDER BY imported_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list imports")
	}
	defer rows.Close()

	var recs []core.ImportRecord
	for rows.Next() {
		var (
			rec    core.ImportRecord
			id     pgtype.UUID
			errMsg pgtype.Text
		)
		if err := rows.Scan(&id, &rec.FileName, &rec.Status, &rec.TotalRows, &rec.ValidRows,
			&rec.InvalidRows, &rec.Imported, &rec.DurationMs, &errMsg, &rec.ImportedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: list imports: scan")
		}
		rec.ID = PgUUIDToString(id)
		rec.Error = errMsg.String
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list imports: iterate")
}

func scanPostgresPark(row pgx.Row) (*core.NormalizedPark, error) {
	var (
		p                             core.NormalizedPark
		ref                           string
		lat, lon                      pgtype.Float8
		grid, state, country, locDesc pgtype.Text
		entity                        pgtype.Int4
		isActive, isFavorite          int32
	)
	if err := row.Scan(&ref, &p.Name, &lat, &lon, &grid, &state, &country,
		&entity, &locDesc, &isActive, &isFavorite); err != nil {
		return nil, err
	}

	p.Reference = core.ParkReference(ref)
	p.Latitude = fromPgFloat8(lat)
	p.Longitude = fromPgFloat8(lon)
	p.Grid = fromPgGrid(grid)
	p.State = fromPgText(state)
	p.Country = fromPgText(country)
	p.EntityID = fromPgInt4(entity)
	p.LocationDesc = fromPgText(locDesc)
	p.IsActive = int(isActive)
	p.IsFavorite = int(isFavorite)
	return &p, nil
}
