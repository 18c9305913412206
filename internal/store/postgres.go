package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geobrowser/internal/db"
	"github.com/sells-group/geobrowser/internal/electoral"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
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

// NewPostgresWithPool wraps an existing pool. Close closes it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS imports (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	provinces  INTEGER NOT NULL,
	districts  INTEGER NOT NULL,
	row_count  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS electoral_rows (
	import_id       TEXT NOT NULL REFERENCES imports(id) ON DELETE CASCADE,
	seq             INTEGER NOT NULL,
	province        TEXT NOT NULL,
	district_number TEXT NOT NULL,
	district_name   TEXT NOT NULL,
	class           TEXT NOT NULL,
	candidate_name  TEXT NOT NULL,
	candidate_party TEXT NOT NULL,
	votes           INTEGER NOT NULL,
	percentage      DOUBLE PRECISION,
	geojson         JSONB,
	PRIMARY KEY (import_id, seq)
);

ALTER TABLE electoral_rows ALTER COLUMN percentage DROP NOT NULL;

CREATE INDEX IF NOT EXISTS idx_imports_created_at ON imports(created_at DESC);
`

var rowColumns = []string{
	"import_id", "seq", "province", "district_number", "district_name", "class",
	"candidate_name", "candidate_party", "votes", "percentage", "geojson",
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

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

func (s *PostgresStore) SaveDataset(ctx context.Context, ds *electoral.Dataset) (string, error) {
	rows, err := rowsFor(ds)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	meta := summarize(id, time.Now().UTC(), ds, len(rows))

	copyRows := make([][]any, len(rows))
	for i, r := range rows {
		copyRows[i] = []any{
			id, i, r.Province, r.DistrictNumber, r.DistrictName, r.Class,
			r.CandidateName, r.CandidateParty, r.Votes, nullableShare(r), nullableJSON(r.GeoJSON),
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO imports (id, created_at, provinces, districts, row_count) VALUES ($1, $2, $3, $4, $5)`,
		meta.ID, meta.CreatedAt, meta.Provinces, meta.Districts, meta.Rows,
	); err != nil {
		return "", eris.Wrap(err, "postgres: insert import")
	}
	if _, err := db.CopyFrom(ctx, tx, "electoral_rows", rowColumns, copyRows); err != nil {
		return "", eris.Wrap(err, "postgres: copy rows")
	}
	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit import")
	}
	return id, nil
}

func (s *PostgresStore) LoadDataset(ctx context.Context) (*electoral.Dataset, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM imports ORDER BY created_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest import")
	}
	return s.LoadImport(ctx, id)
}

func (s *PostgresStore) LoadImport(ctx context.Context, id string) (*electoral.Dataset, error) {
	var exists int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM imports WHERE id = $1`, id).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get import %s", id)
	}

	rs, err := s.pool.Query(ctx, `SELECT province, district_number, district_name, class,
		candidate_name, candidate_party, votes, percentage, geojson
		FROM electoral_rows WHERE import_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query rows of %s", id)
	}
	defer rs.Close()

	var rows []electoral.Row
	for rs.Next() {
		var r electoral.Row
		var pct pgtype.Float8
		var geo []byte
		if err := rs.Scan(&r.Province, &r.DistrictNumber, &r.DistrictName, &r.Class,
			&r.CandidateName, &r.CandidateParty, &r.Votes, &pct, &geo); err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		r.Percentage, r.PercentageUnknown = pct.Float64, !pct.Valid
		if len(geo) > 0 {
			r.GeoJSON = geo
		}
		rows = append(rows, r)
	}
	if err := rs.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate rows")
	}

	ds, err := electoral.FromRows(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: rebuild import %s", id)
	}
	return ds, nil
}

func (s *PostgresStore) ListImports(ctx context.Context) ([]Import, error) {
	rs, err := s.pool.Query(ctx,
		`SELECT id, created_at, provinces, districts, row_count FROM imports ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list imports")
	}
	defer rs.Close()

	var out []Import
	for rs.Next() {
		var imp Import
		if err := rs.Scan(&imp.ID, &imp.CreatedAt, &imp.Provinces, &imp.Districts, &imp.Rows); err != nil {
			return nil, eris.Wrap(err, "postgres: scan import")
		}
		out = append(out, imp)
	}
	return out, eris.Wrap(rs.Err(), "postgres: iterate imports")
}

func (s *PostgresStore) DeleteImport(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM imports WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete import %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
