package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/geobrowser/internal/electoral"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS imports (
	id         TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	provinces  INTEGER NOT NULL,
	districts  INTEGER NOT NULL,
	row_count  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS electoral_rows (
	import_id       TEXT NOT NULL REFERENCES imports(id),
	seq             INTEGER NOT NULL,
	province        TEXT NOT NULL,
	district_number TEXT NOT NULL,
	district_name   TEXT NOT NULL,
	class           TEXT NOT NULL,
	candidate_name  TEXT NOT NULL,
	candidate_party TEXT NOT NULL,
	votes           INTEGER NOT NULL,
	percentage      REAL,
	geojson         TEXT,
	PRIMARY KEY (import_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_imports_created_at ON imports(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveDataset(ctx context.Context, ds *electoral.Dataset) (string, error) {
	rows, err := rowsFor(ds)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	now := time.Now().UTC()
	meta := summarize(id, now, ds, len(rows))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO imports (id, created_at, provinces, districts, row_count) VALUES (?, ?, ?, ?, ?)`,
		meta.ID, now, meta.Provinces, meta.Districts, meta.Rows,
	); err != nil {
		return "", eris.Wrap(err, "sqlite: insert import")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO electoral_rows
		(import_id, seq, province, district_number, district_name, class, candidate_name, candidate_party, votes, percentage, geojson)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: prepare row insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, id, i, r.Province, r.DistrictNumber, r.DistrictName, r.Class,
			r.CandidateName, r.CandidateParty, r.Votes, nullableShare(r), nullableJSON(r.GeoJSON)); err != nil {
			return "", eris.Wrapf(err, "sqlite: insert row %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit import")
	}
	return id, nil
}

func (s *SQLiteStore) LoadDataset(ctx context.Context) (*electoral.Dataset, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM imports ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest import")
	}
	return s.LoadImport(ctx, id)
}

func (s *SQLiteStore) LoadImport(ctx context.Context, id string) (*electoral.Dataset, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM imports WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get import %s", id)
	}

	rs, err := s.db.QueryContext(ctx, `SELECT province, district_number, district_name, class,
		candidate_name, candidate_party, votes, percentage, geojson
		FROM electoral_rows WHERE import_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query rows of %s", id)
	}
	defer rs.Close() //nolint:errcheck

	var rows []electoral.Row
	for rs.Next() {
		var r electoral.Row
		var pct sql.NullFloat64
		var geo sql.NullString
		if err := rs.Scan(&r.Province, &r.DistrictNumber, &r.DistrictName, &r.Class,
			&r.CandidateName, &r.CandidateParty, &r.Votes, &pct, &geo); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		r.Percentage, r.PercentageUnknown = pct.Float64, !pct.Valid
		if geo.Valid {
			r.GeoJSON = []byte(geo.String)
		}
		rows = append(rows, r)
	}
	if err := rs.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate rows")
	}

	ds, err := electoral.FromRows(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: rebuild import %s", id)
	}
	return ds, nil
}

func (s *SQLiteStore) ListImports(ctx context.Context) ([]Import, error) {
	rs, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, provinces, districts, row_count FROM imports ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list imports")
	}
	defer rs.Close() //nolint:errcheck

	var out []Import
	for rs.Next() {
		var imp Import
		if err := rs.Scan(&imp.ID, &imp.CreatedAt, &imp.Provinces, &imp.Districts, &imp.Rows); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan import")
		}
		out = append(out, imp)
	}
	return out, eris.Wrap(rs.Err(), "sqlite: iterate imports")
}

func (s *SQLiteStore) DeleteImport(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM electoral_rows WHERE import_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete rows of %s", id)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM imports WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete import %s", id)
	}
	if err := checkRowsAffected(res); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete")
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
