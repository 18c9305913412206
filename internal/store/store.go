// Package store persists electoral dataset imports. Each import is stored as
// the flat candidate rows of the backend feed and reassembled on load.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geobrowser/internal/boundary"
	"github.com/sells-group/geobrowser/internal/electoral"
)

// Drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when no import matches.
var ErrNotFound = errors.New("store: import not found")

// Import describes one saved dataset.
type Import struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Provinces int       `json:"provinces"`
	Districts int       `json:"districts"`
	Rows      int       `json:"rows"`
}

// Store defines persistence for electoral dataset imports.
type Store interface {
	// SaveDataset writes ds as a new import and returns its id.
	SaveDataset(ctx context.Context, ds *electoral.Dataset) (string, error)
	// LoadDataset returns the most recent import.
	LoadDataset(ctx context.Context) (*electoral.Dataset, error)
	LoadImport(ctx context.Context, id string) (*electoral.Dataset, error)
	ListImports(ctx context.Context) ([]Import, error)
	DeleteImport(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects the store for driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := NewPostgres(ctx, dsn, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// rowsFor flattens ds. The first row of each district carries its outline.
func rowsFor(ds *electoral.Dataset) ([]electoral.Row, error) {
	if ds == nil {
		return nil, eris.New("store: nil dataset")
	}
	rows := ds.Flatten()
	type key struct{ province, name string }
	done := make(map[key]bool)
	for i := range rows {
		k := key{rows[i].Province, rows[i].DistrictName}
		if done[k] {
			continue
		}
		done[k] = true
		d, ok := ds.District(k.province, k.name)
		if !ok || d.Geometry == nil {
			continue
		}
		f, err := boundary.EncodeFeature(*d.Geometry, boundary.DefaultNameProperty)
		if err != nil {
			return nil, eris.Wrapf(err, "store: encode outline of %s", k.name)
		}
		raw, err := json.Marshal(f)
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal outline of %s", k.name)
		}
		rows[i].GeoJSON = raw
	}
	return rows, nil
}

func summarize(id string, at time.Time, ds *electoral.Dataset, rows int) Import {
	return Import{
		ID:        id,
		CreatedAt: at,
		Provinces: len(ds.Provinces()),
		Districts: ds.Len(),
		Rows:      rows,
	}
}

// nullableJSON maps an empty outline to SQL NULL.
// nullableShare stores an unknown vote share as NULL.
func nullableShare(r electoral.Row) any {
	if r.PercentageUnknown {
		return nil
	}
	return r.Percentage
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
