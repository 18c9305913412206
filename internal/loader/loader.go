// Package loader retrieves the electoral and boundary datasets concurrently.
// The two loads are independent: either may fail while the other succeeds.
package loader

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geobrowser/internal/boundary"
	"github.com/sells-group/geobrowser/internal/electoral"
	"github.com/sells-group/geobrowser/internal/fetcher"
	"github.com/sells-group/geobrowser/internal/metrics"
)

// Resource names a dataset.
type Resource string

// Resources.
const (
	Electoral Resource = "electoral"
	Boundary  Resource = "boundary"
)

// Boundary source formats.
const (
	FormatGeoJSON = "geojson"
	FormatWKTCSV  = "wkt_csv"
)

// Sources tells Load where each dataset lives. An empty source is skipped and
// leaves its dataset nil.
type Sources struct {
	Electoral            string
	Boundary             string
	BoundaryNameProperty string
	// BoundaryFormat is FormatGeoJSON or FormatWKTCSV. Empty selects by
	// extension, defaulting to GeoJSON.
	BoundaryFormat string
}

// LoadError reports one failed dataset load. It is a notice, not a fatal error.
type LoadError struct {
	Resource Resource
	Source   string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loader: %s dataset from %s: %v", e.Resource, e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Result holds whatever loaded. Datasets that failed or were skipped are nil.
type Result struct {
	Electoral *electoral.Dataset
	Boundary  *boundary.Dataset
	Errors    []*LoadError
}

// Notices renders the load errors for display.
func (r Result) Notices() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Error())
	}
	return out
}

// Loader fetches datasets through a Fetcher.
type Loader struct {
	fetch fetcher.Fetcher
}

// New returns a Loader. A nil Fetcher uses a default fetcher.Router.
func New(f fetcher.Fetcher) *Loader {
	if f == nil {
		f = fetcher.NewRouter(fetcher.Options{})
	}
	return &Loader{fetch: f}
}

// Load fetches both datasets concurrently. A failure of one never cancels the
// other; each failure is reported in Result.Errors. Load itself only returns
// an error when ctx is cancelled before both loads finish.
func (l *Loader) Load(ctx context.Context, src Sources) (Result, error) {
	var res Result
	var electoralErr, boundaryErr *LoadError

	g := new(errgroup.Group)

	if src.Electoral != "" {
		g.Go(func() error {
			ds, err := l.loadElectoral(ctx, src.Electoral)
			if err != nil {
				electoralErr = &LoadError{Resource: Electoral, Source: src.Electoral, Err: err}
				return nil
			}
			res.Electoral = ds
			return nil
		})
	}

	if src.Boundary != "" {
		g.Go(func() error {
			ds, err := l.loadBoundary(ctx, src)
			if err != nil {
				boundaryErr = &LoadError{Resource: Boundary, Source: src.Boundary, Err: err}
				return nil
			}
			res.Boundary = ds
			return nil
		})
	}

	_ = g.Wait()

	for _, e := range []*LoadError{electoralErr, boundaryErr} {
		if e == nil {
			continue
		}
		res.Errors = append(res.Errors, e)
		zap.L().Warn("loader: dataset unavailable",
			zap.String("resource", string(e.Resource)),
			zap.String("source", e.Source),
			zap.Error(e.Err),
		)
	}

	if err := ctx.Err(); err != nil {
		return res, eris.Wrap(err, "loader: load cancelled")
	}
	return res, nil
}

func (l *Loader) loadElectoral(ctx context.Context, source string) (ds *electoral.Dataset, err error) {
	start := time.Now()
	defer func() { observe(Electoral, start, err) }()

	body, err := l.fetch.Download(ctx, source)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	ds, err = electoral.Decode(body)
	if err != nil {
		return nil, err
	}
	zap.L().Info("loader: electoral dataset loaded",
		zap.String("source", source),
		zap.Int("provinces", len(ds.Provinces())),
		zap.Int("districts", ds.Len()),
	)
	return ds, nil
}

func (l *Loader) loadBoundary(ctx context.Context, src Sources) (ds *boundary.Dataset, err error) {
	start := time.Now()
	defer func() { observe(Boundary, start, err) }()

	body, err := l.fetch.Download(ctx, src.Boundary)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	ds, err = parseBoundary(ctx, body, src)
	if err != nil {
		return nil, err
	}
	zap.L().Info("loader: boundary dataset loaded",
		zap.String("source", src.Boundary),
		zap.Int("features", ds.Len()),
	)
	return ds, nil
}

func parseBoundary(ctx context.Context, r io.Reader, src Sources) (*boundary.Dataset, error) {
	format := src.BoundaryFormat
	if format == "" {
		format = FormatGeoJSON
		if strings.EqualFold(path.Ext(src.Boundary), ".csv") {
			format = FormatWKTCSV
		}
	}
	switch format {
	case FormatGeoJSON:
		return boundary.ParseGeoJSON(r, src.BoundaryNameProperty)
	case FormatWKTCSV:
		return boundary.ReadWKTCSV(ctx, r, boundary.WKTOptions{NameColumn: src.BoundaryNameProperty})
	default:
		return nil, eris.Errorf("loader: unknown boundary format %q", format)
	}
}

func observe(r Resource, start time.Time, err error) {
	metrics.DatasetLoadsTotal.WithLabelValues(string(r), metrics.Outcome(err)).Inc()
	metrics.DatasetLoadDurationMs.WithLabelValues(string(r)).Observe(float64(time.Since(start).Milliseconds()))
}
