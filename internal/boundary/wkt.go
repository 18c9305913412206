package boundary

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"

	"github.com/sells-group/geobrowser/internal/fetcher"
)

// WKTOptions configures ReadWKTCSV.
type WKTOptions struct {
	GeomColumn string // default "the_geom"
	NameColumn string // join key column
}

// ReadWKTCSV converts a CSV with a WKT geometry column into a Dataset. All
// other columns become feature properties. Rows whose WKT does not parse are
// skipped.
func ReadWKTCSV(ctx context.Context, r io.Reader, opts WKTOptions) (*Dataset, error) {
	if opts.GeomColumn == "" {
		opts.GeomColumn = "the_geom"
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader:  true,
		HeaderCh:   headerCh,
		LazyQuotes: true,
	})

	var header []string
	geomIdx := -1
	var features []Feature
	var skipped int

	for row := range rowCh {
		if header == nil {
			select {
			case header = <-headerCh:
			default:
				return nil, eris.New("boundary: wkt csv has no header")
			}
			geomIdx = indexOf(header, opts.GeomColumn)
			if geomIdx < 0 {
				return nil, eris.Errorf("boundary: wkt column %q not found", opts.GeomColumn)
			}
		}
		if geomIdx >= len(row) {
			skipped++
			continue
		}

		g, err := wkt.Unmarshal(row[geomIdx])
		if err != nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(header)-1)
		for i, col := range header {
			if i == geomIdx || i >= len(row) {
				continue
			}
			props[col] = row[i]
		}

		features = append(features, Feature{
			Name:       propertyString(props, opts.NameColumn),
			Geometry:   g,
			Properties: props,
		})
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "boundary: read wkt csv")
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped wkt rows", zap.Int("skipped", skipped))
	}

	return NewDataset(opts.NameColumn, features), nil
}

func indexOf(header []string, col string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), col) {
			return i
		}
	}
	return -1
}
