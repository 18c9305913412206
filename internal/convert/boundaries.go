package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geobrowser/internal/boundary"
	"github.com/sells-group/geobrowser/internal/fetcher"
)

// BoundaryOptions configures BoundariesFromFile.
type BoundaryOptions struct {
	NameColumn string // join key column; defaults to boundary.DefaultNameProperty
	GeomColumn string // WKT column for csv input; defaults to "the_geom"
	WorkDir    string // extraction directory for zip input; defaults to a temp dir
}

// BoundariesFromFile reads a WKT CSV, an ESRI shapefile, a zip holding a
// shapefile, or a GeoJSON file into a boundary dataset. The format is chosen
// by file extension.
func BoundariesFromFile(ctx context.Context, path string, opts BoundaryOptions) (*boundary.Dataset, error) {
	if opts.NameColumn == "" {
		opts.NameColumn = boundary.DefaultNameProperty
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path) //nolint:gosec // operator-supplied path
		if err != nil {
			return nil, eris.Wrapf(err, "convert: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return boundary.ReadWKTCSV(ctx, f, boundary.WKTOptions{
			GeomColumn: opts.GeomColumn,
			NameColumn: opts.NameColumn,
		})
	case ".shp":
		return boundary.ReadShapefile(path, opts.NameColumn)
	case ".zip":
		return shapefileFromZIP(path, opts)
	case ".geojson", ".json":
		f, err := os.Open(path) //nolint:gosec // operator-supplied path
		if err != nil {
			return nil, eris.Wrapf(err, "convert: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return boundary.ParseGeoJSON(f, opts.NameColumn)
	default:
		return nil, eris.Errorf("convert: unsupported boundary file %s", path)
	}
}

func shapefileFromZIP(path string, opts BoundaryOptions) (*boundary.Dataset, error) {
	dir := opts.WorkDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "geobrowser-shp-*")
		if err != nil {
			return nil, eris.Wrap(err, "convert: create work dir")
		}
		defer os.RemoveAll(tmp) //nolint:errcheck
		dir = tmp
	}

	files, err := fetcher.ExtractZIP(path, dir)
	if err != nil {
		return nil, eris.Wrap(err, "convert: extract zip")
	}
	shpPath, ok := fetcher.FindByExt(files, ".shp")
	if !ok {
		return nil, eris.Errorf("convert: no .shp file in %s", path)
	}
	return boundary.ReadShapefile(shpPath, opts.NameColumn)
}
