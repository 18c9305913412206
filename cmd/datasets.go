package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geobrowser/internal/browser"
	"github.com/sells-group/geobrowser/internal/config"
	"github.com/sells-group/geobrowser/internal/fetcher"
	"github.com/sells-group/geobrowser/internal/geojoin"
	"github.com/sells-group/geobrowser/internal/loader"
	"github.com/sells-group/geobrowser/internal/refresh"
	"github.com/sells-group/geobrowser/internal/store"
)

func fetchOptions(c *config.Config) fetcher.Options {
	return fetcher.Options{
		UserAgent:  c.Fetch.UserAgent,
		Timeout:    c.Fetch.Timeout(),
		MaxRetries: c.Fetch.MaxRetries,
	}
}

func sourcesFromConfig(c *config.Config) loader.Sources {
	return loader.Sources{
		Electoral:            c.Data.ElectoralURL,
		Boundary:             c.Data.BoundaryURL,
		BoundaryNameProperty: c.Data.BoundaryNameProperty,
		BoundaryFormat:       c.Data.BoundaryFormat,
	}
}

// loadDatasets loads both datasets from the configured sources. With
// fromStore set, the electoral dataset is the latest stored import instead.
func loadDatasets(ctx context.Context, fromStore bool) (browser.Datasets, error) {
	src := sourcesFromConfig(cfg)
	if fromStore {
		src.Electoral = ""
	}

	res, err := loader.New(fetcher.NewRouter(fetchOptions(cfg))).Load(ctx, src)
	if err != nil {
		return browser.Datasets{}, err
	}
	data := browser.Datasets{
		Electoral:    res.Electoral,
		Boundary:     res.Boundary,
		NameProperty: cfg.Data.BoundaryNameProperty,
		Notices:      res.Notices(),
	}

	if fromStore {
		st, err := initStore(ctx)
		if err != nil {
			return data, err
		}
		defer st.Close() //nolint:errcheck
		ds, err := st.LoadDataset(ctx)
		if err != nil {
			zap.L().Warn("no stored electoral dataset", zap.Error(err))
			data.Notices = append(data.Notices, "electoral dataset unavailable: "+err.Error())
		} else {
			data.Electoral = ds
		}
	}
	return data, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func newJoiner(c *config.Config) *geojoin.Joiner {
	j := geojoin.NewJoiner(geojoin.NewMatcher(c.Match.Strategy), refresh.NewMinter())
	j.ProvinceFallback = c.Match.ProvinceFallback
	return j
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// createOutput opens path for writing; "" and "-" mean stdout.
func createOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "create %s", path)
	}
	return f, nil
}
