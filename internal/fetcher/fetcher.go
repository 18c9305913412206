// Package fetcher retrieves dataset resources from HTTP, FTP and local files
// and parses CSV, JSON, XLSX and ZIP payloads.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Fetcher retrieves one resource.
type Fetcher interface {
	// Download fetches the source and returns its body. Callers close it.
	Download(ctx context.Context, source string) (io.ReadCloser, error)
}

// Options configures the fetchers behind Open.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
}

// Router dispatches a source to the fetcher for its scheme: http and https
// go to HTTP, ftp to FTP, and file:// URLs or bare paths to the filesystem.
type Router struct {
	HTTP Fetcher
	FTP  Fetcher
	File Fetcher
}

// NewRouter builds a Router with the default fetchers for opts.
func NewRouter(opts Options) *Router {
	return &Router{
		HTTP: NewHTTPFetcher(HTTPOptions{
			UserAgent:  opts.UserAgent,
			Timeout:    opts.Timeout,
			MaxRetries: opts.MaxRetries,
		}),
		FTP:  NewFTPFetcher(FTPOptions{Timeout: opts.Timeout}),
		File: FileFetcher{},
	}
}

// Download implements Fetcher.
func (r *Router) Download(ctx context.Context, source string) (io.ReadCloser, error) {
	f, err := r.fetcherFor(source)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, source)
}

func (r *Router) fetcherFor(source string) (Fetcher, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, eris.New("fetcher: empty source")
	}
	switch Scheme(source) {
	case "http", "https":
		return r.HTTP, nil
	case "ftp":
		return r.FTP, nil
	case "", "file":
		return r.File, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme in %q", source)
	}
}

// Scheme returns the lower-cased URL scheme of source, or "" for a plain path.
// Windows drive letters are treated as paths.
func Scheme(source string) string {
	i := strings.Index(source, "://")
	if i <= 1 {
		return ""
	}
	return strings.ToLower(source[:i])
}

// Open downloads source with a default Router.
func Open(ctx context.Context, source string, opts Options) (io.ReadCloser, error) {
	return NewRouter(opts).Download(ctx, source)
}

// FileFetcher reads local files. It accepts bare paths and file:// URLs.
type FileFetcher struct{}

// Download implements Fetcher.
func (FileFetcher) Download(ctx context.Context, source string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "file: context cancelled")
	}
	path := source
	if Scheme(source) == "file" {
		u, err := url.Parse(source)
		if err != nil {
			return nil, eris.Wrap(err, "file: parse url")
		}
		path = u.Path
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "file: open %s", path)
	}
	return f, nil
}
