package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions tunes StreamCSV. A zero value reads comma-separated records with
// no header handling.
type CSVOptions struct {
	Delimiter rune
	// HasHeader diverts the first record to HeaderCh (or drops it when
	// HeaderCh is nil).
	HasHeader  bool
	HeaderCh   chan<- []string
	Comment    rune
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV emits the records of an election results export or a WKT outline
// sheet one at a time. Rows may be ragged. The record channel must be drained
// or ctx cancelled; the error channel carries at most one error and both close
// when the reader is exhausted.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.Comment = opts.Comment
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		emit := func(ch chan<- []string, rec []string) error {
			select {
			case ch <- rec:
				return nil
			case <-ctx.Done():
				return eris.Wrap(ctx.Err(), "fetcher: csv stream stopped")
			}
		}

		for n := 0; ; n++ {
			if err := ctx.Err(); err != nil {
				errCh <- eris.Wrap(err, "fetcher: csv stream stopped")
				return
			}

			rec, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrapf(err, "fetcher: csv record %d", n)
				return
			}
			if opts.TrimSpace {
				for i := range rec {
					rec[i] = strings.TrimSpace(rec[i])
				}
			}

			if n == 0 && opts.HasHeader {
				if opts.HeaderCh == nil {
					continue
				}
				if err := emit(opts.HeaderCh, rec); err != nil {
					errCh <- err
					return
				}
				continue
			}
			if err := emit(rowCh, rec); err != nil {
				errCh <- err
				return
			}
		}
	}()

	return rowCh, errCh
}

// HeaderIndex maps column names to positions. Names are upper-cased and
// stripped of a leading byte order mark; a repeated name keeps its first
// position.
func HeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		k := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, ok := idx[k]; !ok {
			idx[k] = i
		}
	}
	return idx
}

// Field returns the trimmed value of col in row, "" when the column is
// missing from the header or the row is short.
func Field(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
