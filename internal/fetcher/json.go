package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSONArray streams the elements of a top-level array such as the flat
// electoral row export. Empty input yields no elements and no error. The error
// channel carries at most one error; both channels close at the end.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		dec := json.NewDecoder(r)
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "fetcher: json array start")
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			errCh <- eris.Errorf("fetcher: want a json array, got %v", tok)
			return
		}

		for i := 0; dec.More(); i++ {
			if err := ctx.Err(); err != nil {
				errCh <- eris.Wrap(err, "fetcher: json stream stopped")
				return
			}
			var item T
			if err := dec.Decode(&item); err != nil {
				errCh <- eris.Wrapf(err, "fetcher: json element %d", i)
				return
			}
			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "fetcher: json stream stopped")
				return
			}
		}

		if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
			errCh <- eris.Wrap(err, "fetcher: json array end")
		}
	}()

	return outCh, errCh
}

// DecodeJSONField pulls one member out of a backend envelope, for example
// "electoral_data" from {"electoral_data": [...]}. A missing member is an error.
func DecodeJSONField[T any](r io.Reader, field string) (T, error) {
	var out T
	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return out, eris.Wrap(err, "fetcher: decode json envelope")
	}
	raw, ok := envelope[field]
	if !ok {
		return out, eris.Errorf("fetcher: json envelope has no %q", field)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, eris.Wrapf(err, "fetcher: decode %q", field)
	}
	return out, nil
}
