// Package convert turns the raw electoral CSV and flat JSON exports into the
// nested electoral dataset.
package convert

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geobrowser/internal/electoral"
	"github.com/sells-group/geobrowser/internal/fetcher"
)

// CSV columns.
const (
	ColProvince       = "PROVINCE"
	ColDistrictNumber = "ELECTORAL_DISTRICT_NUMBER"
	ColDistrictName   = "ELECTORAL_DISTRICT_NAME"
	ColClass          = "URBAN_SEMIURBAN_RURAL"
	ColCandidateName  = "CANDIDATE_NAME"
	ColCandidateParty = "CANDIDATE_PARTY"
	ColVotes          = "VOTES_OBTAINED"
	ColPercentage     = "PERCENTAGE_OF_VOTES_OBTAINED"
)

var requiredColumns = []string{ColProvince, ColDistrictNumber, ColDistrictName}

// ElectoralFromCSV reads one candidate per row and groups the rows into
// provinces and districts in first-seen order. When geojsonDir is set, the
// file <district number>.geojson in it supplies the district outline; a
// missing file leaves the outline empty.
func ElectoralFromCSV(ctx context.Context, r io.Reader, geojsonDir string) (*electoral.Dataset, error) {
	log := zap.L().With(zap.String("component", "convert"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader:  true,
		HeaderCh:   headerCh,
		LazyQuotes: true,
		TrimSpace:  true,
	})

	var (
		idx    map[string]int
		rows   []electoral.Row
		shapes = make(map[string]json.RawMessage)
		line   = 1
	)
	for rec := range rowCh {
		line++
		if idx == nil {
			select {
			case header := <-headerCh:
				idx = fetcher.HeaderIndex(header)
			default:
				return nil, eris.New("convert: csv has no header")
			}
			for _, col := range requiredColumns {
				if _, ok := idx[col]; !ok {
					return nil, eris.Errorf("convert: csv is missing column %s", col)
				}
			}
		}

		row, err := rowFromRecord(rec, idx)
		if err != nil {
			return nil, eris.Wrapf(err, "convert: line %d", line)
		}
		if row.Province == "" || row.DistrictName == "" {
			log.Debug("skipping row without province or district", zap.Int("line", line))
			continue
		}

		if geojsonDir != "" {
			raw, seen := shapes[row.DistrictNumber]
			if !seen {
				raw, err = readShape(geojsonDir, row.DistrictNumber)
				if err != nil {
					return nil, err
				}
				if raw == nil {
					log.Debug("geojson missing for district", zap.String("number", row.DistrictNumber))
				}
				shapes[row.DistrictNumber] = raw
			}
			row.GeoJSON = raw
		}
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "convert: read csv")
	}
	if len(rows) == 0 {
		return nil, eris.New("convert: csv has no rows")
	}

	ds, err := electoral.FromRows(rows)
	if err != nil {
		return nil, eris.Wrap(err, "convert: group rows")
	}
	log.Info("converted electoral csv",
		zap.Int("rows", len(rows)),
		zap.Int("provinces", len(ds.Provinces())),
		zap.Int("districts", ds.Len()),
	)
	return ds, nil
}

func rowFromRecord(rec []string, idx map[string]int) (electoral.Row, error) {
	row := electoral.Row{
		Province:       fetcher.Field(rec, idx, ColProvince),
		DistrictNumber: fetcher.Field(rec, idx, ColDistrictNumber),
		DistrictName:   fetcher.Field(rec, idx, ColDistrictName),
		Class:          fetcher.Field(rec, idx, ColClass),
		CandidateName:  fetcher.Field(rec, idx, ColCandidateName),
		CandidateParty: fetcher.Field(rec, idx, ColCandidateParty),
	}
	votes, _, err := electoral.ParseNumber(fetcher.Field(rec, idx, ColVotes))
	if err != nil {
		return row, eris.Wrap(err, "votes")
	}
	pct, known, err := electoral.ParseNumber(fetcher.Field(rec, idx, ColPercentage))
	if err != nil {
		return row, eris.Wrap(err, "percentage")
	}
	row.Votes = int(votes)
	row.Percentage = pct
	row.PercentageUnknown = !known
	return row, nil
}

// readShape returns the raw GeoJSON for a district number, nil when absent.
func readShape(dir, number string) (json.RawMessage, error) {
	if number == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(number)+".geojson"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "convert: read geojson for %s", number)
	}
	if !json.Valid(data) {
		return nil, eris.Errorf("convert: geojson for %s is not valid json", number)
	}
	return data, nil
}

// ElectoralFromRows reads a flat JSON array of rows (the electoral_data
// feed shape) and groups it into a dataset.
func ElectoralFromRows(ctx context.Context, r io.Reader) (*electoral.Dataset, error) {
	rowCh, errCh := fetcher.DecodeJSONArray[electoral.Row](ctx, r)

	var rows []electoral.Row
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "convert: decode rows")
	}
	ds, err := electoral.FromRows(rows)
	if err != nil {
		return nil, eris.Wrap(err, "convert: group rows")
	}
	return ds, nil
}
