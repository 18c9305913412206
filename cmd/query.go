package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geobrowser/internal/browser"
	"github.com/sells-group/geobrowser/internal/filter"
)

// queryFlags are the filter dimensions in cascade order.
type queryFlags struct {
	Geography  string
	District   string
	Party      string
	Candidate  string
	Percentage string
}

// events turns the set flags into filter events in cascade order.
func (q queryFlags) events() []filter.Event {
	var out []filter.Event
	add := func(k filter.Kind, v string) {
		if v != "" {
			out = append(out, filter.Event{Kind: k, Value: v})
		}
	}
	add(filter.KindGeography, q.Geography)
	add(filter.KindDistrict, q.District)
	add(filter.KindParty, q.Party)
	add(filter.KindCandidate, q.Candidate)
	add(filter.KindPercentage, q.Percentage)
	return out
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.Geography, "geography", "", `province name or "*" for the whole nation`)
	cmd.Flags().StringVar(&q.District, "district", "", "district name")
	cmd.Flags().StringVar(&q.Party, "party", "", "party name")
	cmd.Flags().StringVar(&q.Candidate, "candidate", "", "candidate name")
	cmd.Flags().StringVar(&q.Percentage, "percentage", "", `vote share predicate: "above" or "below"`)
}

// runQuery applies the flags to a fresh session. The first rejected event
// stops the query.
func runQuery(data browser.Datasets, q queryFlags) (*browser.Session, error) {
	s := browser.NewSession("query", data, newJoiner(cfg))
	for _, ev := range q.events() {
		if _, err := s.Apply(ev); err != nil {
			return nil, eris.Wrapf(err, "%s %q", ev.Kind, ev.Value)
		}
	}
	return s, nil
}

// queryOutput is the YAML/JSON projection of a view without its geometry.
type queryOutput struct {
	State   filter.State              `json:"state" yaml:"state"`
	Options filter.Options            `json:"options" yaml:"options"`
	Results []browser.DistrictSummary `json:"results" yaml:"results"`
	Missing []string                  `json:"missing,omitempty" yaml:"missing,omitempty"`
	Notices []string                  `json:"notices,omitempty" yaml:"notices,omitempty"`
}

func writeQuery(w io.Writer, s *browser.Session, format string) error {
	view := s.View()
	out := queryOutput{
		State:   view.State,
		Options: view.Options,
		Results: view.Results,
		Missing: view.Render.Missing,
		Notices: view.Notices,
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(out)
	case "geojson":
		data, err := view.Render.GeoJSON(s.NameProperty())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "table":
		formatResults(w, view.Results)
		return nil
	default:
		return eris.Errorf("unknown format %q (want table, json, yaml or geojson)", format)
	}
}

func formatResults(out io.Writer, results []browser.DistrictSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PROVINCE\tDISTRICT\tCLASS\tWINNER\tCANDIDATES")
	_, _ = fmt.Fprintln(w, "--------\t--------\t-----\t------\t----------")
	for _, r := range results {
		names := make([]string, 0, len(r.Candidates))
		for _, c := range r.Candidates {
			share := "?"
			if pct, ok := c.Share(); ok {
				share = fmt.Sprintf("%.1f%%", pct)
			}
			names = append(names, fmt.Sprintf("%s (%s %s)", c.Name, c.Party, share))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Province,
			r.Name,
			r.Class,
			r.Winner,
			strings.Join(names, ", "),
		)
	}
	_ = w.Flush()
}

var (
	queryArgs      queryFlags
	queryFormat    string
	queryFromStore bool
	queryOut       string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one filter selection and print the matching districts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		data, err := loadDatasets(ctx, queryFromStore)
		if err != nil {
			return err
		}
		for _, n := range data.Notices {
			cmd.PrintErrln("warning:", n)
		}
		if data.Electoral == nil {
			return eris.New("query: electoral dataset unavailable")
		}

		s, err := runQuery(data, queryArgs)
		if err != nil {
			return err
		}

		out, err := createOutput(queryOut)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck
		return writeQuery(out, s, queryFormat)
	},
}

func init() {
	queryArgs.register(queryCmd)
	queryCmd.Flags().StringVar(&queryFormat, "format", "table", "output format: table, json, yaml or geojson")
	queryCmd.Flags().BoolVar(&queryFromStore, "from-store", false, "query the latest stored electoral import")
	queryCmd.Flags().StringVarP(&queryOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(queryCmd)
}
