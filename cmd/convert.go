package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geobrowser/internal/boundary"
	"github.com/sells-group/geobrowser/internal/convert"
	"github.com/sells-group/geobrowser/internal/electoral"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert source data into the formats the browser loads",
}

// -- convert electoral --

var (
	convertGeoJSONDir string
	convertOut        string
)

var convertElectoralCmd = &cobra.Command{
	Use:   "electoral <csv-file>",
	Short: "Group flat candidate rows (CSV) into nested electoral JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		ds, err := convert.ElectoralFromCSV(cmd.Context(), f, convertGeoJSONDir)
		if err != nil {
			return err
		}
		return writeElectoral(convertOut, ds)
	},
}

// -- convert rows --

var convertRowsCmd = &cobra.Command{
	Use:   "rows <json-file>",
	Short: "Group a JSON array of flat candidate rows into nested electoral JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		ds, err := convert.ElectoralFromRows(cmd.Context(), f)
		if err != nil {
			return err
		}
		return writeElectoral(convertOut, ds)
	},
}

// -- convert boundaries --

var convertBoundaryOpts convert.BoundaryOptions

var convertBoundariesCmd = &cobra.Command{
	Use:   "boundaries <file>",
	Short: "Convert a shapefile, zipped shapefile, WKT CSV or GeoJSON file into a GeoJSON FeatureCollection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := convert.BoundariesFromFile(cmd.Context(), args[0], convertBoundaryOpts)
		if err != nil {
			return err
		}

		out, err := createOutput(convertOut)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck
		if err := boundary.WriteGeoJSON(out, ds); err != nil {
			return err
		}
		zap.L().Info("boundaries converted", zap.String("source", args[0]), zap.Int("features", ds.Len()))
		return nil
	},
}

func writeElectoral(path string, ds *electoral.Dataset) error {
	out, err := createOutput(path)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck
	return electoral.Encode(out, ds)
}

func init() {
	convertCmd.PersistentFlags().StringVarP(&convertOut, "out", "o", "", "output file (default stdout)")
	convertElectoralCmd.Flags().StringVar(&convertGeoJSONDir, "geojson-dir", "", "directory of <district-number>.geojson outlines to attach")
	convertBoundariesCmd.Flags().StringVar(&convertBoundaryOpts.NameColumn, "name-column", "name", "attribute or column holding the district name")
	convertBoundariesCmd.Flags().StringVar(&convertBoundaryOpts.GeomColumn, "geom-column", "", "WKT geometry column for CSV input")
	convertBoundariesCmd.Flags().StringVar(&convertBoundaryOpts.WorkDir, "work-dir", "", "extraction directory for zipped shapefiles (default temp)")

	convertCmd.AddCommand(convertElectoralCmd, convertRowsCmd, convertBoundariesCmd)
	rootCmd.AddCommand(convertCmd)
}
