package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geobrowser/internal/electoral"
	"github.com/sells-group/geobrowser/internal/fetcher"
	"github.com/sells-group/geobrowser/internal/store"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage stored electoral dataset imports",
}

// -- store import --

var storeImportCmd = &cobra.Command{
	Use:   "import [source]",
	Short: "Save an electoral dataset (file, http(s) or ftp source) as a new import",
	Long:  "Reads nested electoral JSON from source, or from data.electoral_url when no source is given, and saves it to the configured store.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		source := cfg.Data.ElectoralURL
		if len(args) == 1 {
			source = args[0]
		}
		body, err := fetcher.Open(ctx, source, fetchOptions(cfg))
		if err != nil {
			return err
		}
		defer body.Close() //nolint:errcheck

		ds, err := electoral.Decode(body)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		id, err := st.SaveDataset(ctx, ds)
		if err != nil {
			return eris.Wrap(err, "store import")
		}
		zap.L().Info("dataset imported",
			zap.String("id", id),
			zap.String("source", source),
			zap.Int("districts", ds.Len()),
		)
		fmt.Println(id)
		return nil
	},
}

// -- store list --

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored imports, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		imports, err := st.ListImports(ctx)
		if err != nil {
			return eris.Wrap(err, "store list")
		}
		if len(imports) == 0 {
			fmt.Fprintln(os.Stderr, "No imports found.")
			return nil
		}
		formatImportsList(os.Stdout, imports)
		return nil
	},
}

// -- store export --

var storeExportOut string

var storeExportCmd = &cobra.Command{
	Use:   "export [import-id]",
	Short: "Write a stored import (default the latest) as nested electoral JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var ds *electoral.Dataset
		if len(args) == 1 {
			ds, err = st.LoadImport(ctx, args[0])
		} else {
			ds, err = st.LoadDataset(ctx)
		}
		if err != nil {
			return eris.Wrap(err, "store export")
		}
		return writeElectoral(storeExportOut, ds)
	},
}

// -- store delete --

var storeDeleteCmd = &cobra.Command{
	Use:   "delete <import-id>",
	Short: "Delete a stored import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteImport(ctx, args[0]); err != nil {
			return eris.Wrapf(err, "store delete %s", args[0])
		}
		zap.L().Info("import deleted", zap.String("id", args[0]))
		return nil
	},
}

func formatImportsList(out io.Writer, imports []store.Import) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tPROVINCES\tDISTRICTS\tROWS")
	_, _ = fmt.Fprintln(w, "--\t-------\t---------\t---------\t----")
	for _, im := range imports {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
			im.ID,
			im.CreatedAt.Format("2006-01-02 15:04"),
			im.Provinces,
			im.Districts,
			im.Rows,
		)
	}
	_ = w.Flush()
}

func init() {
	storeExportCmd.Flags().StringVarP(&storeExportOut, "out", "o", "", "output file (default stdout)")
	storeCmd.AddCommand(storeImportCmd, storeListCmd, storeExportCmd, storeDeleteCmd)
	rootCmd.AddCommand(storeCmd)
}
