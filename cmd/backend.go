package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geobrowser/pkg/dataconn"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Talk to the data-connection backend",
}

func newBackendClient() dataconn.Client {
	return dataconn.NewClient(
		dataconn.WithBaseURL(cfg.Backend.BaseURL),
		dataconn.WithTimeout(cfg.Backend.Timeout()),
	)
}

// -- backend connect --

var backendCreds dataconn.Credentials

var backendConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect the backend to a warehouse account and list its tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		creds := backendCreds
		if creds.Password == "" {
			creds.Password = os.Getenv("GEOBROWSER_BACKEND_PASSWORD")
		}
		tables, err := newBackendClient().Connect(cmd.Context(), creds)
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Println(t)
		}
		return nil
	},
}

// -- backend table --

var backendTableCmd = &cobra.Command{
	Use:   "table <name>",
	Short: "Print the rows of a warehouse table as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := newBackendClient().TableData(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	},
}

// -- backend electoral --

var (
	backendOut  string
	backendSave bool
)

var backendElectoralCmd = &cobra.Command{
	Use:   "electoral",
	Short: "Fetch electoral rows from the backend as nested electoral JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		ds, err := newBackendClient().ElectoralData(ctx)
		if err != nil {
			return err
		}

		if backendSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			id, err := st.SaveDataset(ctx, ds)
			if err != nil {
				return eris.Wrap(err, "backend electoral: save")
			}
			zap.L().Info("backend dataset imported", zap.String("id", id), zap.Int("districts", ds.Len()))
		}
		return writeElectoral(backendOut, ds)
	},
}

func init() {
	backendConnectCmd.Flags().StringVar(&backendCreds.Link, "link", "", "account link (https://<account>.snowflakecomputing.com)")
	backendConnectCmd.Flags().StringVar(&backendCreds.Username, "username", "", "warehouse username")
	backendConnectCmd.Flags().StringVar(&backendCreds.Password, "password", "", "warehouse password (default $GEOBROWSER_BACKEND_PASSWORD)")
	_ = backendConnectCmd.MarkFlagRequired("link")
	_ = backendConnectCmd.MarkFlagRequired("username")

	backendElectoralCmd.Flags().StringVarP(&backendOut, "out", "o", "", "output file (default stdout)")
	backendElectoralCmd.Flags().BoolVar(&backendSave, "save", false, "also save the dataset as a store import")

	backendCmd.AddCommand(backendConnectCmd, backendTableCmd, backendElectoralCmd)
	rootCmd.AddCommand(backendCmd)
}
