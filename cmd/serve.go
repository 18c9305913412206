package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geobrowser/internal/api"
	"github.com/sells-group/geobrowser/internal/browser"
	"github.com/sells-group/geobrowser/internal/config"
	"github.com/sells-group/geobrowser/internal/geojoin"
)

var (
	servePort      int
	serveFromStore bool
	serveNoStore   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the browser API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		data, err := loadDatasets(ctx, serveFromStore)
		if err != nil {
			return err
		}
		reg := browser.NewRegistry(data, registryOptions(cfg))
		go reg.RunSweeper(ctx, time.Minute)

		opts := api.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			DefaultBudget:  cfg.Allocator.DefaultBudget,
			Reload: func(ctx context.Context) (browser.Datasets, error) {
				return loadDatasets(ctx, serveFromStore)
			},
		}
		if !serveNoStore {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			opts.Store = st
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.NewServer(reg, opts).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Bool("electoral", data.Electoral != nil),
			zap.Bool("boundary", data.Boundary != nil),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func registryOptions(c *config.Config) browser.RegistryOptions {
	return browser.RegistryOptions{
		MaxSessions:      c.Server.MaxSessions,
		TTL:              c.Server.SessionTTL(),
		Matcher:          geojoin.NewMatcher(c.Match.Strategy),
		ProvinceFallback: c.Match.ProvinceFallback,
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveFromStore, "from-store", false, "serve the latest stored electoral import instead of data.electoral_url")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false, "do not open the store; /get_electoral_data serves the loaded dataset")
	rootCmd.AddCommand(serveCmd)
}
