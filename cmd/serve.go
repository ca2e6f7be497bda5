package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sharedbox/sharedbox/internal/config"
	"github.com/sharedbox/sharedbox/internal/logging"
	"github.com/sharedbox/sharedbox/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath     string
		debugMode      bool
		httpAddr       string
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the aggregation API server",
		Long: `Start the HTTP API server. The server aggregates mail from every
configured account on demand, refreshes OAuth tokens as needed, probes
IMAP connections and serves upcoming calendar events.

Accounts live in the SQLite store named by database_path; a request may
also carry its accounts inline. Prometheus metrics are exposed on a
dedicated listener unless disabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, debugMode, httpAddr, metricsEnabled, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the configuration file. Defaults to ~/.config/sharedbox/config.yaml.")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging.")
	cmd.Flags().StringVar(&httpAddr, "addr", "", "API server address. Overrides server.addr from the configuration.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics server address. Overrides server.metrics_addr from the configuration.")

	return cmd
}

// firstNonEmpty applies flag-over-config precedence for addresses.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func runServe(configPath string, debugMode bool, httpAddr string, metricsEnabled bool, metricsAddr string) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	app, err := buildApplication(shutdownCtx, configPath, debugMode, metricsEnabled)
	if err != nil {
		return err
	}
	logger := app.logger

	shutdownTimeout := server.DefaultShutdownTimeout
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		app.Close(ctx)
	}()

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if metricsEnabled && app.provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    firstNonEmpty(metricsAddr, app.cfg.Server.MetricsAddr),
			InstrumentationProvider: app.provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case err := <-metricsErr:
			if err != nil {
				return fmt.Errorf("metrics server failed to start: %w", err)
			}
		case <-time.After(100 * time.Millisecond):
			logger.Info("metrics server started", "addr", metricsServer.Addr())
		}

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	sc := server.NewServerContext(shutdownCtx, app.engine, app.calendar, app.store, app.prober, logger)
	defer func() {
		if err := sc.Shutdown(); err != nil {
			logger.Error("server context shutdown failed", logging.Err(err))
		}
	}()

	apiServer := server.NewAPIServer(sc, firstNonEmpty(httpAddr, app.cfg.Server.Addr), app.provider.Metrics())

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", apiServer.Addr())
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-shutdownCtx.Done():
	}

	logger.Info("shutdown signal received, stopping API server")
	ctx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := apiServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}
	return nil
}
