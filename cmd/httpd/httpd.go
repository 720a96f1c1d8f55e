// Package httpd implements the HTTP API server command.
package httpd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GodspeedAgent/dpd-dispatch/cmd/common"
	"github.com/GodspeedAgent/dpd-dispatch/internal/api"
	"github.com/GodspeedAgent/dpd-dispatch/internal/geocode"
	"github.com/GodspeedAgent/dpd-dispatch/internal/logger"
	"github.com/GodspeedAgent/dpd-dispatch/internal/metrics"
	"github.com/GodspeedAgent/dpd-dispatch/internal/soda"
)

// shutdownTimeout bounds the graceful drain on exit.
const shutdownTimeout = 10 * time.Second

// Command returns the httpd command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Serve the query and geocode API over HTTP",
		Long: `Start the HTTP API server. It exposes incident search, geocoding,
dataset listing, a health check, and Prometheus metrics.`,
		RunE: run,
	}
}

func run(cmd *cobra.Command, _ []string) error {
	deps, err := common.Setup(cmd)
	if err != nil {
		return err
	}
	defer deps.Close()

	profile, err := deps.Profile()
	if err != nil {
		return err
	}

	m := metrics.New()

	client := deps.SodaClient(profile, soda.WithRecorder(m))
	defer client.Close()

	cache := deps.GeocodeCache()
	geocoder := deps.Geocoder(cache, geocode.WithGeocodeRecorder(m))
	m.SetCacheEntries(cache.Len())

	handler := api.NewHandler(client, geocoder, profile, deps.Logger)
	server := api.NewServer(handler, deps.Config.Server, deps.Config.App.Debug, m.Handler(), deps.Logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		deps.Logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	deps.Logger.Info("server stopped", logger.String("dataset", profile.DatasetID))
	return nil
}
