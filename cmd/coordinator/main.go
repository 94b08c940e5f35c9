// Package main implements the fabric coordinator: the stateful worker
// registry and service reverse proxy described in
// internal/coordinator. Configuration is layered defaults -> YAML file
// -> COORDINATOR_* environment variables via internal/config, and the
// process exposes a single "serve" subcommand in the style of other
// single-purpose daemons in this codebase.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dreamware/fabric/internal/config"
	"github.com/dreamware/fabric/internal/coordinator"
	"github.com/dreamware/fabric/internal/registry"
)

// noThrashWindow bounds how long a re-registration with the same worker
// ID is treated as a touch rather than a fresh assignment decision.
const noThrashWindow = 2 * time.Second

var (
	configPath string
	listenAddr string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Run the fabric coordinator",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "directory containing config.yaml")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the coordinator HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("component", "coordinator").Logger()

	cfg, err := config.LoadCoordinator(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	reg := registry.New(cfg.WorkerTTL, noThrashWindow)

	purger := registry.NewPurger(reg, cfg.HeartbeatInterval, log)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	purger.Start(ctx)
	defer purger.Stop()

	srv := coordinator.NewServer(reg, coordinator.Config{
		CoordinatorID:     cfg.CoordinatorID,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ProxyTimeout:      cfg.ProxyTimeout,
	}, log)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("coordinator listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
