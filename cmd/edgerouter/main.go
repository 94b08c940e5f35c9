// Package main implements the fabric edge router: the durable
// coordinator registry and catch-all reverse proxy described in
// internal/edge. Configuration is layered defaults -> YAML file ->
// EDGEROUTER_* environment variables via internal/config, and the
// process exposes a single "serve" subcommand, matching cmd/coordinator
// and cmd/worker.
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
	"github.com/dreamware/fabric/internal/edge"
	"github.com/dreamware/fabric/internal/storage"
)

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
	Use:   "edgerouter",
	Short: "Run the fabric edge router",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "directory containing config.yaml")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the edge router HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("component", "edgerouter").Logger()

	cfg, err := config.LoadEdgeRouter(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	store, err := storage.NewBoltStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	reg, err := edge.New(store, cfg.CoordinatorTTL)
	if err != nil {
		return err
	}

	srv := edge.NewServer(reg, log)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("edge router listening")
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
