// Package main implements the fabric worker agent: the contributor
// machine's BOOT->DETECT->TUNNEL->REGISTER->LAUNCH->HEARTBEAT->SHUTDOWN
// state machine described in internal/agent. Configuration is layered
// defaults -> YAML file -> WORKER_* environment variables via
// internal/config, and the process exposes a single "serve" subcommand,
// matching cmd/coordinator and cmd/edgerouter.
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

	"github.com/dreamware/fabric/internal/agent"
	"github.com/dreamware/fabric/internal/config"
	"github.com/dreamware/fabric/internal/wire"
)

var (
	configPath string
	listenAddr string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.code))
		}
		os.Exit(int(agent.ExitConfigError))
	}
}

// exitCodeError carries the worker agent CLI's documented exit code
// (spec.md §6) out of runServe without calling os.Exit mid-function,
// keeping runServe itself a plain, testable func(*cobra.Command, []string) error.
type exitCodeError struct {
	code agent.ExitCode
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the fabric worker agent",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "directory containing config.yaml")
	serveCmd.Flags().StringVar(&listenAddr, "listen", ":8070", "listen address for the agent's own HTTP surface")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worker agent state machine and HTTP surface",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("component", "worker").Logger()

	cfg, err := config.LoadWorker(configPath)
	if err != nil {
		return &exitCodeError{code: agent.ExitConfigError, err: err}
	}

	heartbeatInterval := 30 * time.Second

	a, err := agent.New(agent.Config{
		CoordinatorURL:      cfg.CoordinatorURL,
		WorkerID:            cfg.WorkerID,
		WorkerType:          wire.WorkerType(cfg.WorkerType),
		TunnelMode:          cfg.TunnelMode,
		ListenAddr:          listenAddr,
		HeartbeatInterval:   heartbeatInterval,
		ServiceReadyTimeout: cfg.ServiceReadyTimeout,
	}, log, nil, nil)
	if err != nil {
		return &exitCodeError{code: agent.ExitConfigError, err: err}
	}

	srv := agent.NewServer(a, log)
	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: srv.Router(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	httpErrCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", listenAddr).Msg("worker agent HTTP surface listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErrCh <- err
		}
	}()

	exitCh := make(chan agent.ExitCode, 1)
	go func() {
		exitCh <- a.Run(ctx)
	}()

	select {
	case err := <-httpErrCh:
		cancel()
		return err
	case code := <-exitCh:
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
		if code != agent.ExitClean {
			return &exitCodeError{code: code, err: errors.New("worker agent exited: " + code.String())}
		}
		return nil
	}
}
