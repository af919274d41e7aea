// Command desktop runs the store ledger for the desktop shell: SQLite
// storage, requests over a JSON-lines pipe on stdin/stdout and logs on stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iho/storeledger/internal/adapter/ipc"
	"github.com/iho/storeledger/internal/app"
	"github.com/iho/storeledger/internal/infrastructure/config"
	"github.com/iho/storeledger/internal/infrastructure/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	cfg.StorageDriver = config.StorageSQLite

	// stdout carries the IPC stream
	lg := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg, os.Stdin, os.Stdout); err != nil {
		lg.Error().Err(err).Msg("desktop backend exited with error")
		os.Exit(1)
	}
}

// run serves IPC until in is closed or ctx is done.
func run(ctx context.Context, cfg *config.Config, lg zerolog.Logger, in io.Reader, out io.Writer) error {
	if err := checkLoopback(cfg.DesktopHTTPAddr); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			lg.Error().Err(err).Msg("failed to close application")
		}
	}()

	workersDone := make(chan error, 1)
	go func() { workersDone <- a.RunWorkers(ctx) }()

	var server *http.Server
	if cfg.DesktopHTTPAddr != "" {
		server = &http.Server{
			Addr:         cfg.DesktopHTTPAddr,
			Handler:      a.Handler,
			ReadTimeout:  cfg.HTTPReadTimeout,
			WriteTimeout: cfg.HTTPWriteTimeout,
		}
		go func() {
			lg.Info().Str("addr", cfg.DesktopHTTPAddr).Msg("serving loopback http")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				lg.Error().Err(err).Msg("loopback http failed")
			}
		}()
	}

	lg.Info().Str("path", cfg.SQLitePath).Msg("desktop backend ready")
	serveErr := ipc.NewBridge(a.Handler, lg, a.Metrics).Serve(ctx, in, out)
	if errors.Is(serveErr, context.Canceled) {
		serveErr = nil
	}
	cancel()

	if server != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error().Err(err).Msg("loopback http forced to shutdown")
		}
	}
	if err := <-workersDone; err != nil {
		lg.Error().Err(err).Msg("background worker failed")
	}

	lg.Info().Msg("desktop backend stopped")
	return serveErr
}

// checkLoopback refuses to expose the desktop API beyond this machine.
func checkLoopback(addr string) error {
	if addr == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid DESKTOP_HTTP_ADDR %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("DESKTOP_HTTP_ADDR %q must be a loopback address", addr)
}
