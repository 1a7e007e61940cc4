// Command orderstatsd serves report generation over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"orderstats/internal/config"
	"orderstats/internal/httpapi"
	"orderstats/internal/logging"
	"orderstats/internal/metrics"
	"orderstats/internal/service"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default $"+config.FileEnv+")")
	addr := flag.String("addr", "", "listen address override, e.g. :8080")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("orderstatsd: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := run(cfg); err != nil {
		log.Fatalf("orderstatsd failed: %v", err)
	}
}

func run(cfg *config.Config) error {
	logger := logging.Setup(cfg.Logging)
	mreg := metrics.NewRegistry()

	analyzer, closeFn, err := service.FromConfig(cfg, mreg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			logger.Warn("close", "err", err)
		}
	}()

	h := httpapi.NewHandler(analyzer, mreg, logger, cfg.Server.MaxUploadBytes)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			"addr", cfg.Server.Addr,
			"cache", cfg.Cache.Backend,
			"kafka", cfg.Kafka.Enabled(),
			"publish_dir", cfg.Publish.Dir,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
