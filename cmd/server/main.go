package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"anonid/internal/platform/config"
	"anonid/internal/platform/httpserver"
	"anonid/internal/platform/logger"
)

var version = "dev"

// main wires high-level dependencies and keeps the process lifecycle small.
// Business logic lives in internal service packages.
func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "anonid: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	log.Info("starting anonid",
		"version", version,
		"addr", cfg.Server.Addr,
		"redis", cfg.Redis.Enabled(),
		"postgres", cfg.Postgres.Enabled(),
		"kafka", cfg.Kafka.Enabled(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.bus.Run(gctx) })
	g.Go(func() error { return app.scheduler.Run(gctx) })
	if app.archive != nil {
		g.Go(func() error { return app.archive.Run(gctx) })
	}
	g.Go(func() error {
		return httpserver.Run(gctx, httpserver.New(cfg.Server, app.router), cfg.Server.ShutdownTimeout, log)
	})

	err = g.Wait()

	// Events emitted while requests drained are still buffered.
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if cerr := app.bus.Close(closeCtx); cerr != nil {
		log.Warn("security event drain incomplete", "error", cerr)
	}
	return err
}
