package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platinummonkey/apidelta/pkg/config"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/server"
	"github.com/platinummonkey/apidelta/pkg/watcher"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to the config file")
	dir := flag.String("dir", "", "Descriptor directory to watch (overrides watcher.dir)")
	reference := flag.String("reference", "", "Reference baseline name or path (overrides watcher.reference)")
	push := flag.Bool("push", false, "Store the watched baseline after every check")
	metricsAddr := flag.String("metrics-addr", "", "Serve /metrics and /health on this address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	opts := watcher.OptionsFromConfig(cfg)
	if *dir != "" {
		opts.Dir = *dir
	}
	if *reference != "" {
		opts.Reference = *reference
	}
	opts.Push = *push

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := watcher.NewLogger(cfg.Watcher.LogFormat, cfg.Observability.LogLevel, os.Stdout)
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	rt, err := server.NewRuntime(ctx, cfg, logger, version)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := rt.Close(shutdownCtx); err != nil {
			log.WithError(err).Warn("Shutdown incomplete")
		}
	}()

	w, err := watcher.New(rt.Checker, opts, log, watcher.WithMetrics(rt.Metrics))
	if err != nil {
		log.Fatalf("Invalid watcher configuration: %v", err)
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler(rt.Registry))
		mux.HandleFunc("/health", rt.Health.Liveness)
		mux.HandleFunc("/ready", rt.Health.Readiness)
		srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
		defer srv.Close()
	}

	if err := w.Run(ctx); err != nil {
		log.WithError(err).Error("Watcher failed")
		os.Exit(1)
	}
}
