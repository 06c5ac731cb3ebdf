package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/platinummonkey/apidelta/pkg/config"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/server"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithFields(map[string]interface{}{
		"version": version,
		"storage": cfg.Storage.Type,
		"addr":    cfg.Server.Addr(),
	}).Info("Starting apidelta server")

	if err := server.Run(context.Background(), cfg, logger, version); err != nil {
		logger.WithError(err).Error("Server exited")
		os.Exit(1)
	}
}
