package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platformbuilds/becertain-core/internal/api"
	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/analyzer"
	"github.com/platformbuilds/becertain-core/internal/store"
	"github.com/platformbuilds/becertain-core/pkg/cache"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.New(cfg.LogLevel)
	logg.Info("Starting becertain-core", "environment", cfg.Environment, "port", cfg.Port)

	// State store with automatic fallback to in-process memory when Redis
	// is unreachable.
	kv := cache.NewAutoSwapStore(
		cfg.Store.RedisAddr,
		cfg.Store.RedisDB,
		cfg.Store.RedisPassword,
		time.Duration(cfg.Store.RetryCooldownSeconds*float64(time.Second)),
		cfg.Store.FallbackMaxItems,
		logg,
	)

	registry := store.NewTenantRegistry(kv, cfg.Store, cfg.Engine.Registry, logg)
	rcaAnalyzer := analyzer.New(kv, registry, cfg, logg)
	apiServer := api.NewServer(cfg, logg, kv, registry, rcaAnalyzer)

	// Hot-reload engine tunables on config file changes. Datasource and
	// listener changes still need a restart.
	if stop, err := config.Watch("config.yaml", logg, func(fresh *config.Config) {
		cfg.Engine = fresh.Engine
		logg.Info("engine configuration updated")
	}); err != nil {
		logg.Warn("config watcher unavailable", "error", err)
	} else {
		defer stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logg.Info("Shutdown signal received")
		cancel()
	}()

	if err := apiServer.Start(ctx); err != nil {
		logg.Fatal("Server failed", "error", err)
	}

	logg.Info("Shutdown complete")
}
