package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoCodeAlone/versiond/api"
	"github.com/GoCodeAlone/versiond/config"
	"github.com/GoCodeAlone/versiond/metrics"
	"github.com/GoCodeAlone/versiond/migration"
	"github.com/GoCodeAlone/versiond/negotiate"
	"github.com/GoCodeAlone/versiond/registry"
	"github.com/GoCodeAlone/versiond/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration YAML file")
	addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
)

func main() {
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	} else {
		logger.Info("no config file specified, using defaults")
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer func() {
		if closer, ok := st.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("store close", "error", err)
			}
		}
	}()

	reg := registry.NewService(st, logger)

	resolver, err := negotiate.NewResolver(negotiate.ResolverConfig{
		DefaultVersion:    cfg.DefaultVersion,
		SupportedVersions: cfg.SupportedVersions,
		StrictMode:        cfg.StrictMode,
	}, reg)
	if err != nil {
		log.Fatalf("Failed to build resolver: %v", err)
	}

	detector := negotiate.NewDetector(negotiate.DetectorConfig{
		DefaultVersion: cfg.DefaultVersion,
		VersionHeader:  cfg.VersionHeader,
		VersionParam:   cfg.VersionParam,
		ExcludedPaths:  cfg.ExcludedPaths,
	})

	handlers := migration.NewHandlerRegistry()
	migration.RegisterNoopHandlers(handlers)

	collector := metrics.NewCollector(cfg.MetricsNamespace)
	planner := migration.NewPlanner(st, logger)
	executor := migration.NewExecutor(st, handlers, logger, collector)

	handler := api.NewRouter(api.Deps{
		Registry:       reg,
		Detector:       detector,
		Resolver:       resolver,
		Analyzer:       negotiate.NewAnalyzer(reg),
		Planner:        planner,
		Executor:       executor,
		DefaultVersion: cfg.DefaultVersion,
		Logger:         logger,
		Metrics:        collector,
	})

	// Hot-reload the supported version set on config file changes.
	if *configFile != "" {
		watcher := config.NewWatcher(*configFile, func(next config.Config) {
			resolver.SetSupported(next.SupportedParsed())
			logger.Info("supported versions reloaded", "versions", next.SupportedVersions)
		}, config.WithWatchLogger(logger))
		if err := watcher.Start(); err != nil {
			logger.Warn("config watcher disabled", "error", err)
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", cfg.ListenAddr, "store", cfg.Store.Backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	fmt.Println("Shutdown complete")
}

// openStore builds the persistence backend selected by the config.
func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "file":
		return store.NewFileStore(cfg.Path)
	case "sqlite":
		return store.NewSQLiteStore(cfg.Path)
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return store.NewRedisStore(ctx, store.RedisStoreConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
