// Command kpald is the KPAL peripheral daemon: it scans a
// directory of plugin shared libraries at startup, then serves the
// Core API over HTTP.
package main

//	@title			KPAL Peripheral Daemon API
//	@version		0.1.0
//	@description	Mediates between network clients and dynamic hardware peripherals loaded from C-ABI plugins.
//	@BasePath		/

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kpal-project/kpal/internal/config"
	"github.com/kpal-project/kpal/internal/core"
	"github.com/kpal-project/kpal/internal/event"
	"github.com/kpal-project/kpal/internal/httpapi"
	"github.com/kpal-project/kpal/internal/libraryregistry"
	"github.com/kpal-project/kpal/internal/metrics"
	"github.com/kpal-project/kpal/internal/version"
	"github.com/kpal-project/kpal/internal/wsfeed"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Short())
		os.Exit(0)
	}

	viperCfg := config.Defaults()
	cfg, err := config.Load(viperCfg, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("kpald starting", zap.String("version", version.Short()))
	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults")
	}

	if err := os.MkdirAll(cfg.LibraryDir, 0o755); err != nil {
		logger.Fatal("failed to create library directory", zap.String("dir", cfg.LibraryDir), zap.Error(err))
	}

	libraries, err := libraryregistry.Load(cfg.LibraryDir, libraryregistry.NewLoader(), logger.Named("libraryregistry"))
	if err != nil {
		logger.Fatal("failed to scan plugin library directory", zap.String("dir", cfg.LibraryDir), zap.Error(err))
	}
	logger.Info("plugin libraries loaded",
		zap.String("dir", cfg.LibraryDir),
		zap.Int("count", len(libraries.List())),
	)

	bus := event.NewBus(logger.Named("event"))

	c := core.New(libraries, libraryregistry.NewLoader(), logger.Named("core"),
		core.WithRequestTimeout(cfg.RequestTimeout),
		core.WithNotifier(bus),
		core.WithMetrics(metrics.New()),
	)

	readyCheck := httpapi.ReadinessChecker(func(context.Context) error { return nil })
	wsHandler := wsfeed.NewHandler(bus, logger.Named("wsfeed"))

	srv := httpapi.New(cfg.ServerAddress, c, logger.Named("httpapi"), readyCheck, cfg.DevMode,
		cfg.RateLimit.RPS, cfg.RateLimit.Burst, wsHandler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()
	logger.Info("kpald ready", zap.String("addr", cfg.ServerAddress))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("kpald stopped")
}
