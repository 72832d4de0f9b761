package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/agentweb/agentweb/internal/cache"
	"github.com/agentweb/agentweb/internal/common/config"
	logutil "github.com/agentweb/agentweb/internal/common/logger"
	"github.com/agentweb/agentweb/internal/metrics"
	"github.com/agentweb/agentweb/internal/orchestrator"
	"github.com/agentweb/agentweb/internal/render/browser"
	"github.com/agentweb/agentweb/internal/render/lite"
	"github.com/agentweb/agentweb/internal/server"
)

func main() {
	configPath := flag.String("c", "",
		"Path to agentwebd configuration file (built-in defaults when omitted)")
	flag.Parse()

	// Initial logger, replaced once configuration is loaded
	initialLogger, err := logutil.NewDefaultLogger()
	if err != nil {
		panic(err)
	}

	var cfg *config.Config
	if *configPath == "" {
		initialLogger.Info("No config file given, using built-in defaults")
		cfg = config.Default()
	} else {
		initialLogger.Info("Loading configuration", zap.String("path", *configPath))

		absPath, err := config.GetConfigPath(*configPath)
		if err != nil {
			initialLogger.Fatal("Invalid config path", zap.Error(err))
		}

		cfg, err = config.Load(absPath)
		if err != nil {
			initialLogger.Fatal("Failed to load configuration", zap.Error(err))
		}
	}

	// Reconfigure logger from config (stays at INFO during startup if the
	// configured level is quieter)
	dynamicLogger, err := logutil.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}

	logger := dynamicLogger.Logger

	logger.Info("agentwebd starting",
		zap.String("listen", cfg.Server.Listen),
		zap.String("browser_concurrency", cfg.Browser.Concurrency))

	cachePath := cfg.Cache.Path
	if cachePath == "" {
		cachePath = cache.DefaultDBPath()
	}
	resultCache, err := cache.New(cache.Config{
		DBPath:      cachePath,
		TTL:         cfg.Cache.TTL.ToDuration(),
		MaxEntries:  cfg.Cache.MaxEntries,
		Compression: cfg.Cache.Compression,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to open result cache", zap.Error(err))
	}

	browserConfig := browser.Config{Concurrency: cfg.Browser.Concurrency}
	if err := browserConfig.Validate(); err != nil {
		logger.Fatal("Invalid browser configuration", zap.Error(err))
	}

	metricsCollector := metrics.New(cfg.Metrics.Namespace, logger)

	fetcher := lite.NewClient(cfg.Render.Timeout.ToDuration(), 0, logger)
	browserRenderer := browser.NewRenderer(&browserConfig, logger)
	pipeline := orchestrator.New(fetcher, browserRenderer, resultCache, metricsCollector, logger)

	var metricsForServer *metrics.Metrics
	if cfg.Metrics.Enabled {
		metricsForServer = metricsCollector
	}
	renderDefaults := orchestrator.Options{
		ChunkLimit: cfg.Render.ChunkLimit,
		Timeout:    cfg.Render.Timeout.ToDuration(),
	}
	httpServer := server.New(pipeline, metricsForServer, renderDefaults, logger)

	fastServer := &fasthttp.Server{
		Handler:      httpServer.Handler(),
		ReadTimeout:  cfg.Render.Timeout.ToDuration() + 10*time.Second,
		WriteTimeout: cfg.Render.Timeout.ToDuration() + 10*time.Second,
		IdleTimeout:  60 * time.Second,
		Name:         "agentwebd",
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("listen", cfg.Server.Listen))
		if err := fastServer.ListenAndServe(cfg.Server.Listen); err != nil {
			serverErrCh <- err
		}
	}()

	// Wait briefly, then check whether the listener came up
	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-serverErrCh:
		logger.Fatal("HTTP server failed to start", zap.Error(err))
	default:
	}

	logger.Info("agentwebd ready",
		zap.String("listen", cfg.Server.Listen),
		zap.String("cache_path", cachePath))

	dynamicLogger.SwitchToConfiguredLevel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErrCh:
		logger.Error("Server error", zap.Error(err))
	}

	dynamicLogger.EnsureInfoLevelForShutdown()
	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := fastServer.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	browserRenderer.Close()

	if err := resultCache.Close(); err != nil {
		logger.Error("Cache close error", zap.Error(err))
	}

	logger.Info("agentwebd stopped")
}
