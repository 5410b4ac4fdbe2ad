package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"phishguard/config"
	"phishguard/db"
	phttp "phishguard/http"
	"phishguard/logging"
	"phishguard/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Initialize prediction history
	var history phttp.HistoryStore
	var store *db.Store
	if cfg.Database.Driver != "" {
		if cfg.Database.Driver == db.DriverSQLite {
			if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755); err != nil {
				logger.Fatal("failed to create database dir", zap.Error(err))
			}
		}
		store, err = db.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			logger.Fatal("failed to open database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		}
		history = store
		logger.Info("database initialized", zap.String("driver", cfg.Database.Driver))
	}

	// 3. Build handlers; the model is loaded on the first prediction
	handler, err := phttp.NewHandler(phttp.HandlerOptions{
		Models:    phttp.NewModelCache(cfg.Model.Path, logger),
		CacheSize: cfg.Cache.Size,
		History:   history,
		Logger:    logger,
		Static:    web.Static(),
	})
	if err != nil {
		logger.Fatal("failed to build handler", zap.Error(err))
	}

	// 4. Start HTTP server
	server := phttp.NewServer(phttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		RateLimit:      cfg.Http.RateLimit,
		RateBurst:      cfg.Http.RateBurst,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
	}, handler, logger)
	if store != nil {
		server.OnStop(store.Close)
	}
	if err := server.Listen(); err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}

	logger.Info("exiting")
}
