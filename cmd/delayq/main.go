package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"delayq/config"
	"delayq/pkg/logging"
	"delayq/pkg/server"
	"delayq/storage"
)

var (
	configPath = flag.String("config", "", "Path to configuration file")
	dataDir    = flag.String("data-dir", "./data", "Data directory")
	port       = flag.Int("port", 9000, "Server port")
	host       = flag.String("host", "localhost", "Server host")
	backend    = flag.String("backend", "", "Storage backend (memory, badger, redis, composite)")
	redisAddr  = flag.String("redis-addr", "", "Redis address")
	logLevel   = flag.String("log-level", "", "Log level")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		cfg = config.GetDefaultConfig()
		logrus.WithError(err).Warn("using default configuration")
	}

	// Override config with command line flags
	if *dataDir != "./data" {
		cfg.Storage.DataDir = *dataDir
	}
	if *port != 9000 {
		cfg.Server.Port = *port
	}
	if *host != "localhost" {
		cfg.Server.Host = *host
	}
	if *backend != "" {
		cfg.Storage.Backend = *backend
	}
	if *redisAddr != "" {
		cfg.Storage.Redis.Addr = *redisAddr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure logging")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize storage")
	}
	defer store.Close()

	srv, err := server.NewServer(cfg, store, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create server")
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"backend": cfg.Storage.Backend,
		"delay_s": cfg.Queue.DelaySeconds,
		"batch":   cfg.Queue.BatchSize,
	}).Info("starting delayq")
	if err := srv.Start(ctx); err != nil {
		logger.WithError(err).Fatal("server error")
	}

	logger.Info("delayq server stopped")
}
