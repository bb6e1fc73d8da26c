package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	cfg, notes := LoadConfig()

	logger := NewLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer logger.Sync()

	for _, note := range notes {
		logger.Info(note)
	}
	if missing := cfg.MissingRequired(); len(missing) > 0 {
		logger.Warn("Missing required environment variables", zap.Strings("vars", missing))
	}

	// Topic table, optionally hot reloaded from disk
	topics, err := NewTopicStore(cfg.Topics.FilePath, logger.Named("topics"))
	if err != nil {
		logger.Fatal("Failed to load topic table", zap.Error(err))
	}
	defer topics.Close()

	if cfg.Topics.Watch {
		if err := topics.Watch(); err != nil {
			logger.Error("Topic file watching disabled", zap.Error(err))
		}
	}

	maps := NewGoogleMapService(cfg.Maps, logger.Named("maps"))
	maps.ValidateKeys()

	server := NewServer(cfg, topics, maps, logger.Named("http"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Help bot started",
		zap.String("port", cfg.App.Port),
		zap.String("topics", topics.Source()),
		zap.Bool("auto_reload", cfg.Topics.Watch))

	if err := server.Start(ctx, ":"+cfg.App.Port); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
	logger.Info("Help bot stopped")
}
