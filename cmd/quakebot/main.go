package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/quake-query-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-query-service/internal/adapter/kafka"
	"github.com/couchcryptid/quake-query-service/internal/adapter/usgs"
	"github.com/couchcryptid/quake-query-service/internal/config"
	"github.com/couchcryptid/quake-query-service/internal/domain"
	"github.com/couchcryptid/quake-query-service/internal/observability"
	"github.com/couchcryptid/quake-query-service/internal/router"
)

const warmTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	client := usgs.NewClient(cfg.USGSBaseURL, cfg.USGSTimeout, metrics, logger)
	source, err := usgs.NewCachedSource(client, cfg.FeedCacheSize, cfg.FeedCacheTTL, clock, metrics)
	if err != nil {
		logger.Error("failed to create feed cache", "error", err)
		os.Exit(1)
	}
	logger.Info("usgs feed configured", "base_url", cfg.USGSBaseURL, "cache_ttl", cfg.FeedCacheTTL, "cache_size", cfg.FeedCacheSize)

	// Query audit log (feature-flagged via KAFKA_ENABLED).
	var recorder domain.QueryRecorder
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		recorder = writer
		logger.Info("query audit log enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaQueryTopic)
	} else {
		logger.Info("query audit log disabled")
	}

	r := router.New(source, recorder, clock, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, r, r, clock, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Warm the feed cache so /readyz passes before the first message.
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, warmTimeout)
		defer cancel()
		if err := r.Warm(warmCtx); err != nil {
			logger.Warn("initial feed fetch failed", "error", err)
			return
		}
		logger.Info("event source ready")
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
