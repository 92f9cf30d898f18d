package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// USGS feed configuration.
	USGSBaseURL   string
	USGSTimeout   time.Duration
	FeedCacheTTL  time.Duration
	FeedCacheSize int

	// Query audit log. Disabled unless KAFKA_ENABLED=true.
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaQueryTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	usgsTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("USGS_TIMEOUT", "10s"))
	if err != nil || usgsTimeout <= 0 {
		return nil, errors.New("invalid USGS_TIMEOUT")
	}

	cacheTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("FEED_CACHE_TTL", "60s"))
	if err != nil || cacheTTL < 0 {
		return nil, errors.New("invalid FEED_CACHE_TTL")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		USGSBaseURL:   sharedcfg.EnvOrDefault("USGS_BASE_URL", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary"),
		USGSTimeout:   usgsTimeout,
		FeedCacheTTL:  cacheTTL,
		FeedCacheSize: parseFeedCacheSize(),

		KafkaEnabled:    os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaQueryTopic: sharedcfg.EnvOrDefault("KAFKA_QUERY_TOPIC", "earthquake-queries"),
	}

	if cfg.USGSBaseURL == "" {
		return nil, errors.New("USGS_BASE_URL is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaQueryTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_QUERY_TOPIC is empty")
	}

	return cfg, nil
}

func parseFeedCacheSize() int {
	if s := os.Getenv("FEED_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 8
}
