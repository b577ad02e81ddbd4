package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	ValkeyAddr string

	KafkaBrokers      []string
	RegionBatchTopic  string
	NotificationTopic string
	KafkaGroupID      string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// BatchSize is the maximum number of queue messages a worker extracts
	// per cycle; MaxRegionBatch caps subscribers per RegionBatch message.
	BatchSize      int
	MaxRegionBatch int

	// Day-selection policy: at or after DayCutoffHour in Location, the
	// next day's forecast is evaluated.
	DayCutoffHour int
	Timezone      string
	Location      *time.Location

	ForecastURL     string
	ForecastTimeout time.Duration

	// Cron specs for the importer and the subscriber fan-out.
	ImportSchedule string
	FanoutSchedule string

	BotID         string
	AuthBaseURL   string
	BotAPIBaseURL string

	SendMaxAttempts int
	SendRate        float64 // outbound sends per second
}

// Load reads configuration from environment variables, applying defaults
// where unset. Validation failures abort startup; stages never re-check.
func Load() (*Config, error) {
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	forecastTimeout, err := envDuration("FORECAST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	batchSize, err := envInt("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	maxRegionBatch, err := envInt("MAX_REGION_BATCH", 100)
	if err != nil {
		return nil, err
	}
	cutoffHour, err := envInt("DAY_CUTOFF_HOUR", 15)
	if err != nil {
		return nil, err
	}
	sendMaxAttempts, err := envInt("SEND_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	sendRate, err := envFloat("SEND_RATE", 10)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ValkeyAddr: envOrDefault("VALKEY_ADDR", "localhost:6379"),

		KafkaBrokers:      splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		RegionBatchTopic:  envOrDefault("REGION_BATCH_TOPIC", "wbgt-region-batches"),
		NotificationTopic: envOrDefault("NOTIFICATION_TOPIC", "wbgt-notifications"),
		KafkaGroupID:      envOrDefault("KAFKA_GROUP_ID", "wbgt-alert"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BatchSize:      batchSize,
		MaxRegionBatch: maxRegionBatch,

		DayCutoffHour: cutoffHour,
		Timezone:      envOrDefault("TIMEZONE", "Asia/Tokyo"),

		ForecastURL:     envOrDefault("FORECAST_URL", "https://www.wbgt.env.go.jp/prev15WG/dl/yohou_all.csv"),
		ForecastTimeout: forecastTimeout,

		ImportSchedule: envOrDefault("IMPORT_SCHEDULE", "0 */3 * * *"),
		FanoutSchedule: envOrDefault("FANOUT_SCHEDULE", "0 7,18 * * *"),

		BotID:         os.Getenv("BOT_ID"),
		AuthBaseURL:   envOrDefault("AUTH_BASE_URL", "https://auth.worksmobile.com"),
		BotAPIBaseURL: envOrDefault("BOT_API_BASE_URL", "https://www.worksapis.com/v1.0"),

		SendMaxAttempts: sendMaxAttempts,
		SendRate:        sendRate,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.RegionBatchTopic == "" {
		return nil, errors.New("REGION_BATCH_TOPIC is required")
	}
	if cfg.NotificationTopic == "" {
		return nil, errors.New("NOTIFICATION_TOPIC is required")
	}
	if cfg.BotID == "" {
		return nil, errors.New("BOT_ID is required")
	}
	if cfg.DayCutoffHour < 0 || cfg.DayCutoffHour > 23 {
		return nil, errors.New("DAY_CUTOFF_HOUR must be in [0,23]")
	}
	if cfg.MaxRegionBatch <= 0 {
		return nil, errors.New("MAX_REGION_BATCH must be positive")
	}
	if cfg.SendMaxAttempts <= 0 {
		return nil, errors.New("SEND_MAX_ATTEMPTS must be positive")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
