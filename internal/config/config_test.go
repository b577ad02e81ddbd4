package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOT_ID", "bot-1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.ValkeyAddr)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "wbgt-region-batches", cfg.RegionBatchTopic)
	assert.Equal(t, "wbgt-notifications", cfg.NotificationTopic)
	assert.Equal(t, "wbgt-alert", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 100, cfg.MaxRegionBatch)
	assert.Equal(t, 15, cfg.DayCutoffHour)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)
	require.NotNil(t, cfg.Location)
	assert.Equal(t, 30*time.Second, cfg.ForecastTimeout)
	assert.Equal(t, "bot-1", cfg.BotID)
	assert.Equal(t, 5, cfg.SendMaxAttempts)
	assert.Equal(t, 10.0, cfg.SendRate)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("BOT_ID", "bot-2")
	t.Setenv("VALKEY_ADDR", "valkey:6380")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("REGION_BATCH_TOPIC", "custom-batches")
	t.Setenv("NOTIFICATION_TOPIC", "custom-notifications")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "10")
	t.Setenv("MAX_REGION_BATCH", "25")
	t.Setenv("DAY_CUTOFF_HOUR", "18")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("SEND_MAX_ATTEMPTS", "3")
	t.Setenv("SEND_RATE", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "valkey:6380", cfg.ValkeyAddr)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-batches", cfg.RegionBatchTopic)
	assert.Equal(t, "custom-notifications", cfg.NotificationTopic)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 25, cfg.MaxRegionBatch)
	assert.Equal(t, 18, cfg.DayCutoffHour)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 3, cfg.SendMaxAttempts)
	assert.Equal(t, 2.5, cfg.SendRate)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"missing bot id", "BOT_ID", ""},
		{"bad shutdown timeout", "SHUTDOWN_TIMEOUT", "soon"},
		{"negative shutdown timeout", "SHUTDOWN_TIMEOUT", "-5s"},
		{"bad batch size", "BATCH_SIZE", "many"},
		{"cutoff hour out of range", "DAY_CUTOFF_HOUR", "24"},
		{"zero region batch", "MAX_REGION_BATCH", "0"},
		{"unknown timezone", "TIMEZONE", "Mars/Olympus"},
		{"zero send attempts", "SEND_MAX_ATTEMPTS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.key != "BOT_ID" {
				t.Setenv("BOT_ID", "bot-1")
			}
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}
