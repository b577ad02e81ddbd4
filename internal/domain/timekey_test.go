package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecastKey(t *testing.T) {
	assert.Equal(t, "44132_2023061415", ForecastKey("44132", "2023061415"))
}

func TestDailyTimeKeys(t *testing.T) {
	keys := DailyTimeKeys("20230614")
	require.Len(t, keys, 8)
	assert.Equal(t, "2023061403", keys[0])
	assert.Equal(t, "2023061412", keys[3])
	assert.Equal(t, "2023061424", keys[7])
}

func TestDateKey(t *testing.T) {
	day := time.Date(2023, time.June, 14, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "20230614", DateKey(day))
}

func TestForecastDay(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"before cutoff evaluates today",
			time.Date(2023, time.June, 14, 7, 0, 0, 0, jst),
			time.Date(2023, time.June, 14, 0, 0, 0, 0, jst),
		},
		{
			"at cutoff evaluates tomorrow",
			time.Date(2023, time.June, 14, 15, 0, 0, 0, jst),
			time.Date(2023, time.June, 15, 0, 0, 0, 0, jst),
		},
		{
			"evening evaluates tomorrow",
			time.Date(2023, time.June, 14, 18, 45, 0, 0, jst),
			time.Date(2023, time.June, 15, 0, 0, 0, 0, jst),
		},
		{
			"just before cutoff stays on today",
			time.Date(2023, time.June, 14, 14, 59, 59, 0, jst),
			time.Date(2023, time.June, 14, 0, 0, 0, 0, jst),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(ForecastDay(tt.now, 15)))
		})
	}
}
