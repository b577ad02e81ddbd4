package domain

import (
	"fmt"
	"time"
)

// dateKeyLayout is the date portion of a time key.
const dateKeyLayout = "20060102"

// ForecastKey builds the storage key for a (point, time bucket) pair.
func ForecastKey(pointID, timeKey string) string {
	return fmt.Sprintf("%s_%s", pointID, timeKey)
}

// DateKey formats a day as the date portion of a time key.
func DateKey(day time.Time) string {
	return day.Format(dateKeyLayout)
}

// DailyTimeKeys returns the fixed schedule of time-bucket keys for one day:
// eight 3-hour buckets at hours 03 through 24.
func DailyTimeKeys(dateKey string) []string {
	keys := make([]string, 0, 8)
	for hour := 3; hour <= 24; hour += 3 {
		keys = append(keys, fmt.Sprintf("%s%02d", dateKey, hour))
	}
	return keys
}

// ForecastDay selects which day's forecast to evaluate. At or after
// cutoffHour local time the upcoming day is already being forecast, so the
// next calendar day is returned; before the cutoff it is today.
func ForecastDay(now time.Time, cutoffHour int) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if now.Hour() >= cutoffHour {
		day = day.AddDate(0, 0, 1)
	}
	return day
}
