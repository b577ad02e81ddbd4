package domain

// Classify returns the alert level applicable to a WBGT value. A level
// matches when MinValue <= value <= MaxValue; among overlapping matches the
// highest priority wins, and among equal priorities the first-seen level
// wins. The second return is false when no range matches, which callers
// must treat as "no alert applicable", not as an error.
func Classify(value float64, levels []AlertLevel) (AlertLevel, bool) {
	var (
		best  AlertLevel
		found bool
	)
	for _, level := range levels {
		if value < float64(level.MinValue) || value > float64(level.MaxValue) {
			continue
		}
		if !found || level.Priority > best.Priority {
			best = level
			found = true
		}
	}
	return best, found
}

// MaxForecast returns the forecast with the highest value. Strict
// greater-than comparison keeps the first-seen forecast on ties. The second
// return is false for an empty input.
func MaxForecast(forecasts []Forecast) (Forecast, bool) {
	var (
		max   Forecast
		found bool
	)
	for _, f := range forecasts {
		if !found || f.Value > max.Value {
			max = f
			found = true
		}
	}
	return max, found
}

// MaxAlertLevel returns the highest-priority level in the list, keeping the
// first-seen level on priority ties. An empty list is ErrNoAlertData: it
// means a whole region produced nothing classifiable.
func MaxAlertLevel(levels []AlertLevel) (AlertLevel, error) {
	if len(levels) == 0 {
		return AlertLevel{}, ErrNoAlertData
	}
	max := levels[0]
	for _, level := range levels[1:] {
		if level.Priority > max.Priority {
			max = level
		}
	}
	return max, nil
}
