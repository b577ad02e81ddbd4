package domain

import "errors"

var (
	// ErrNoAlertData means a region produced zero classifiable alert levels:
	// either the alert-level table is empty or every point in the region had
	// no stored forecasts. This signals upstream data loss and must reach an
	// operator; it is never silently defaulted.
	ErrNoAlertData = errors.New("no alert level data for region")

	// ErrNoForecastData means a lookup found no stored forecasts where some
	// were expected.
	ErrNoForecastData = errors.New("no forecast data stored")

	// ErrMalformedMessage marks a queue message that cannot be decoded.
	// Workers treat it as poison: commit and drop rather than redeliver.
	ErrMalformedMessage = errors.New("malformed queue message")

	// ErrNotConfigured marks missing tenant setup (client credential or
	// installed-app record). Terminal, never retried.
	ErrNotConfigured = errors.New("tenant is not configured")
)
