package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
	"github.com/heatwatch/wbgt-alert-service/internal/observability"
)

// importBuckets is how many three-hour buckets a single import persists,
// covering one forecast day.
const importBuckets = 8

// ForecastSource fetches the published prediction table. Buckets come back
// in ascending time-key order with raw readings (index values scaled by 10).
type ForecastSource interface {
	Fetch(ctx context.Context) ([]domain.ForecastBucket, error)
}

// Importer pulls the prediction table and persists one forecast item per
// known point and time bucket.
type Importer struct {
	source    ForecastSource
	points    domain.PointRepository
	forecasts domain.ForecastRepository
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

func NewImporter(
	source ForecastSource,
	points domain.PointRepository,
	forecasts domain.ForecastRepository,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Importer {
	return &Importer{
		source:    source,
		points:    points,
		forecasts: forecasts,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run fetches the prediction table and stores the first day of readings.
// Readings for unknown points are ignored; a point absent from a bucket
// simply yields no item for that bucket.
func (i *Importer) Run(ctx context.Context) error {
	start := time.Now()

	buckets, err := i.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch prediction table: %w", err)
	}
	if len(buckets) > importBuckets {
		buckets = buckets[:importBuckets]
	}

	points, err := i.points.Points(ctx)
	if err != nil {
		return fmt.Errorf("list points: %w", err)
	}

	now := i.clock.Now().Unix()
	forecasts := make([]domain.Forecast, 0, len(buckets)*len(points))
	for _, bucket := range buckets {
		for _, point := range points {
			raw, ok := bucket.Values[point.ID]
			if !ok {
				continue
			}
			forecasts = append(forecasts, domain.Forecast{
				Key:       domain.ForecastKey(point.ID, bucket.TimeKey),
				PointID:   point.ID,
				TimeKey:   bucket.TimeKey,
				Value:     raw / 10,
				UpdatedAt: now,
			})
		}
	}

	if err := i.forecasts.PutForecasts(ctx, forecasts); err != nil {
		return fmt.Errorf("store forecasts: %w", err)
	}

	i.metrics.ForecastsImported.Add(float64(len(forecasts)))
	i.metrics.ImportDuration.Observe(time.Since(start).Seconds())
	i.logger.Info("forecast import finished",
		"buckets", len(buckets),
		"forecasts", len(forecasts),
		"duration", time.Since(start),
	)
	return nil
}
