package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
	"github.com/heatwatch/wbgt-alert-service/internal/observability"
)

// Decider consumes region batches, resolves the region's worst-case alert
// level for the forecast day, and publishes one notification per eligible
// subscriber.
type Decider struct {
	aggregator *Aggregator
	regions    domain.RegionRepository
	levels     domain.AlertLevelRepository
	queue      Publisher
	clock      clockwork.Clock
	location   *time.Location
	cutoffHour int
	logger     *slog.Logger
	metrics    *observability.Metrics
}

func NewDecider(
	aggregator *Aggregator,
	regions domain.RegionRepository,
	levels domain.AlertLevelRepository,
	queue Publisher,
	clock clockwork.Clock,
	location *time.Location,
	cutoffHour int,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Decider {
	return &Decider{
		aggregator: aggregator,
		regions:    regions,
		levels:     levels,
		queue:      queue,
		clock:      clock,
		location:   location,
		cutoffHour: cutoffHour,
		logger:     logger,
		metrics:    metrics,
	}
}

// HandleMessage processes one region batch. A region with no classifiable
// forecast data fails so the batch is redelivered once the importer catches
// up; a subscriber whose threshold key no longer exists is skipped.
func (d *Decider) HandleMessage(ctx context.Context, raw domain.RawMessage) error {
	var batch domain.RegionBatch
	if err := json.Unmarshal(raw.Value, &batch); err != nil {
		return fmt.Errorf("decode region batch: %v: %w", err, domain.ErrMalformedMessage)
	}
	if batch.RegionKey == "" {
		return fmt.Errorf("region batch without region key: %w", domain.ErrMalformedMessage)
	}

	day := domain.ForecastDay(d.clock.Now().In(d.location), d.cutoffHour)

	top, points, err := d.aggregator.RegionMax(ctx, batch.RegionKey, day)
	if err != nil {
		return err
	}

	region, err := d.regions.Region(ctx, batch.RegionKey)
	if err != nil {
		return err
	}
	if region == nil {
		return fmt.Errorf("unknown region %q", batch.RegionKey)
	}

	levels, err := d.levels.AlertLevels(ctx)
	if err != nil {
		return err
	}
	byKey := make(map[string]domain.AlertLevel, len(levels))
	for _, l := range levels {
		byKey[l.Key] = l
	}

	eligible := 0
	for _, sub := range batch.Subscribers {
		threshold, ok := byKey[sub.AlertLevelKey]
		if !ok {
			d.logger.Warn("subscriber has unknown alert level threshold, skipping",
				"user_id", sub.UserID, "alert_level_key", sub.AlertLevelKey)
			continue
		}
		if top.Priority < threshold.Priority {
			continue
		}

		payload := domain.NotificationPayload{
			Day:        day.Format("2006-01-02"),
			Points:     points,
			AlertLevel: top,
			Region:     *region,
			Subscriber: sub,
		}
		value, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal notification for %s: %w", sub.UserID, err)
		}
		if err := d.queue.Publish(ctx, sub.UserID, value); err != nil {
			return fmt.Errorf("publish notification for %s: %w", sub.UserID, err)
		}
		eligible++
		d.metrics.NotificationsPublished.Inc()
	}

	d.metrics.EligibleSubscribers.Observe(float64(eligible))
	d.logger.Info("region batch decided",
		"region", batch.RegionKey,
		"day", day.Format("2006-01-02"),
		"alert_level", top.Key,
		"subscribers", len(batch.Subscribers),
		"eligible", eligible,
	)
	return nil
}
