package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
)

// Aggregator resolves the worst-case alert level for a region on a given
// day from the stored forecasts.
type Aggregator struct {
	forecasts domain.ForecastRepository
	points    domain.PointRepository
	regions   domain.RegionRepository
	levels    domain.AlertLevelRepository
}

func NewAggregator(
	forecasts domain.ForecastRepository,
	points domain.PointRepository,
	regions domain.RegionRepository,
	levels domain.AlertLevelRepository,
) *Aggregator {
	return &Aggregator{
		forecasts: forecasts,
		points:    points,
		regions:   regions,
		levels:    levels,
	}
}

// DailyForecasts returns the stored readings for a point across the eight
// buckets of the given day. Missing buckets are skipped, so the result may
// be shorter than eight or empty.
func (a *Aggregator) DailyForecasts(ctx context.Context, pointID string, day time.Time) ([]domain.Forecast, error) {
	keys := domain.DailyTimeKeys(domain.DateKey(day))
	out := make([]domain.Forecast, 0, len(keys))
	for _, timeKey := range keys {
		f, err := a.forecasts.Forecast(ctx, domain.ForecastKey(pointID, timeKey))
		if err != nil {
			return nil, err
		}
		if f != nil {
			out = append(out, *f)
		}
	}
	return out, nil
}

// RegionMax computes the region's worst-case alert level for the day along
// with the daily maximum of every point that has data, so subscribers see
// all their observation points, not just the one that tripped the alert.
// Points with no stored forecasts are skipped; if every point in the region
// is missing data the result is ErrNoForecastData, and a region with no
// classifiable readings yields ErrNoAlertData.
func (a *Aggregator) RegionMax(ctx context.Context, regionKey string, day time.Time) (domain.AlertLevel, []domain.PointMax, error) {
	region, err := a.regions.Region(ctx, regionKey)
	if err != nil {
		return domain.AlertLevel{}, nil, err
	}
	if region == nil {
		return domain.AlertLevel{}, nil, fmt.Errorf("unknown region %q", regionKey)
	}

	levels, err := a.levels.AlertLevels(ctx)
	if err != nil {
		return domain.AlertLevel{}, nil, err
	}

	var (
		pointLevels []domain.AlertLevel
		maxes       []domain.PointMax
		sawData     bool
	)
	for _, pointID := range region.Points {
		point, err := a.points.Point(ctx, pointID)
		if err != nil {
			return domain.AlertLevel{}, nil, err
		}
		if point == nil {
			return domain.AlertLevel{}, nil, fmt.Errorf("region %q references unknown point %q", regionKey, pointID)
		}

		daily, err := a.DailyForecasts(ctx, pointID, day)
		if err != nil {
			return domain.AlertLevel{}, nil, err
		}
		peak, ok := domain.MaxForecast(daily)
		if !ok {
			continue
		}
		sawData = true
		maxes = append(maxes, domain.PointMax{Point: *point, Forecast: peak})

		if level, ok := domain.Classify(peak.Value, levels); ok {
			pointLevels = append(pointLevels, level)
		}
	}

	if !sawData {
		return domain.AlertLevel{}, nil, fmt.Errorf("region %q day %s: %w", regionKey, domain.DateKey(day), domain.ErrNoForecastData)
	}

	top, err := domain.MaxAlertLevel(pointLevels)
	if err != nil {
		return domain.AlertLevel{}, nil, fmt.Errorf("region %q day %s: %w", regionKey, domain.DateKey(day), err)
	}
	return top, maxes, nil
}
