// Package refdata embeds the immutable reference tables: observation
// points, regions, and the alert-level range table. The original data files
// ship with the binary, the same way the Lambda deployment bundled them.
package refdata

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
)

//go:embed data/*.json
var dataFS embed.FS

// Points returns all observation points.
func Points() ([]domain.Point, error) {
	var points []domain.Point
	if err := load("data/points.json", &points); err != nil {
		return nil, err
	}
	return points, nil
}

// Regions returns all regions in file order.
func Regions() ([]domain.Region, error) {
	var regions []domain.Region
	if err := load("data/regions.json", &regions); err != nil {
		return nil, err
	}
	return regions, nil
}

// AlertLevels returns the alert range table in file order. Classification
// tie-breaks depend on this order being stable.
func AlertLevels() ([]domain.AlertLevel, error) {
	var levels []domain.AlertLevel
	if err := load("data/alert_levels.json", &levels); err != nil {
		return nil, err
	}
	return levels, nil
}

func load(name string, v any) error {
	data, err := dataFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read reference data %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse reference data %s: %w", name, err)
	}
	return nil
}
