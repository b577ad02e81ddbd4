package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
	"github.com/heatwatch/wbgt-alert-service/internal/observability"
)

// Publisher writes one keyed message to a queue topic.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Partitioner groups subscribers by region and publishes one region batch
// message per chunk for the decider workers to pick up.
type Partitioner struct {
	subscribers domain.SubscriberRepository
	queue       Publisher
	maxBatch    int
	logger      *slog.Logger
	metrics     *observability.Metrics
}

func NewPartitioner(
	subscribers domain.SubscriberRepository,
	queue Publisher,
	maxBatch int,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Partitioner {
	return &Partitioner{
		subscribers: subscribers,
		queue:       queue,
		maxBatch:    maxBatch,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run scans all subscriber settings and emits region batches. An empty
// subscriber table publishes nothing and is not an error.
func (p *Partitioner) Run(ctx context.Context) error {
	settings, err := p.subscribers.AllSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	published := 0
	for _, batch := range PartitionByRegion(settings, p.maxBatch) {
		payload, err := json.Marshal(batch)
		if err != nil {
			return fmt.Errorf("marshal region batch %s: %w", batch.RegionKey, err)
		}
		if err := p.queue.Publish(ctx, batch.RegionKey, payload); err != nil {
			return fmt.Errorf("publish region batch %s: %w", batch.RegionKey, err)
		}
		published++
		p.metrics.RegionBatchesPublished.Inc()
	}

	p.logger.Info("fan-out finished", "subscribers", len(settings), "batches", published)
	return nil
}

// PartitionByRegion groups settings by region key, preserving the first-seen
// order of regions and of subscribers within each region, then splits each
// group into chunks of at most maxBatch subscribers. A maxBatch of zero or
// less disables chunking and emits one batch per region.
func PartitionByRegion(settings []domain.SubscriberSetting, maxBatch int) []domain.RegionBatch {
	if maxBatch <= 0 {
		maxBatch = len(settings) + 1
	}
	order := make([]string, 0)
	grouped := make(map[string][]domain.SubscriberSetting)
	for _, s := range settings {
		if _, seen := grouped[s.RegionKey]; !seen {
			order = append(order, s.RegionKey)
		}
		grouped[s.RegionKey] = append(grouped[s.RegionKey], s)
	}

	var batches []domain.RegionBatch
	for _, regionKey := range order {
		group := grouped[regionKey]
		for start := 0; start < len(group); start += maxBatch {
			end := start + maxBatch
			if end > len(group) {
				end = len(group)
			}
			batches = append(batches, domain.RegionBatch{
				RegionKey:   regionKey,
				Subscribers: group[start:end],
			})
		}
	}
	return batches
}
