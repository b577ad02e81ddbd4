package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
	"github.com/heatwatch/wbgt-alert-service/internal/observability"
)

// BatchExtractor reads up to batchSize raw messages from a queue topic.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error)
}

// Handler processes one raw queue message.
type Handler interface {
	HandleMessage(ctx context.Context, raw domain.RawMessage) error
}

// Worker drives one consume loop: extract a batch, hand each message to the
// handler, and commit. Malformed messages and messages that can never
// succeed are committed and dropped; transient failures leave the offset
// uncommitted so the message is redelivered.
type Worker struct {
	name      string
	extractor BatchExtractor
	handler   Handler
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

func NewWorker(name string, e BatchExtractor, h Handler, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Worker {
	return &Worker{
		name:      name,
		extractor: e,
		handler:   h,
		logger:    logger.With("worker", name),
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil once the worker has processed at least one
// message.
func (w *Worker) CheckReadiness(_ context.Context) error {
	if !w.ready.Load() {
		return fmt.Errorf("worker %s has not processed any messages yet", w.name)
	}
	return nil
}

// Run executes the consume loop until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "batch_size", w.batchSize)
	w.metrics.WorkerRunning.WithLabelValues(w.name).Set(1)
	defer w.metrics.WorkerRunning.WithLabelValues(w.name).Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !w.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-handle-commit cycle. Returns false if the
// worker should stop.
func (w *Worker) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	batch, err := w.extractor.ExtractBatch(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.logger.Error("extract batch failed", "error", err)
		return w.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(batch) == 0 {
		return ctx.Err() == nil
	}

	w.metrics.MessagesConsumed.WithLabelValues(w.name).Add(float64(len(batch)))
	*backoff = 200 * time.Millisecond

	for _, raw := range batch {
		if err := w.handler.HandleMessage(ctx, raw); err != nil {
			if ctx.Err() != nil {
				return false
			}
			if errors.Is(err, domain.ErrMalformedMessage) || errors.Is(err, domain.ErrNotConfigured) {
				w.logger.Warn("dropping message",
					"error", err,
					"topic", raw.Topic,
					"partition", raw.Partition,
					"offset", raw.Offset,
				)
				w.metrics.PoisonMessages.WithLabelValues(w.name).Inc()
				w.commit(ctx, raw)
				continue
			}
			w.logger.Error("handle message failed, will retry",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			return w.backoffOrStop(ctx, backoff, maxBackoff)
		}
		w.commit(ctx, raw)
		w.ready.Store(true)
	}
	return true
}

// backoffOrStop sleeps with the current backoff and advances it. Returns
// false if the worker should stop.
func (w *Worker) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

func (w *Worker) commit(ctx context.Context, raw domain.RawMessage) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		w.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
