package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// flushInterval bounds how long ExtractBatch waits for additional messages
// once it has at least one.
const flushInterval = 500 * time.Millisecond

// Reader consumes messages from a Kafka topic as part of a consumer group.
// Offsets are committed per message via the RawMessage.Commit callback, so
// an unhandled message is redelivered.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the given topic. The group
// ID is suffixed with the topic so the two pipeline workers track offsets
// independently.
func NewReader(brokers []string, groupID, topic string, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     fmt.Sprintf("%s-%s", groupID, topic),
		Topic:       topic,
		StartOffset: kafkago.FirstOffset,
	})
	return &Reader{reader: r, logger: logger}
}

// ExtractBatch reads up to batchSize messages. It blocks until at least one
// message arrives or the context is cancelled, then drains whatever is
// immediately available within the flush interval.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error) {
	msgs := make([]domain.RawMessage, 0, batchSize)

	first, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, r.mapMessage(first))

	for len(msgs) < batchSize {
		fetchCtx, cancel := context.WithTimeout(ctx, flushInterval)
		m, err := r.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			if ctx.Err() != nil {
				// Return what we have; the caller sees cancellation on the
				// next cycle.
				break
			}
			return msgs, err
		}
		msgs = append(msgs, r.mapMessage(m))
	}

	return msgs, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

func (r *Reader) mapMessage(m kafkago.Message) domain.RawMessage {
	return domain.RawMessage{
		Key:       m.Key,
		Value:     m.Value,
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Timestamp: m.Time,
		Commit: func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, m)
		},
	}
}
