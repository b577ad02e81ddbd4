package domain

import (
	"context"
	"time"
)

// RawMessage is an unprocessed message extracted from a queue topic.
// Commit acknowledges the message; leaving it uncommitted causes
// redelivery, which every stage must tolerate (at-least-once).
type RawMessage struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}
