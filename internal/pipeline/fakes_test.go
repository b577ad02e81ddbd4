package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeQueue records published messages in order.
type fakeQueue struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

type publishedMessage struct {
	Key   string
	Value []byte
}

func (q *fakeQueue) Publish(_ context.Context, key string, value []byte) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, publishedMessage{Key: key, Value: append([]byte(nil), value...)})
	return nil
}

// fakeSource returns a canned prediction table.
type fakeSource struct {
	buckets []domain.ForecastBucket
	err     error
}

func (s *fakeSource) Fetch(context.Context) ([]domain.ForecastBucket, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.buckets, nil
}

// fakeExchanger hands out sequentially numbered tokens.
type fakeExchanger struct {
	mu        sync.Mutex
	calls     int
	expiresIn int64
	err       error
}

func (e *fakeExchanger) Exchange(_ context.Context, _ domain.ClientCredential, _ string) (string, int64, error) {
	if e.err != nil {
		return "", 0, e.err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	expiresIn := e.expiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}
	return fmt.Sprintf("token-%d", e.calls), expiresIn, nil
}

// fakeSender records sent messages.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

type sentMessage struct {
	Token   string
	BotID   string
	UserID  string
	Content json.RawMessage
}

func (s *fakeSender) SendMessageToUser(_ context.Context, token, botID, userID string, content json.RawMessage) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{Token: token, BotID: botID, UserID: userID, Content: content})
	return nil
}

// fakeExtractor serves queued batches, then blocks until cancelled.
type fakeExtractor struct {
	mu      sync.Mutex
	batches [][]domain.RawMessage
}

func (e *fakeExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawMessage, error) {
	e.mu.Lock()
	if len(e.batches) > 0 {
		batch := e.batches[0]
		e.batches = e.batches[1:]
		e.mu.Unlock()
		return batch, nil
	}
	e.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

// handlerFunc adapts a function to the Handler interface.
type handlerFunc func(ctx context.Context, raw domain.RawMessage) error

func (f handlerFunc) HandleMessage(ctx context.Context, raw domain.RawMessage) error {
	return f(ctx, raw)
}

var errTransient = errors.New("downstream unavailable")
