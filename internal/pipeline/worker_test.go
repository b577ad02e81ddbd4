package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
	"github.com/heatwatch/wbgt-alert-service/internal/observability"
)

func rawMessage(value string, commit func(context.Context) error) domain.RawMessage {
	return domain.RawMessage{
		Key:    []byte("k"),
		Value:  []byte(value),
		Topic:  "test-topic",
		Commit: commit,
	}
}

func runWorker(t *testing.T, w *Worker) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not stop")
		}
	}
}

func TestWorkerProcessesAndCommits(t *testing.T) {
	var mu sync.Mutex
	handled := make([]string, 0)
	committed := 0

	commit := func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		committed++
		return nil
	}
	extractor := &fakeExtractor{batches: [][]domain.RawMessage{{
		rawMessage("m1", commit),
		rawMessage("m2", commit),
	}}}
	handler := handlerFunc(func(_ context.Context, raw domain.RawMessage) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, string(raw.Value))
		return nil
	})

	w := NewWorker("test", extractor, handler, discardLogger(), observability.NewMetricsForTesting(), 10)
	assert.Error(t, w.CheckReadiness(context.Background()))

	stop := runWorker(t, w)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return committed == 2
	}, 5*time.Second, 10*time.Millisecond)
	stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"m1", "m2"}, handled)
	assert.NoError(t, w.CheckReadiness(context.Background()))
}

func TestWorkerDropsTerminalMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "malformed payload", err: domain.ErrMalformedMessage},
		{name: "missing tenant config", err: domain.ErrNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			committed := make([]string, 0)
			commitFor := func(name string) func(context.Context) error {
				return func(context.Context) error {
					mu.Lock()
					defer mu.Unlock()
					committed = append(committed, name)
					return nil
				}
			}

			extractor := &fakeExtractor{batches: [][]domain.RawMessage{{
				rawMessage("bad", commitFor("bad")),
				rawMessage("good", commitFor("good")),
			}}}
			handler := handlerFunc(func(_ context.Context, raw domain.RawMessage) error {
				if string(raw.Value) == "bad" {
					return fmt.Errorf("handling: %w", tt.err)
				}
				return nil
			})

			w := NewWorker("test", extractor, handler, discardLogger(), observability.NewMetricsForTesting(), 10)
			stop := runWorker(t, w)
			require.Eventually(t, func() bool {
				mu.Lock()
				defer mu.Unlock()
				return len(committed) == 2
			}, 5*time.Second, 10*time.Millisecond)
			stop()

			// The poison message is committed so it is not redelivered.
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, []string{"bad", "good"}, committed)
		})
	}
}

func TestWorkerRetriesTransientFailures(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	committed := 0

	commit := func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		committed++
		return nil
	}
	msg := rawMessage("flaky", commit)
	extractor := &fakeExtractor{batches: [][]domain.RawMessage{{msg}, {msg}}}
	handler := handlerFunc(func(context.Context, domain.RawMessage) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return errTransient
		}
		return nil
	})

	w := NewWorker("test", extractor, handler, discardLogger(), observability.NewMetricsForTesting(), 10)
	stop := runWorker(t, w)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return committed == 1
	}, 5*time.Second, 10*time.Millisecond)
	stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, committed)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	extractor := &fakeExtractor{}
	handler := handlerFunc(func(context.Context, domain.RawMessage) error { return nil })

	w := NewWorker("test", extractor, handler, discardLogger(), observability.NewMetricsForTesting(), 10)
	stop := runWorker(t, w)
	stop()
}
