package lineworks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/heatwatch/wbgt-alert-service/internal/observability"
)

// APIError is a non-2xx response from the messaging API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("messaging API error: status %d: %s", e.Status, e.Body)
}

// RetryExhaustedError means the API kept throttling until the attempt
// budget ran out.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// BotClient implements pipeline.MessageSender against the bot messaging
// API. Throttled requests are retried with exponential backoff; other
// failures are returned as-is.
type BotClient struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	clock       clockwork.Clock
	maxAttempts int
	logger      *slog.Logger
	metrics     *observability.Metrics
}

func NewBotClient(
	baseURL string,
	timeout time.Duration,
	sendRate float64,
	maxAttempts int,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *BotClient {
	return &BotClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:     rate.NewLimiter(rate.Limit(sendRate), 1),
		clock:       clock,
		maxAttempts: maxAttempts,
		logger:      logger,
		metrics:     metrics,
	}
}

// SendMessageToUser posts one message to a user's bot talk. On 429 the
// call sleeps 2^attempt seconds and retries up to the attempt budget.
func (c *BotClient) SendMessageToUser(ctx context.Context, token, botID, userID string, content json.RawMessage) error {
	endpoint := fmt.Sprintf("%s/bots/%s/users/%s/messages",
		c.baseURL, url.PathEscape(botID), url.PathEscape(userID))

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.post(ctx, endpoint, token, content)
		if err == nil {
			return nil
		}

		apiErr, ok := err.(*APIError)
		if !ok || apiErr.Status != http.StatusTooManyRequests {
			return err
		}
		lastErr = err

		c.metrics.SendRetries.Inc()
		c.logger.Warn("messaging API throttled, backing off",
			"user_id", userID, "attempt", attempt)

		if attempt < c.maxAttempts {
			if !c.sleep(ctx, time.Duration(math.Pow(2, float64(attempt)))*time.Second) {
				return ctx.Err()
			}
		}
	}
	return &RetryExhaustedError{Attempts: c.maxAttempts, Last: lastErr}
}

func (c *BotClient) post(ctx context.Context, endpoint, token string, content json.RawMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func (c *BotClient) sleep(ctx context.Context, d time.Duration) bool {
	timer := c.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
