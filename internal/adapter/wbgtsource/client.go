// Package wbgtsource downloads the published WBGT prediction table. The
// table is CSV: a header row of point IDs, then one row per three-hour
// bucket with the time key in the first column and raw readings (index
// value scaled by 10) in the rest. Blank cells mean no reading for that
// point and bucket.
package wbgtsource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
)

// Client implements pipeline.ForecastSource against the prediction endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Fetch downloads and parses the prediction table. Buckets are returned in
// the order published, which is ascending by time key.
func (c *Client) Fetch(ctx context.Context) ([]domain.ForecastBucket, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch prediction table: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("prediction endpoint error: status %d: %s", resp.StatusCode, body)
	}

	buckets, err := Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("prediction table fetched", "url", c.url, "buckets", len(buckets))
	return buckets, nil
}

// Parse reads the prediction CSV. Rows are transposed into one bucket per
// time key; cells that are blank or not numeric are dropped.
func Parse(r io.Reader) ([]domain.ForecastBucket, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read prediction header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("prediction header has %d columns, want at least 2", len(header))
	}
	pointIDs := make([]string, len(header))
	for i, id := range header {
		pointIDs[i] = strings.TrimSpace(id)
	}

	var buckets []domain.ForecastBucket
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read prediction row: %w", err)
		}
		if len(row) == 0 {
			continue
		}

		timeKey := strings.TrimSpace(row[0])
		if timeKey == "" {
			continue
		}

		bucket := domain.ForecastBucket{
			TimeKey: timeKey,
			Values:  make(map[string]float64, len(row)-1),
		}
		for i := 1; i < len(row) && i < len(pointIDs); i++ {
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			value, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				continue
			}
			bucket.Values[pointIDs[i]] = value
		}
		buckets = append(buckets, bucket)
	}
	return buckets, nil
}
