package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// metricsTTL is the 30-day expiry applied to connector metrics keys.
const metricsTTL = 30 * 24 * time.Hour

// Metrics is the per-connector poll counters.
type Metrics struct {
	LastPollTime     time.Time
	LastSuccessTime  time.Time
	TotalPolls       int64
	SuccessfulPolls  int64
	FailedPolls      int64
	ItemsFetched     int64
	ItemsPublished   int64
	AverageLatencyMs float64
}

// MetricsCollector records poll outcomes and answers health queries.
type MetricsCollector interface {
	Record(ctx context.Context, name string, summary PollSummary, pollLatencyMs int64) error
	Get(ctx context.Context, name string) (Metrics, error)
	IsHealthy(ctx context.Context, name string, maxAgeSeconds int64) (bool, error)
}

func metricsKey(name string) string { return "metrics:connector:" + name }

// RedisMetricsCollector implements MetricsCollector against a Redis hash,
// using the incremental-mean formula for AverageLatencyMs so the full
// latency history never needs to be retained.
type RedisMetricsCollector struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisMetricsCollector builds a RedisMetricsCollector.
func NewRedisMetricsCollector(client redis.UniversalClient) *RedisMetricsCollector {
	return &RedisMetricsCollector{client: client, now: time.Now}
}

// Record treats a poll as successful when failed == 0 or published > 0,
// updating the incremental mean latency and refreshing the 30-day TTL.
func (c *RedisMetricsCollector) Record(ctx context.Context, name string, summary PollSummary, pollLatencyMs int64) error {
	key := metricsKey(name)
	now := c.now()

	current, err := c.Get(ctx, name)
	if err != nil {
		return err
	}

	success := summary.Failed == 0 || summary.Published > 0

	totalPolls := current.TotalPolls + 1
	avg := current.AverageLatencyMs + (float64(pollLatencyMs)-current.AverageLatencyMs)/float64(totalPolls)

	lastSuccessTime := formatOrEmpty(current.LastSuccessTime)
	successfulPolls := current.SuccessfulPolls
	failedPolls := current.FailedPolls
	if success {
		lastSuccessTime = now.UTC().Format(time.RFC3339)
		successfulPolls++
	} else {
		failedPolls++
	}

	fields := map[string]any{
		"lastPollTime":     now.UTC().Format(time.RFC3339),
		"lastSuccessTime":  lastSuccessTime,
		"totalPolls":       totalPolls,
		"successfulPolls":  successfulPolls,
		"failedPolls":      failedPolls,
		"itemsFetched":     current.ItemsFetched + int64(summary.Fetched),
		"itemsPublished":   current.ItemsPublished + int64(summary.Published),
		"averageLatencyMs": avg,
	}

	if err := c.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("connector: record metrics %s: %w", name, err)
	}
	if err := c.client.Expire(ctx, key, metricsTTL).Err(); err != nil {
		return fmt.Errorf("connector: expire metrics %s: %w", name, err)
	}
	return nil
}

func formatOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (c *RedisMetricsCollector) Get(ctx context.Context, name string) (Metrics, error) {
	vals, err := c.client.HGetAll(ctx, metricsKey(name)).Result()
	if err != nil {
		return Metrics{}, fmt.Errorf("connector: get metrics %s: %w", name, err)
	}
	var m Metrics
	m.LastPollTime = parseTimeOrZero(vals["lastPollTime"])
	m.LastSuccessTime = parseTimeOrZero(vals["lastSuccessTime"])
	m.TotalPolls = parseInt(vals["totalPolls"])
	m.SuccessfulPolls = parseInt(vals["successfulPolls"])
	m.FailedPolls = parseInt(vals["failedPolls"])
	m.ItemsFetched = parseInt(vals["itemsFetched"])
	m.ItemsPublished = parseInt(vals["itemsPublished"])
	m.AverageLatencyMs = parseFloat(vals["averageLatencyMs"])
	return m, nil
}

func (c *RedisMetricsCollector) IsHealthy(ctx context.Context, name string, maxAgeSeconds int64) (bool, error) {
	m, err := c.Get(ctx, name)
	if err != nil {
		return false, err
	}
	if m.LastPollTime.IsZero() || m.LastSuccessTime.IsZero() {
		return false, nil
	}
	maxAge := time.Duration(maxAgeSeconds) * time.Second
	now := c.now()
	return now.Sub(m.LastPollTime) <= maxAge && now.Sub(m.LastSuccessTime) <= maxAge, nil
}

var _ MetricsCollector = (*RedisMetricsCollector)(nil)
