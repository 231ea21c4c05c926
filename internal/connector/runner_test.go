package connector_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arc-self/riskstream/internal/connector"
)

type countingPoller struct {
	polls atomic.Int32
}

func (p *countingPoller) Poll(ctx context.Context) (connector.PollSummary, error) {
	p.polls.Add(1)
	return connector.PollSummary{Fetched: 1, Published: 1}, nil
}

type fakeLeaseManager struct {
	allow    bool
	acquires atomic.Int32
	releases atomic.Int32
}

func (m *fakeLeaseManager) TryAcquire(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error) {
	m.acquires.Add(1)
	return m.allow, nil
}

func (m *fakeLeaseManager) Release(ctx context.Context, name, instanceID string) error {
	m.releases.Add(1)
	return nil
}

type recordingMetrics struct {
	records atomic.Int32
}

func (c *recordingMetrics) Record(ctx context.Context, name string, summary connector.PollSummary, pollLatencyMs int64) error {
	c.records.Add(1)
	return nil
}

func (c *recordingMetrics) Get(ctx context.Context, name string) (connector.Metrics, error) {
	return connector.Metrics{}, nil
}

func (c *recordingMetrics) IsHealthy(ctx context.Context, name string, maxAgeSeconds int64) (bool, error) {
	return true, nil
}

func runBriefly(t *testing.T, r *connector.Runner) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, nil)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not exit after cancellation")
	}
}

func TestRunnerPollsAndReleasesLeaseWhenAcquired(t *testing.T) {
	poller := &countingPoller{}
	leases := &fakeLeaseManager{allow: true}
	metrics := &recordingMetrics{}
	spec := connector.Spec{Name: "c1", Enabled: true, PollIntervalMs: 10, LeaseTTLSeconds: 30}

	runBriefly(t, connector.NewRunner(spec, poller, leases, metrics, nil))

	assert.Positive(t, poller.polls.Load())
	assert.Positive(t, metrics.records.Load())
	assert.Equal(t, leases.acquires.Load(), leases.releases.Load(),
		"every acquired lease must be released")
}

func TestRunnerSkipsPollWhenLeaseUnavailable(t *testing.T) {
	poller := &countingPoller{}
	leases := &fakeLeaseManager{allow: false}
	spec := connector.Spec{Name: "c1", Enabled: true, PollIntervalMs: 10, LeaseTTLSeconds: 30}

	runBriefly(t, connector.NewRunner(spec, poller, leases, &recordingMetrics{}, nil))

	assert.Positive(t, leases.acquires.Load())
	assert.Zero(t, poller.polls.Load(), "poll must not run without the lease")
	assert.Zero(t, leases.releases.Load(), "a lease that was never acquired must not be released")
}

func TestRunnerStopExitsLoop(t *testing.T) {
	poller := &countingPoller{}
	leases := &fakeLeaseManager{allow: true}
	spec := connector.Spec{Name: "c1", Enabled: true, PollIntervalMs: 60_000, LeaseTTLSeconds: 30}
	r := connector.NewRunner(spec, poller, leases, &recordingMetrics{}, nil)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), nil)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	r.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not exit after Stop")
	}
	assert.EqualValues(t, 1, poller.polls.Load(), "the first tick runs before the sleep window")
}
