package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishAttempt struct {
	eventType string
	attempt   int
	success   bool
}

type recordingCollector struct {
	batches  [][2]int
	attempts []publishAttempt
	lags     []int
}

func (c *recordingCollector) RecordBatch(total, delivered int) {
	c.batches = append(c.batches, [2]int{total, delivered})
}

func (c *recordingCollector) RecordPublishAttempt(eventType string, attempt int, success bool) {
	c.attempts = append(c.attempts, publishAttempt{eventType, attempt, success})
}

func (c *recordingCollector) RecordOutboxLag(pending int) {
	c.lags = append(c.lags, pending)
}

func TestWorkerReportsBatchMetrics(t *testing.T) {
	now := time.Now().UTC()
	healthy := pendingRecord("h1", "OrderCreated:a", now)
	failing := pendingRecord("h2", "OrderCreated:b", now.Add(time.Millisecond))
	store := newFakeStore(healthy, failing)

	pub := newFakePublisher()
	pub.failures[failing.ID] = -1

	collector := &recordingCollector{}
	w := NewWorker(store, pub, testConfig(), clockwork.NewRealClock()).WithMetrics(collector)
	w.processBatch(context.Background())

	require.Len(t, collector.batches, 1)
	assert.Equal(t, [2]int{2, 1}, collector.batches[0])

	// One successful attempt for the healthy record, MaxAttempts failures
	// for the stuck one.
	var successes, failures int
	for _, a := range collector.attempts {
		if a.success {
			successes++
		} else {
			failures++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, w.config.MaxAttempts, failures)

	// The failing record is still pending after the pass.
	require.Len(t, collector.lags, 1)
	assert.Equal(t, 1, collector.lags[0])
}

func TestMetricPublisherObservesOutcome(t *testing.T) {
	now := time.Now().UTC()
	good := pendingRecord("h1", "OrderCreated:a", now)
	bad := pendingRecord("h2", "OrderPaid:b", now)

	inner := newFakePublisher()
	inner.failures[bad.ID] = -1

	type observation struct {
		eventType string
		success   bool
	}
	var observed []observation
	p := NewMetricPublisher(inner, func(eventType string, duration time.Duration, success bool) {
		observed = append(observed, observation{eventType, success})
	})

	require.NoError(t, p.Publish(context.Background(), good))
	require.Error(t, p.Publish(context.Background(), bad))

	require.Len(t, observed, 2)
	assert.Equal(t, observation{"OrderCreated", true}, observed[0])
	assert.Equal(t, observation{"OrderCreated", false}, observed[1])
}
