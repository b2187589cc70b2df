package dlq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleDeliveryCapturesAndAcks(t *testing.T) {
	b := NewBatcher(&fakeAlerter{}, 10*time.Minute, clockwork.NewRealClock())

	d := &fakeDelivery{
		body:      []byte(`{"order_id":"x"}`),
		messageID: "msg-1",
		eventType: "OrderCancelled",
	}
	b.HandleDelivery(context.Background(), d)

	assert.True(t, d.acked)

	select {
	case entry := <-b.captures:
		assert.Equal(t, "msg-1", entry.MessageID)
		assert.Equal(t, "OrderCancelled", entry.EventType)
		assert.Equal(t, []byte(`{"order_id":"x"}`), entry.Payload)
	default:
		t.Fatal("entry was not captured")
	}
}

func TestFlushSendsOneAggregatedAlert(t *testing.T) {
	alerter := &fakeAlerter{}
	b := NewBatcher(alerter, 10*time.Minute, clockwork.NewRealClock())

	buf := []Entry{
		{MessageID: "msg-1", EventType: "OrderPaid", Payload: []byte(`{"a":1}`)},
		{MessageID: "msg-2", EventType: "OrderCancelled", Payload: []byte(`{"b":2}`)},
	}
	rest := b.flush(context.Background(), buf)

	assert.Nil(t, rest)
	require.Len(t, alerter.subjects, 1)
	assert.Contains(t, alerter.subjects[0], "2 messages")
	assert.Contains(t, alerter.bodies[0], "msg-1")
	assert.Contains(t, alerter.bodies[0], "msg-2")
}

func TestFlushEmptyBufferSendsNothing(t *testing.T) {
	alerter := &fakeAlerter{}
	b := NewBatcher(alerter, 10*time.Minute, clockwork.NewRealClock())

	rest := b.flush(context.Background(), nil)

	assert.Nil(t, rest)
	assert.Empty(t, alerter.subjects)
}

func TestFlushClearsBufferEvenWhenAlertFails(t *testing.T) {
	alerter := &fakeAlerter{err: errors.New("webhook down")}
	b := NewBatcher(alerter, 10*time.Minute, clockwork.NewRealClock())

	rest := b.flush(context.Background(), []Entry{{MessageID: "msg-1"}})

	assert.Nil(t, rest)
}

func TestRunFlushesOnTick(t *testing.T) {
	now := time.Date(2026, 8, 14, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	alerter := &fakeAlerter{}
	b := NewBatcher(alerter, 10*time.Minute, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Run(ctx)
	}()

	d := &fakeDelivery{messageID: "msg-1", eventType: "OrderPaid"}
	b.HandleDelivery(ctx, d)

	// Wait for Run to pick the entry off the channel, then fire the tick.
	require.Eventually(t, func() bool { return len(b.captures) == 0 }, time.Second, time.Millisecond)
	clock.Advance(10 * time.Minute)

	require.Eventually(t, func() bool {
		subjects, _ := alerter.sent()
		return len(subjects) == 1
	}, time.Second, time.Millisecond)

	_, bodies := alerter.sent()
	assert.Contains(t, bodies[0], "msg-1")

	cancel()
	<-done
}
