package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/calebmch/orderhub/internal/events"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInboxStore struct {
	records   map[string]Record
	existsErr error
	insertErr error
	deleted   []time.Time
}

func newFakeInboxStore() *fakeInboxStore {
	return &fakeInboxStore{records: make(map[string]Record)}
}

func (s *fakeInboxStore) Exists(ctx context.Context, payloadHash string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.records[payloadHash]
	return ok, nil
}

func (s *fakeInboxStore) Insert(ctx context.Context, rec Record) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.records[rec.PayloadHash] = rec
	return nil
}

func (s *fakeInboxStore) DeleteReceivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.deleted = append(s.deleted, cutoff)
	var n int64
	for hash, rec := range s.records {
		if rec.ReceivedAt.Before(cutoff) {
			delete(s.records, hash)
			n++
		}
	}
	return n, nil
}

type fakeDispatcher struct {
	dispatched []events.DomainEvent
	err        error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, ev events.DomainEvent) error {
	if d.err != nil {
		return d.err
	}
	d.dispatched = append(d.dispatched, ev)
	return nil
}

type fakeDelivery struct {
	body      []byte
	messageID string
	eventType string
	hash      string
	final     bool

	acked    bool
	rejected bool
}

func (d *fakeDelivery) Body() []byte                     { return d.body }
func (d *fakeDelivery) MessageID() string                { return d.messageID }
func (d *fakeDelivery) EventType() string                { return d.eventType }
func (d *fakeDelivery) PayloadHash() string              { return d.hash }
func (d *fakeDelivery) FinalAttempt() bool               { return d.final }
func (d *fakeDelivery) Ack() error                       { d.acked = true; return nil }
func (d *fakeDelivery) Reject(ctx context.Context) error { d.rejected = true; return nil }

func deliveryFor(t *testing.T, ev events.DomainEvent) *fakeDelivery {
	t.Helper()

	payload, err := events.Encode(ev)
	require.NoError(t, err)

	body, err := json.Marshal(events.Envelope{
		EventID:    uuid.New(),
		EventType:  ev.EventType(),
		OccurredAt: ev.OccurredAt(),
		Payload:    payload,
	})
	require.NoError(t, err)

	return &fakeDelivery{
		body:      body,
		messageID: uuid.NewString(),
		eventType: ev.EventType(),
		hash:      events.Hash(payload),
	}
}

func paidEvent() events.DomainEvent {
	return events.OrderPaid{
		OrderID: uuid.New(),
		PaidAt:  time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC),
	}
}

func TestHandleDeliveryDispatchesAndAcks(t *testing.T) {
	store := newFakeInboxStore()
	dispatcher := &fakeDispatcher{}
	c := NewConsumer(store, dispatcher, clockwork.NewRealClock())

	ev := paidEvent()
	d := deliveryFor(t, ev)
	c.HandleDelivery(context.Background(), d)

	require.Len(t, dispatcher.dispatched, 1)
	assert.Equal(t, ev, dispatcher.dispatched[0])
	assert.True(t, d.acked)
	assert.False(t, d.rejected)

	exists, err := store.Exists(context.Background(), d.hash)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestHandleDeliverySuppressesDuplicate(t *testing.T) {
	store := newFakeInboxStore()
	dispatcher := &fakeDispatcher{}
	c := NewConsumer(store, dispatcher, clockwork.NewRealClock())

	ev := paidEvent()
	first := deliveryFor(t, ev)
	c.HandleDelivery(context.Background(), first)

	// Redelivery of the same content runs no handler but is still acked.
	second := deliveryFor(t, ev)
	c.HandleDelivery(context.Background(), second)

	assert.Len(t, dispatcher.dispatched, 1)
	assert.True(t, second.acked)
	assert.False(t, second.rejected)
}

func TestHandleDeliveryMissingHashIsDropped(t *testing.T) {
	store := newFakeInboxStore()
	dispatcher := &fakeDispatcher{}
	c := NewConsumer(store, dispatcher, clockwork.NewRealClock())

	d := deliveryFor(t, paidEvent())
	d.hash = "  "
	c.HandleDelivery(context.Background(), d)

	assert.Empty(t, dispatcher.dispatched)
	assert.Empty(t, store.records)
	assert.True(t, d.acked)
	assert.False(t, d.rejected)
}

func TestHandleDeliveryStoreErrorLeavesMessageUnacked(t *testing.T) {
	store := newFakeInboxStore()
	store.existsErr = errors.New("connection refused")
	dispatcher := &fakeDispatcher{}
	c := NewConsumer(store, dispatcher, clockwork.NewRealClock())

	d := deliveryFor(t, paidEvent())
	c.HandleDelivery(context.Background(), d)

	// Neither acked nor rejected: the broker redelivers.
	assert.False(t, d.acked)
	assert.False(t, d.rejected)
	assert.Empty(t, dispatcher.dispatched)
}

func TestHandleDeliveryInsertErrorLeavesMessageUnacked(t *testing.T) {
	store := newFakeInboxStore()
	store.insertErr = errors.New("connection refused")
	dispatcher := &fakeDispatcher{}
	c := NewConsumer(store, dispatcher, clockwork.NewRealClock())

	d := deliveryFor(t, paidEvent())
	c.HandleDelivery(context.Background(), d)

	assert.False(t, d.acked)
	assert.False(t, d.rejected)
	assert.Empty(t, dispatcher.dispatched)
}

func TestHandleDeliveryStoreErrorOnFinalAttemptGoesToDeadLetter(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *fakeInboxStore)
	}{
		{
			name:  "exists check fails",
			setup: func(s *fakeInboxStore) { s.existsErr = errors.New("connection refused") },
		},
		{
			name:  "insert fails",
			setup: func(s *fakeInboxStore) { s.insertErr = errors.New("connection refused") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeInboxStore()
			tt.setup(store)
			dispatcher := &fakeDispatcher{}
			c := NewConsumer(store, dispatcher, clockwork.NewRealClock())

			// Last delivery: leaving it unacked would let it expire out of
			// the stream unseen, so it must be rejected to the dead letter
			// queue instead.
			d := deliveryFor(t, paidEvent())
			d.final = true
			c.HandleDelivery(context.Background(), d)

			assert.True(t, d.rejected)
			assert.False(t, d.acked)
			assert.Empty(t, dispatcher.dispatched)
		})
	}
}

func TestHandleDeliveryDedupRecordCommittedBeforeDispatch(t *testing.T) {
	store := newFakeInboxStore()
	dispatcher := &fakeDispatcher{err: errors.New("handler blew up")}
	c := NewConsumer(store, dispatcher, clockwork.NewRealClock())

	d := deliveryFor(t, paidEvent())
	c.HandleDelivery(context.Background(), d)

	// Dispatch failed after the dedup record was written: the message is
	// rejected and a redelivery of the same content would be suppressed.
	assert.True(t, d.rejected)
	assert.False(t, d.acked)

	exists, err := store.Exists(context.Background(), d.hash)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestHandleDeliveryUndeserializableEnvelopeIsRejected(t *testing.T) {
	store := newFakeInboxStore()
	dispatcher := &fakeDispatcher{}
	c := NewConsumer(store, dispatcher, clockwork.NewRealClock())

	d := deliveryFor(t, paidEvent())
	d.body = []byte(`{not json`)
	c.HandleDelivery(context.Background(), d)

	assert.True(t, d.rejected)
	assert.False(t, d.acked)
	assert.Empty(t, dispatcher.dispatched)
}

func TestHandleDeliveryUnknownEventTypeIsRejected(t *testing.T) {
	store := newFakeInboxStore()
	dispatcher := &fakeDispatcher{}
	c := NewConsumer(store, dispatcher, clockwork.NewRealClock())

	d := deliveryFor(t, paidEvent())
	d.eventType = "OrderShipped"
	c.HandleDelivery(context.Background(), d)

	assert.True(t, d.rejected)
	assert.False(t, d.acked)
	assert.Empty(t, dispatcher.dispatched)
}
