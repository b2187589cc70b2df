package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/calebmch/orderhub/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordBuildsPendingRow(t *testing.T) {
	orderID := uuid.New()
	occurred := time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC)
	ev := events.OrderCreated{
		OrderID:      orderID,
		CustomerName: "Ada Lovelace",
		TotalCents:   12999,
		CreatedAt:    occurred,
	}

	rec, err := NewRecord(ev)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, events.TypeOrderCreated, rec.EventType)
	assert.Equal(t, occurred, rec.OccurredAt)
	assert.False(t, rec.Published)
	assert.Nil(t, rec.PublishedAt)

	assert.Equal(t, events.Hash(rec.Payload), rec.PayloadHash)
	assert.Equal(t, "OrderCreated:"+orderID.String(), rec.DedupKey)

	var decoded events.OrderCreated
	require.NoError(t, json.Unmarshal(rec.Payload, &decoded))
	assert.Equal(t, ev, decoded)
}

func TestNewRecordHashTracksContent(t *testing.T) {
	orderID := uuid.New()
	occurred := time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC)

	first, err := NewRecord(events.OrderPaid{OrderID: orderID, PaidAt: occurred})
	require.NoError(t, err)
	again, err := NewRecord(events.OrderPaid{OrderID: orderID, PaidAt: occurred})
	require.NoError(t, err)
	other, err := NewRecord(events.OrderPaid{OrderID: orderID, PaidAt: occurred.Add(time.Second)})
	require.NoError(t, err)

	// Same content yields the same hash even across distinct record IDs;
	// the logical dedup key stays the same either way.
	assert.Equal(t, first.PayloadHash, again.PayloadHash)
	assert.NotEqual(t, first.PayloadHash, other.PayloadHash)
	assert.Equal(t, first.DedupKey, other.DedupKey)
}
