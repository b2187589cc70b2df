package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownEventType is returned when a wire message carries a type tag
// no decoder is registered for.
var ErrUnknownEventType = fmt.Errorf("unknown event type")

// Envelope is the wire format published to the broker. Payload holds the
// serialized event body; its bytes are what PayloadHash is computed over.
type Envelope struct {
	EventID    uuid.UUID       `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// decoders is the static registry from event-type tag to decode function.
// Built once at package init; no runtime type introspection anywhere.
var decoders = map[string]func([]byte) (DomainEvent, error){
	TypeOrderCreated:   decodeAs[OrderCreated],
	TypeOrderPaid:      decodeAs[OrderPaid],
	TypeOrderCancelled: decodeAs[OrderCancelled],
}

func decodeAs[T DomainEvent](data []byte) (DomainEvent, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Encode serializes an event body for the outbox payload column.
func Encode(ev DomainEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.EventType(), err)
	}
	return data, nil
}

// Decode reconstructs a concrete event from its type tag and payload.
func Decode(eventType string, payload []byte) (DomainEvent, error) {
	decode, ok := decoders[eventType]
	if ok {
		ev, err := decode(payload)
		if err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
		}
		return ev, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
}

// Hash returns the content digest of a serialized payload. It is the
// cross-process deduplication token carried in the Payload-Hash header.
func Hash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// DedupKey is the logical same-process duplicate signal. The content hash
// is authoritative for suppression; this is stored alongside it for
// observability only.
func DedupKey(ev DomainEvent) string {
	return fmt.Sprintf("%s:%s", ev.EventType(), ev.AggregateID())
}
