package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Record is one durable row per domain event awaiting delivery. A row is
// either pending (Published false, PublishedAt nil) or delivered
// (Published true, PublishedAt set); no other state exists.
type Record struct {
	ID          uuid.UUID
	OccurredAt  time.Time
	EventType   string
	Payload     []byte
	PayloadHash string
	DedupKey    string
	Published   bool
	PublishedAt *time.Time
}
