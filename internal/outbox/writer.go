package outbox

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/calebmch/orderhub/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Writer appends outbox records inside the caller's transaction. If the
// transaction commits, every staged event is durably pending; if it rolls
// back, none are. No network I/O happens here.
type Writer struct {
	repo *Repository
}

func NewWriter(repo *Repository) *Writer {
	return &Writer{repo: repo}
}

// NewRecord builds the pending outbox row for one raised event.
func NewRecord(ev events.DomainEvent) (Record, error) {
	payload, err := events.Encode(ev)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode %s event: %w", ev.EventType(), err)
	}
	return Record{
		ID:          uuid.New(),
		OccurredAt:  ev.OccurredAt(),
		EventType:   ev.EventType(),
		Payload:     payload,
		PayloadHash: events.Hash(payload),
		DedupKey:    events.DedupKey(ev),
	}, nil
}

// Stage builds one record per raised event and inserts them through tx.
func (w *Writer) Stage(ctx context.Context, tx *sql.Tx, raised []events.DomainEvent) error {
	repo := w.repo.WithTx(tx)

	for _, ev := range raised {
		rec, err := NewRecord(ev)
		if err != nil {
			return err
		}
		if err := repo.Insert(ctx, rec); err != nil {
			return err
		}

		log.Debug().
			Str("record_id", rec.ID.String()).
			Str("event_type", rec.EventType).
			Str("dedup_key", rec.DedupKey).
			Msg("outbox record staged")
	}
	return nil
}
