package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/calebmch/orderhub/internal/sqlutil"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Repository struct {
	db sqlutil.DBTX
}

func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to an open transaction.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Insert(ctx context.Context, rec Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox_records
			(id, occurred_at, event_type, payload, payload_hash, dedup_key, published)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)`,
		rec.ID, rec.OccurredAt, rec.EventType, rec.Payload, rec.PayloadHash, rec.DedupKey,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox record: %w", err)
	}
	return nil
}

// FetchUnpublished returns up to limit pending records, oldest first so no
// event starves behind newer ones.
func (r *Repository) FetchUnpublished(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, occurred_at, event_type, payload, payload_hash, dedup_key
		FROM outbox_records
		WHERE published = FALSE
		ORDER BY occurred_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unpublished records: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.OccurredAt, &rec.EventType, &rec.Payload, &rec.PayloadHash, &rec.DedupKey); err != nil {
			return nil, fmt.Errorf("failed to scan outbox record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox records: %w", err)
	}
	return recs, nil
}

// MarkPublished flips a batch of records to delivered in one statement so
// the batch's state change is atomic.
func (r *Repository) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_records
		SET published = TRUE, published_at = $2
		WHERE id = ANY($1) AND published = FALSE`,
		pq.Array(strs), at)
	if err != nil {
		return fmt.Errorf("failed to mark outbox records published: %w", err)
	}
	return nil
}

func (r *Repository) DeleteDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM outbox_records
		WHERE published = TRUE AND published_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete delivered outbox records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted outbox records: %w", err)
	}
	return n, nil
}

func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox_records WHERE published = FALSE`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending outbox records: %w", err)
	}
	return n, nil
}
