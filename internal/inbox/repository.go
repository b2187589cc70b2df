package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/calebmch/orderhub/internal/sqlutil"
)

type Repository struct {
	db sqlutil.DBTX
}

func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Exists(ctx context.Context, payloadHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM inbox_records WHERE payload_hash = $1)`,
		payloadHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check inbox record: %w", err)
	}
	return exists, nil
}

func (r *Repository) Insert(ctx context.Context, rec Record) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO inbox_records (payload_hash, received_at) VALUES ($1, $2)`,
		rec.PayloadHash, rec.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to insert inbox record: %w", err)
	}
	return nil
}

func (r *Repository) DeleteReceivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM inbox_records WHERE received_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete inbox records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted inbox records: %w", err)
	}
	return n, nil
}
