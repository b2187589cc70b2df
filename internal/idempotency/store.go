// Package idempotency persists request keys so retried HTTP writes return
// the originally created resource instead of creating another.
package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/calebmch/orderhub/internal/sqlutil"
	"github.com/google/uuid"
)

type Record struct {
	Key        string
	CreatedAt  time.Time
	ResourceID *uuid.UUID
}

type Store struct {
	db sqlutil.DBTX
}

func NewStore(db sqlutil.DBTX) *Store {
	return &Store{db: db}
}

// Get returns the record for key, or nil when the key is unseen.
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	var rec Record
	var resourceID uuid.NullUUID
	err := s.db.QueryRowContext(ctx, `
		SELECT key, created_at, resource_id
		FROM idempotency_keys WHERE key = $1`, key,
	).Scan(&rec.Key, &rec.CreatedAt, &resourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	if resourceID.Valid {
		rec.ResourceID = &resourceID.UUID
	}
	return &rec, nil
}

func (s *Store) Save(ctx context.Context, rec Record) error {
	var resourceID uuid.NullUUID
	if rec.ResourceID != nil {
		resourceID = uuid.NullUUID{UUID: *rec.ResourceID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, created_at, resource_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING`,
		rec.Key, rec.CreatedAt, resourceID)
	if err != nil {
		return fmt.Errorf("failed to save idempotency record: %w", err)
	}
	return nil
}
