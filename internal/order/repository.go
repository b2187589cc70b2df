package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/calebmch/orderhub/internal/models"
	"github.com/calebmch/orderhub/internal/sqlutil"
	"github.com/google/uuid"
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

func (r *Repository) Insert(ctx context.Context, o models.Order) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, customer_name, total_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.CustomerName, o.TotalCents, o.Status, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_name, total_cents, status, created_at
		FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.CustomerName, &o.TotalCents, &o.Status, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &o, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// sortColumns whitelists client-supplied sort keys.
var sortColumns = map[string]string{
	"customer_name": "customer_name",
	"total_cents":   "total_cents",
	"status":        "status",
	"created_at":    "created_at",
}

func (r *Repository) List(ctx context.Context, req ListOrdersRequest) (*OrderPage, error) {
	column, ok := sortColumns[req.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if req.Desc {
		direction = "DESC"
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, customer_name, total_cents, status, created_at
		FROM orders
		ORDER BY %s %s
		LIMIT $1 OFFSET $2`, column, direction)

	rows, err := r.db.QueryContext(ctx, query, req.PageSize, (req.Page-1)*req.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	page := &OrderPage{
		Items:      []models.Order{},
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalCount: total,
	}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.CustomerName, &o.TotalCents, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		page.Items = append(page.Items, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return page, nil
}
