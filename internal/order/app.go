package order

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/calebmch/orderhub/internal/models"
	"github.com/calebmch/orderhub/internal/outbox"
	"github.com/calebmch/orderhub/internal/sqlutil"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// App runs order business operations. Every mutating operation writes the
// order and stages its raised events in one transaction, so the business
// write and the pending outbox rows commit or roll back together.
type App struct {
	db     *sql.DB
	orders *Repository
	writer *outbox.Writer
	clock  clockwork.Clock
}

func NewApp(db *sql.DB, orders *Repository, writer *outbox.Writer, clock clockwork.Clock) *App {
	return &App{
		db:     db,
		orders: orders,
		writer: writer,
		clock:  clock,
	}
}

func (a *App) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	o, raised := New(req.CustomerName, req.TotalCents, a.clock.Now().UTC())

	err := sqlutil.Run(ctx, a.db, func(tx *sql.Tx) error {
		if err := a.orders.WithTx(tx).Insert(ctx, o); err != nil {
			return err
		}
		return a.writer.Stage(ctx, tx, raised)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	log.Info().
		Str("order_id", o.ID.String()).
		Str("customer", o.CustomerName).
		Msg("order created")

	return &o, nil
}

func (a *App) PayOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var paid models.Order

	err := sqlutil.Run(ctx, a.db, func(tx *sql.Tx) error {
		repo := a.orders.WithTx(tx)

		current, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		updated, raised, err := Pay(*current, a.clock.Now().UTC())
		if err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, id, updated.Status); err != nil {
			return err
		}
		if err := a.writer.Stage(ctx, tx, raised); err != nil {
			return err
		}
		paid = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("order_id", id.String()).Msg("order paid")
	return &paid, nil
}

func (a *App) CancelOrder(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error) {
	var cancelled models.Order

	err := sqlutil.Run(ctx, a.db, func(tx *sql.Tx) error {
		repo := a.orders.WithTx(tx)

		current, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		updated, raised, err := Cancel(*current, reason, a.clock.Now().UTC())
		if err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, id, updated.Status); err != nil {
			return err
		}
		if err := a.writer.Stage(ctx, tx, raised); err != nil {
			return err
		}
		cancelled = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("order_id", id.String()).Str("reason", reason).Msg("order cancelled")
	return &cancelled, nil
}

func (a *App) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return a.orders.GetByID(ctx, id)
}

func (a *App) ListOrders(ctx context.Context, req ListOrdersRequest) (*OrderPage, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}
	return a.orders.List(ctx, req)
}
