package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	cartdomain "github.com/dmehra2102/shop-assistant/internal/cart/domain"
	cartpg "github.com/dmehra2102/shop-assistant/internal/cart/infrastructure/postgres"
	invdomain "github.com/dmehra2102/shop-assistant/internal/inventory/domain"
	invpg "github.com/dmehra2102/shop-assistant/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/shop-assistant/internal/order/application"
	"github.com/dmehra2102/shop-assistant/internal/order/domain"
	"github.com/dmehra2102/shop-assistant/pkg/outbox"
)

const maxTxAttempts = 3

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// WithinTx runs fn in a read-committed transaction. Rows are locked explicitly
// by the Tx methods; serialization failures and deadlocks re-run fn.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = r.runTx(ctx, fn)
		if !retryable(err) {
			return err
		}
		r.log.Warn("transaction conflict, retrying", "attempt", attempt, "err", err)
	}
	return err
}

func (r *Repository) runTx(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Cart(ctx context.Context, userID string) (cartdomain.Cart, error) {
	return cartpg.ReadCart(ctx, t.tx, userID, true)
}

func (t *pgTx) LockProducts(ctx context.Context, names []string) (map[string]invdomain.Product, error) {
	// Locking in name order keeps two overlapping carts from deadlocking.
	rows, err := t.tx.Query(ctx, `SELECT `+invpg.ProductColumns+` FROM products
		WHERE name = ANY($1)
		ORDER BY name
		FOR UPDATE`, names)
	if err != nil {
		return nil, err
	}
	return invpg.CollectProducts(rows)
}

func (t *pgTx) DecrementStock(ctx context.Context, product string, quantity int) error {
	ct, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE name = $1 AND stock >= $2`, product, quantity)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return invdomain.ErrInsufficientStock
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o domain.Order) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO orders (id, user_id, total_amount, status, tracking_number, created_at)
		VALUES ($1, $2, $3::numeric, $4, NULLIF($5, ''), $6)`,
		o.ID, o.UserID, o.TotalAmount.String(), string(o.Status), o.TrackingNumber, o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return domain.ErrDuplicateOrderID
		}
		return err
	}

	batch := &pgx.Batch{}
	for i, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, line_no, product, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)`,
			o.ID, i, item.Product, item.Quantity, item.UnitPrice.String(), item.Subtotal.String())
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) InsertOutbox(ctx context.Context, e outbox.Event) error {
	if e.Headers == nil {
		e.Headers = map[string]string{}
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7)`,
		e.AggregateType, e.AggregateID, e.Type, e.Payload, e.Headers, e.Traceparent, e.CreatedAt)
	return err
}

func (t *pgTx) DeleteCart(ctx context.Context, userID string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	var (
		o        domain.Order
		total    string
		status   string
		tracking *string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, user_id, total_amount::text, status, tracking_number, created_at
		FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.UserID, &total, &status, &tracking, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, fmt.Errorf("bad total for order %s: %w", id, err)
	}
	o.Status = domain.Status(status)
	if tracking != nil {
		o.TrackingNumber = *tracking
	}

	rows, err := r.pool.Query(ctx, `SELECT product, quantity, unit_price::text, subtotal::text
		FROM order_items WHERE order_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item            domain.OrderItem
			price, subtotal string
		)
		if err := rows.Scan(&item.Product, &item.Quantity, &price, &subtotal); err != nil {
			return domain.Order{}, err
		}
		item.UnitPrice, _ = decimal.NewFromString(price)
		item.Subtotal, _ = decimal.NewFromString(subtotal)
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}
