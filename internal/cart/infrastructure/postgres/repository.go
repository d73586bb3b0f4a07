package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/shop-assistant/internal/cart/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	c, err := ReadCart(ctx, r.pool, userID, false)
	if err != nil && !errors.Is(err, domain.ErrCartNotFound) {
		return domain.Cart{}, fmt.Errorf("failed to get cart: %w", err)
	}
	return c, err
}

func (r *Repository) Save(ctx context.Context, c domain.Cart) error {
	items, err := json.Marshal(c.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal cart items: %w", err)
	}
	updated := c.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO carts (user_id, items, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET items = $2, updated_at = $3`,
		c.UserID, items, updated)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// Querier is satisfied by both a pool and a transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReadCart loads a cart row; forUpdate locks it for the rest of the
// surrounding transaction.
func ReadCart(ctx context.Context, q Querier, userID string, forUpdate bool) (domain.Cart, error) {
	sql := `SELECT items, updated_at FROM carts WHERE user_id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var (
		items []byte
		c     = domain.Cart{UserID: userID}
	)
	err := q.QueryRow(ctx, sql, userID).Scan(&items, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	if err != nil {
		return domain.Cart{}, err
	}
	if err := json.Unmarshal(items, &c.Lines); err != nil {
		return domain.Cart{}, fmt.Errorf("failed to decode cart items: %w", err)
	}
	return c, nil
}
