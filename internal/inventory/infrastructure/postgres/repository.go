package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/shop-assistant/internal/inventory/domain"
)

// ProductColumns is the select list understood by ScanProduct.
const ProductColumns = `id, name, price::text, stock`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) GetByName(ctx context.Context, name string) (domain.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ProductColumns+` FROM products WHERE name = $1`, name)
	p, err := ScanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to get product %q: %w", name, err)
	}
	return p, nil
}

func (r *Repository) GetByNames(ctx context.Context, names []string) (map[string]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ProductColumns+` FROM products WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	return CollectProducts(rows)
}

func (r *Repository) Search(ctx context.Context, prefix string, limit int) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ProductColumns+` FROM products
		WHERE starts_with(name, $1)
		ORDER BY name
		LIMIT $2`, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := ScanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert seeds or replaces a catalogue row.
func (r *Repository) Upsert(ctx context.Context, p domain.Product) error {
	p.Name = domain.NormalizeName(p.Name)
	if p.ID == "" {
		p.ID = p.Name
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO products (id, name, price, stock) VALUES ($1, $2, $3::numeric, $4)
		ON CONFLICT (id) DO UPDATE SET name = $2, price = $3::numeric, stock = $4`,
		p.ID, p.Name, p.Price.String(), p.Stock)
	if err != nil {
		return fmt.Errorf("failed to upsert product %q: %w", p.Name, err)
	}
	return nil
}

// ScanProduct reads one row selected with the product column list.
func ScanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Stock); err != nil {
		return domain.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("bad price for %q: %w", p.Name, err)
	}
	p.Price = d
	return p, nil
}

// CollectProducts drains rows into a map keyed by product name.
func CollectProducts(rows pgx.Rows) (map[string]domain.Product, error) {
	defer rows.Close()
	out := make(map[string]domain.Product)
	for rows.Next() {
		p, err := ScanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.Name] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
