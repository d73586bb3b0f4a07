package application

import (
	"context"

	"github.com/dmehra2102/shop-assistant/internal/inventory/domain"
)

type Catalog interface {
	GetByName(ctx context.Context, name string) (domain.Product, error)
	GetByNames(ctx context.Context, names []string) (map[string]domain.Product, error)
	Search(ctx context.Context, prefix string, limit int) ([]domain.Product, error)
}
