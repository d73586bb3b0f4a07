package application

import (
	"context"

	"github.com/dmehra2102/shop-assistant/internal/cart/domain"
	invdomain "github.com/dmehra2102/shop-assistant/internal/inventory/domain"
)

type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
}

type ProductCatalog interface {
	GetByName(ctx context.Context, name string) (invdomain.Product, error)
	GetByNames(ctx context.Context, names []string) (map[string]invdomain.Product, error)
}
