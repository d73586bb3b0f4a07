package application

import (
	"context"

	cartdomain "github.com/dmehra2102/shop-assistant/internal/cart/domain"
	invdomain "github.com/dmehra2102/shop-assistant/internal/inventory/domain"
	"github.com/dmehra2102/shop-assistant/internal/order/domain"
	"github.com/dmehra2102/shop-assistant/pkg/outbox"
)

// Tx is the set of reads and writes available inside one store transaction.
// Everything done through a Tx commits together or not at all.
type Tx interface {
	// Cart returns cartdomain.ErrCartNotFound when the user has no cart.
	Cart(ctx context.Context, userID string) (cartdomain.Cart, error)
	// LockProducts reads the current rows for names so that concurrent
	// transactions touching them conflict. Unknown names are absent.
	LockProducts(ctx context.Context, names []string) (map[string]invdomain.Product, error)
	// DecrementStock returns invdomain.ErrInsufficientStock when the product
	// has fewer than quantity units.
	DecrementStock(ctx context.Context, product string, quantity int) error
	// InsertOrder returns domain.ErrDuplicateOrderID when the id is taken.
	InsertOrder(ctx context.Context, o domain.Order) error
	InsertOutbox(ctx context.Context, e outbox.Event) error
	DeleteCart(ctx context.Context, userID string) error
}

// Transactor runs fn inside a store transaction. Errors returned by fn roll the
// transaction back and are returned unchanged. Implementations may re-run fn
// on store-level conflicts.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type OrderReader interface {
	Get(ctx context.Context, id string) (domain.Order, error)
}
