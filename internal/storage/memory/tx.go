package memory

import (
	"context"
	"maps"

	cartdomain "github.com/dmehra2102/shop-assistant/internal/cart/domain"
	invdomain "github.com/dmehra2102/shop-assistant/internal/inventory/domain"
	"github.com/dmehra2102/shop-assistant/internal/order/application"
	orderdomain "github.com/dmehra2102/shop-assistant/internal/order/domain"
	"github.com/dmehra2102/shop-assistant/pkg/outbox"
)

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		fault:    s.Fault,
		products: maps.Clone(s.products),
		carts:    maps.Clone(s.carts),
		orders:   maps.Clone(s.orders),
		events:   append([]outbox.Event(nil), s.events...),
		nextID:   s.nextID,
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.products = tx.products
	s.carts = tx.carts
	s.orders = tx.orders
	s.events = tx.events
	s.nextID = tx.nextID
	return nil
}

type memTx struct {
	fault    func(op string) error
	products map[string]invdomain.Product
	carts    map[string]cartdomain.Cart
	orders   map[string]orderdomain.Order
	events   []outbox.Event
	nextID   int64
}

func (t *memTx) check(op string) error {
	if t.fault == nil {
		return nil
	}
	return t.fault(op)
}

func (t *memTx) Cart(_ context.Context, userID string) (cartdomain.Cart, error) {
	if err := t.check("cart"); err != nil {
		return cartdomain.Cart{}, err
	}
	c, ok := t.carts[userID]
	if !ok {
		return cartdomain.Cart{}, cartdomain.ErrCartNotFound
	}
	return cloneCart(c), nil
}

func (t *memTx) LockProducts(_ context.Context, names []string) (map[string]invdomain.Product, error) {
	if err := t.check("lock_products"); err != nil {
		return nil, err
	}
	out := make(map[string]invdomain.Product, len(names))
	for _, n := range names {
		if p, ok := t.products[n]; ok {
			out[n] = p
		}
	}
	return out, nil
}

func (t *memTx) DecrementStock(_ context.Context, product string, quantity int) error {
	if err := t.check("decrement_stock"); err != nil {
		return err
	}
	p, ok := t.products[product]
	if !ok || p.Stock < quantity {
		return invdomain.ErrInsufficientStock
	}
	p.Stock -= quantity
	t.products[product] = p
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o orderdomain.Order) error {
	if err := t.check("insert_order"); err != nil {
		return err
	}
	if _, taken := t.orders[o.ID]; taken {
		return orderdomain.ErrDuplicateOrderID
	}
	o.Items = append([]orderdomain.OrderItem(nil), o.Items...)
	t.orders[o.ID] = o
	return nil
}

func (t *memTx) InsertOutbox(_ context.Context, e outbox.Event) error {
	if err := t.check("insert_outbox"); err != nil {
		return err
	}
	t.nextID++
	e.ID = t.nextID
	e.Status = outbox.StatusPending
	t.events = append(t.events, e)
	return nil
}

func (t *memTx) DeleteCart(_ context.Context, userID string) error {
	if err := t.check("delete_cart"); err != nil {
		return err
	}
	delete(t.carts, userID)
	return nil
}
