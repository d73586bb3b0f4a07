package application

import (
	"context"

	"github.com/dmehra2102/shop-assistant/internal/cart/domain"
	invdomain "github.com/dmehra2102/shop-assistant/internal/inventory/domain"
)

type mockCarts struct {
	carts   map[string]domain.Cart
	getErr  error
	saveErr error
	saves   int
}

func (m *mockCarts) Get(_ context.Context, userID string) (domain.Cart, error) {
	if m.getErr != nil {
		return domain.Cart{}, m.getErr
	}
	c, ok := m.carts[userID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	c.Lines = append([]domain.Line(nil), c.Lines...)
	return c, nil
}

func (m *mockCarts) Save(_ context.Context, c domain.Cart) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.carts == nil {
		m.carts = map[string]domain.Cart{}
	}
	m.carts[c.UserID] = c
	return nil
}

type mockCatalog struct {
	products map[string]invdomain.Product
	err      error
	calls    int
}

func (m *mockCatalog) GetByName(_ context.Context, name string) (invdomain.Product, error) {
	m.calls++
	if m.err != nil {
		return invdomain.Product{}, m.err
	}
	p, ok := m.products[name]
	if !ok {
		return invdomain.Product{}, invdomain.ErrProductNotFound
	}
	return p, nil
}

func (m *mockCatalog) GetByNames(_ context.Context, names []string) (map[string]invdomain.Product, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := map[string]invdomain.Product{}
	for _, n := range names {
		if p, ok := m.products[n]; ok {
			out[n] = p
		}
	}
	return out, nil
}
