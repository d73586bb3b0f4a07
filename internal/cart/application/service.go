package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/shop-assistant/internal/cart/domain"
	invdomain "github.com/dmehra2102/shop-assistant/internal/inventory/domain"
)

type Service struct {
	log     *slog.Logger
	carts   CartRepository
	catalog ProductCatalog
	now     func() time.Time
}

func NewService(log *slog.Logger, carts CartRepository, catalog ProductCatalog) *Service {
	return &Service{log: log, carts: carts, catalog: catalog, now: time.Now}
}

type Summary struct {
	Line   domain.Line
	Merged bool
	Lines  int
	Total  decimal.Decimal
}

// AddItem puts quantity units of product into the user's cart. The stock check
// is a point-in-time read and does not reserve anything.
func (s *Service) AddItem(ctx context.Context, userID, product string, quantity int) (Summary, error) {
	if quantity <= 0 {
		return Summary{}, ErrMalformedQuantity
	}
	name := invdomain.NormalizeName(product)
	if name == "" {
		return Summary{}, ErrMissingProduct
	}

	p, err := s.catalog.GetByName(ctx, name)
	if errors.Is(err, invdomain.ErrProductNotFound) {
		return Summary{}, err
	}
	if err != nil {
		return Summary{}, s.unavailable("product lookup failed", userID, err)
	}
	if p.Stock < quantity {
		return Summary{}, &StockLimitError{Product: name, Available: p.Stock}
	}

	cart, err := s.carts.Get(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrCartNotFound):
		cart = domain.Cart{UserID: userID}
	case err != nil:
		return Summary{}, s.unavailable("cart read failed", userID, err)
	}

	line, merged := cart.Add(name, quantity, p.Price)
	cart.UpdatedAt = s.now().UTC()
	if err := s.carts.Save(ctx, cart); err != nil {
		return Summary{}, s.unavailable("cart save failed", userID, err)
	}

	s.log.Info("cart updated", "user_id", userID, "product", name, "quantity", line.Quantity, "merged", merged)
	return Summary{Line: line, Merged: merged, Lines: len(cart.Lines), Total: cart.Total()}, nil
}

type LineView struct {
	domain.Line
	InStock   bool
	Available int
}

type View struct {
	Lines       []LineView
	Total       decimal.Decimal
	HasShortage bool
}

// View returns the cart with each line checked against live stock.
func (s *Service) View(ctx context.Context, userID string) (View, error) {
	cart, err := s.carts.Get(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return View{}, ErrEmptyCart
	}
	if err != nil {
		return View{}, s.unavailable("cart read failed", userID, err)
	}
	if cart.IsEmpty() {
		return View{}, ErrEmptyCart
	}

	products, err := s.catalog.GetByNames(ctx, cart.ProductNames())
	if err != nil {
		return View{}, s.unavailable("stock read failed", userID, err)
	}
	_, short := invdomain.ValidateStock(cart.StockLines(), products)
	shortSet := make(map[string]bool, len(short))
	for _, n := range short {
		shortSet[n] = true
	}

	v := View{Total: cart.Total(), HasShortage: len(short) > 0}
	for _, l := range cart.Lines {
		v.Lines = append(v.Lines, LineView{
			Line:      l,
			InStock:   !shortSet[l.Product],
			Available: products[l.Product].Stock,
		})
	}
	return v, nil
}

func (s *Service) unavailable(msg, userID string, err error) error {
	s.log.Error(msg, "user_id", userID, "err", err)
	return fmt.Errorf("%w: %w", ErrCartUnavailable, err)
}
