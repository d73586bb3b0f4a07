package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cartdomain "github.com/dmehra2102/shop-assistant/internal/cart/domain"
	invdomain "github.com/dmehra2102/shop-assistant/internal/inventory/domain"
	"github.com/dmehra2102/shop-assistant/internal/order/domain"
	"github.com/dmehra2102/shop-assistant/pkg/outbox"
	"github.com/dmehra2102/shop-assistant/pkg/tracing"
)

const maxIDAttempts = 3

type Service struct {
	log     *slog.Logger
	tx      Transactor
	orders  OrderReader
	ids     domain.IDGenerator
	timeout time.Duration
	now     func() time.Time
	tracer  trace.Tracer
}

func NewService(log *slog.Logger, tx Transactor, orders OrderReader, ids domain.IDGenerator, timeout time.Duration) *Service {
	return &Service{
		log:     log,
		tx:      tx,
		orders:  orders,
		ids:     ids,
		timeout: timeout,
		now:     time.Now,
		tracer:  otel.Tracer("order-service"),
	}
}

type Confirmation struct {
	OrderID     string
	TotalAmount decimal.Decimal
}

// PlaceOrder turns the user's cart into an order. Stock validation, stock
// decrement, order insert, event insert and cart deletion run in a single
// store transaction against live rows.
//
// Errors: ErrEmptyCart, *InsufficientStockError, or ErrTransactionFailed
// wrapping the store cause.
func (s *Service) PlaceOrder(ctx context.Context, userID string) (Confirmation, error) {
	ctx, span := s.tracer.Start(ctx, "PlaceOrder", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	for attempt := 1; ; attempt++ {
		conf, err := s.placeOnce(ctx, userID)
		if err == nil {
			span.SetAttributes(attribute.String("order_id", conf.OrderID))
			s.log.Info("order placed", "user_id", userID, "order_id", conf.OrderID, "total_amount", conf.TotalAmount.StringFixed(2))
			return conf, nil
		}

		var short *InsufficientStockError
		switch {
		case errors.Is(err, ErrEmptyCart):
			return Confirmation{}, ErrEmptyCart
		case errors.As(err, &short):
			s.log.Info("order rejected", "user_id", userID, "insufficient", short.Products)
			return Confirmation{}, short
		case errors.Is(err, domain.ErrDuplicateOrderID) && attempt < maxIDAttempts:
			s.log.Warn("order id collision, regenerating", "user_id", userID, "attempt", attempt)
			continue
		}

		span.RecordError(err)
		s.log.Error("order transaction failed", "user_id", userID, "attempt", attempt, "err", err)
		return Confirmation{}, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
}

func (s *Service) placeOnce(ctx context.Context, userID string) (Confirmation, error) {
	now := s.now()
	id, err := s.ids.NewID(now)
	if err != nil {
		return Confirmation{}, err
	}
	traceparent := tracing.Traceparent(ctx)

	var placed domain.Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		cart, err := tx.Cart(ctx, userID)
		if errors.Is(err, cartdomain.ErrCartNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return fmt.Errorf("read cart: %w", err)
		}
		if cart.IsEmpty() {
			return ErrEmptyCart
		}

		products, err := tx.LockProducts(ctx, cart.ProductNames())
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		if ok, short := invdomain.ValidateStock(cart.StockLines(), products); !ok {
			return &InsufficientStockError{Products: short}
		}

		o := domain.NewOrder(id, userID, cart.Lines, now)
		for _, l := range cart.Lines {
			err := tx.DecrementStock(ctx, l.Product, l.Quantity)
			if errors.Is(err, invdomain.ErrInsufficientStock) {
				return &InsufficientStockError{Products: []string{l.Product}}
			}
			if err != nil {
				return fmt.Errorf("decrement %s: %w", l.Product, err)
			}
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		ev, err := outbox.NewEvent(domain.AggregateOrder, o.ID, domain.EventOrderPlaced, domain.NewOrderPlaced(o),
			map[string]string{"source": "shop-assistant"}, traceparent)
		if err != nil {
			return err
		}
		if err := tx.InsertOutbox(ctx, ev); err != nil {
			return fmt.Errorf("insert outbox: %w", err)
		}
		if err := tx.DeleteCart(ctx, userID); err != nil {
			return fmt.Errorf("delete cart: %w", err)
		}
		placed = o
		return nil
	})
	if err != nil {
		return Confirmation{}, err
	}
	return Confirmation{OrderID: placed.ID, TotalAmount: placed.TotalAmount}, nil
}

// Status is the read side of an order: a point lookup by id.
func (s *Service) Status(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, ErrMissingOrderID
	}
	o, err := s.orders.Get(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return domain.Order{}, err
	}
	if err != nil {
		s.log.Error("order lookup failed", "order_id", orderID, "err", err)
		return domain.Order{}, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	return o, nil
}
