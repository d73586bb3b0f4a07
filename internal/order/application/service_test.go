package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	cartdomain "github.com/dmehra2102/shop-assistant/internal/cart/domain"
	invdomain "github.com/dmehra2102/shop-assistant/internal/inventory/domain"
	"github.com/dmehra2102/shop-assistant/internal/order/application"
	"github.com/dmehra2102/shop-assistant/internal/order/domain"
	"github.com/dmehra2102/shop-assistant/internal/storage/memory"
	"github.com/dmehra2102/shop-assistant/pkg/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type seqIDs struct {
	mu  sync.Mutex
	ids []string
	n   int
}

func (g *seqIDs) NewID(time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.ids[g.n%len(g.ids)]
	g.n++
	return id, nil
}

func newStore(stock map[string]int) *memory.Store {
	s := memory.NewStore()
	for name, n := range stock {
		s.PutProduct(invdomain.Product{Name: name, Price: decimal.RequireFromString("10.00"), Stock: n})
	}
	return s
}

func putCart(t *testing.T, s *memory.Store, userID string, lines ...cartdomain.Line) {
	t.Helper()
	require.NoError(t, s.Save(context.Background(), cartdomain.Cart{UserID: userID, Lines: lines}))
}

func line(product string, qty int, price string) cartdomain.Line {
	return cartdomain.NewLine(product, qty, decimal.RequireFromString(price))
}

func newService(s *memory.Store, ids domain.IDGenerator) *application.Service {
	if ids == nil {
		ids = domain.TimestampGenerator{}
	}
	return application.NewService(logging.Discard(), s, s.OrderReader(), ids, 5*time.Second)
}

func stockOf(t *testing.T, s *memory.Store, name string) int {
	t.Helper()
	p, ok := s.Product(name)
	require.True(t, ok)
	return p.Stock
}

func TestPlaceOrder_Success(t *testing.T) {
	s := newStore(map[string]int{"mug": 5})
	putCart(t, s, "user-1", line("mug", 2, "10.00"))
	svc := newService(s, nil)

	conf, err := svc.PlaceOrder(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-\d{14}-[A-Z0-9]{4}$`, conf.OrderID)
	assert.True(t, decimal.RequireFromString("20.00").Equal(conf.TotalAmount))
	assert.Equal(t, 3, stockOf(t, s, "mug"))

	_, err = s.Get(context.Background(), "user-1")
	assert.ErrorIs(t, err, cartdomain.ErrCartNotFound)

	orders := s.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, conf.OrderID, orders[0].ID)
	assert.Equal(t, domain.StatusPlaced, orders[0].Status)
	assert.Equal(t, "user-1", orders[0].UserID)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, 2, orders[0].Items[0].Quantity)

	events := s.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderPlaced, events[0].Type)
	assert.Equal(t, conf.OrderID, events[0].AggregateID)
	var payload domain.OrderPlaced
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, conf.OrderID, payload.OrderID)
	assert.True(t, conf.TotalAmount.Equal(payload.TotalAmount))
}

func TestPlaceOrder_MultipleLinesDecrementEach(t *testing.T) {
	s := newStore(map[string]int{"mug": 5, "pen": 10, "cup": 1})
	putCart(t, s, "user-1", line("mug", 5, "10.00"), line("pen", 3, "1.25"), line("cup", 1, "7.10"))
	svc := newService(s, nil)

	conf, err := svc.PlaceOrder(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("60.85").Equal(conf.TotalAmount))
	assert.Equal(t, 0, stockOf(t, s, "mug"))
	assert.Equal(t, 7, stockOf(t, s, "pen"))
	assert.Equal(t, 0, stockOf(t, s, "cup"))
}

func TestPlaceOrder_InsufficientStockChangesNothing(t *testing.T) {
	s := newStore(map[string]int{"mug": 5})
	putCart(t, s, "user-1", line("mug", 10, "10.00"))
	svc := newService(s, nil)

	_, err := svc.PlaceOrder(context.Background(), "user-1")
	var short *application.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, []string{"mug"}, short.Products)

	assert.Equal(t, 5, stockOf(t, s, "mug"))
	assert.Empty(t, s.Orders())
	assert.Empty(t, s.Events())
	c, err := s.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 1)
}

func TestPlaceOrder_NamesOnlyOversubscribedProducts(t *testing.T) {
	s := newStore(map[string]int{"mug": 5, "pen": 1, "cup": 3})
	putCart(t, s, "user-1", line("pen", 2, "1.00"), line("mug", 1, "10.00"), line("cup", 4, "2.00"))
	svc := newService(s, nil)

	_, err := svc.PlaceOrder(context.Background(), "user-1")
	var short *application.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, []string{"pen", "cup"}, short.Products)
	assert.Equal(t, 5, stockOf(t, s, "mug"))
}

func TestPlaceOrder_ProductMissingFromCatalogue(t *testing.T) {
	s := newStore(map[string]int{"mug": 5})
	putCart(t, s, "user-1", line("mug", 1, "10.00"), line("discontinued", 1, "3.00"))
	svc := newService(s, nil)

	_, err := svc.PlaceOrder(context.Background(), "user-1")
	var short *application.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, []string{"discontinued"}, short.Products)
	assert.Equal(t, 5, stockOf(t, s, "mug"))
}

func TestPlaceOrder_EmptyCartIsStable(t *testing.T) {
	s := newStore(map[string]int{"mug": 5})
	svc := newService(s, nil)

	for i := 0; i < 2; i++ {
		_, err := svc.PlaceOrder(context.Background(), "user-1")
		assert.ErrorIs(t, err, application.ErrEmptyCart)
	}
	putCart(t, s, "user-2")
	_, err := svc.PlaceOrder(context.Background(), "user-2")
	assert.ErrorIs(t, err, application.ErrEmptyCart)

	assert.Empty(t, s.Orders())
	assert.Empty(t, s.Events())
	assert.Equal(t, 5, stockOf(t, s, "mug"))
}

func TestPlaceOrder_StoreFailureRollsBack(t *testing.T) {
	for _, op := range []string{"cart", "lock_products", "decrement_stock", "insert_order", "insert_outbox", "delete_cart"} {
		t.Run(op, func(t *testing.T) {
			s := newStore(map[string]int{"mug": 5})
			putCart(t, s, "user-1", line("mug", 2, "10.00"))
			s.Fault = func(got string) error {
				if got == op {
					return errors.New("store unavailable")
				}
				return nil
			}
			svc := newService(s, nil)

			_, err := svc.PlaceOrder(context.Background(), "user-1")
			assert.ErrorIs(t, err, application.ErrTransactionFailed)

			assert.Equal(t, 5, stockOf(t, s, "mug"))
			assert.Empty(t, s.Orders())
			assert.Empty(t, s.Events())
			_, err = s.Get(context.Background(), "user-1")
			assert.NoError(t, err)
		})
	}
}

func TestPlaceOrder_RegeneratesCollidingID(t *testing.T) {
	s := newStore(map[string]int{"mug": 5})
	putCart(t, s, "user-1", line("mug", 1, "10.00"))
	ids := &seqIDs{ids: []string{"ORD-A", "ORD-A", "ORD-B"}}
	svc := newService(s, ids)

	first, err := svc.PlaceOrder(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-A", first.OrderID)

	putCart(t, s, "user-1", line("mug", 1, "10.00"))
	second, err := svc.PlaceOrder(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-B", second.OrderID)
	assert.Equal(t, 3, stockOf(t, s, "mug"))
}

func TestPlaceOrder_GivesUpAfterRepeatedCollisions(t *testing.T) {
	s := newStore(map[string]int{"mug": 5})
	putCart(t, s, "user-1", line("mug", 1, "10.00"))
	svc := newService(s, &seqIDs{ids: []string{"ORD-A"}})

	_, err := svc.PlaceOrder(context.Background(), "user-1")
	require.NoError(t, err)

	putCart(t, s, "user-1", line("mug", 1, "10.00"))
	_, err = svc.PlaceOrder(context.Background(), "user-1")
	assert.ErrorIs(t, err, application.ErrTransactionFailed)
	assert.ErrorIs(t, err, domain.ErrDuplicateOrderID)
	assert.Equal(t, 4, stockOf(t, s, "mug"))
}

func TestPlaceOrder_ConcurrentBuyersNeverOversell(t *testing.T) {
	s := newStore(map[string]int{"mug": 3})
	putCart(t, s, "alice", line("mug", 3, "10.00"))
	putCart(t, s, "bob", line("mug", 3, "10.00"))
	svc := newService(s, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(context.Background(), user)
		}(i, user)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		var short *application.InsufficientStockError
		assert.ErrorAs(t, err, &short)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 0, stockOf(t, s, "mug"))
	assert.Len(t, s.Orders(), 1)
}

func TestPlaceOrder_SameCartTwiceConcurrently(t *testing.T) {
	s := newStore(map[string]int{"mug": 2})
	putCart(t, s, "user-1", line("mug", 2, "10.00"))
	svc := newService(s, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(context.Background(), "user-1")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, application.ErrEmptyCart)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 0, stockOf(t, s, "mug"))
}

type blockingTx struct{}

func (blockingTx) WithinTx(ctx context.Context, _ func(context.Context, application.Tx) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestPlaceOrder_DeadlineBoundsTheTransaction(t *testing.T) {
	s := memory.NewStore()
	svc := application.NewService(logging.Discard(), blockingTx{}, s.OrderReader(), domain.TimestampGenerator{}, 20*time.Millisecond)

	start := time.Now()
	_, err := svc.PlaceOrder(context.Background(), "user-1")
	assert.ErrorIs(t, err, application.ErrTransactionFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

type failingOrders struct{}

func (failingOrders) Get(context.Context, string) (domain.Order, error) {
	return domain.Order{}, errors.New("socket closed")
}

func TestStatus(t *testing.T) {
	s := newStore(map[string]int{"mug": 5})
	putCart(t, s, "user-1", line("mug", 1, "10.00"))
	svc := newService(s, nil)
	ctx := context.Background()

	conf, err := svc.PlaceOrder(ctx, "user-1")
	require.NoError(t, err)

	o, err := svc.Status(ctx, " "+conf.OrderID+" ")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlaced, o.Status)

	_, err = svc.Status(ctx, "ORD-missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = svc.Status(ctx, "")
	assert.ErrorIs(t, err, application.ErrMissingOrderID)

	broken := application.NewService(logging.Discard(), s, failingOrders{}, domain.TimestampGenerator{}, 0)
	_, err = broken.Status(ctx, conf.OrderID)
	assert.ErrorIs(t, err, application.ErrLookupFailed)
}
