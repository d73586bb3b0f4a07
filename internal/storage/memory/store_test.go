package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartdomain "github.com/dmehra2102/shop-assistant/internal/cart/domain"
	invdomain "github.com/dmehra2102/shop-assistant/internal/inventory/domain"
	"github.com/dmehra2102/shop-assistant/internal/order/application"
	orderdomain "github.com/dmehra2102/shop-assistant/internal/order/domain"
	"github.com/dmehra2102/shop-assistant/pkg/outbox"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.PutProduct(invdomain.Product{Name: "Mug", Price: decimal.NewFromInt(10), Stock: 5})
	s.PutProduct(invdomain.Product{Name: "mug holder", Price: decimal.NewFromInt(4), Stock: 2})
	s.PutProduct(invdomain.Product{Name: "pen", Price: decimal.NewFromInt(1), Stock: 9})
	return s
}

func TestCatalog(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	p, err := s.GetByName(ctx, "mug")
	require.NoError(t, err)
	assert.Equal(t, "mug", p.ID)

	_, err = s.GetByName(ctx, "ghost")
	assert.ErrorIs(t, err, invdomain.ErrProductNotFound)

	found, err := s.Search(ctx, "mug", 5)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "mug", found[0].Name)
	assert.Equal(t, "mug holder", found[1].Name)

	found, err = s.Search(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	levels, err := s.GetByNames(ctx, []string{"pen", "ghost"})
	require.NoError(t, err)
	assert.Len(t, levels, 1)
	assert.Equal(t, 9, levels["pen"].Stock)
}

func TestCartRoundTripIsolation(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "user-1")
	assert.ErrorIs(t, err, cartdomain.ErrCartNotFound)

	c := cartdomain.Cart{UserID: "user-1"}
	c.Add("mug", 1, decimal.NewFromInt(10))
	require.NoError(t, s.Save(ctx, c))

	c.Lines[0].Quantity = 50
	got, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Lines[0].Quantity)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx application.Tx) error {
		require.NoError(t, tx.DecrementStock(ctx, "mug", 2))
		require.NoError(t, tx.InsertOrder(ctx, orderdomain.Order{ID: "ORD-1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, _ := s.Product("mug")
	assert.Equal(t, 5, p.Stock)
	assert.Empty(t, s.Orders())
}

func TestWithinTx_Fault(t *testing.T) {
	s := seeded(t)
	s.Fault = func(op string) error {
		if op == "delete_cart" {
			return errors.New("unavailable")
		}
		return nil
	}
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx application.Tx) error {
		if err := tx.DecrementStock(ctx, "mug", 1); err != nil {
			return err
		}
		return tx.DeleteCart(ctx, "user-1")
	})
	assert.Error(t, err)
	p, _ := s.Product("mug")
	assert.Equal(t, 5, p.Stock)
}

func TestWithinTx_CancelledContext(t *testing.T) {
	s := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTx(ctx, func(context.Context, application.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestTx_Guards(t *testing.T) {
	s := seeded(t)
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx application.Tx) error {
		assert.ErrorIs(t, tx.DecrementStock(ctx, "mug", 6), invdomain.ErrInsufficientStock)
		assert.ErrorIs(t, tx.DecrementStock(ctx, "ghost", 1), invdomain.ErrInsufficientStock)
		require.NoError(t, tx.InsertOrder(ctx, orderdomain.Order{ID: "ORD-1"}))
		assert.ErrorIs(t, tx.InsertOrder(ctx, orderdomain.Order{ID: "ORD-1"}), orderdomain.ErrDuplicateOrderID)
		return nil
	})
	require.NoError(t, err)
}

func TestOutboxLeaseCycle(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	err := s.WithinTx(ctx, func(ctx context.Context, tx application.Tx) error {
		for i := 0; i < 3; i++ {
			if err := tx.InsertOutbox(ctx, outbox.Event{Type: "OrderPlaced"}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	batch, err := s.LockBatch(ctx, "r1", 2, time.Hour)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, []int64{1, 2}, []int64{batch[0].ID, batch[1].ID})

	rest, err := s.LockBatch(ctx, "r2", 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, int64(3), rest[0].ID)

	require.NoError(t, s.MarkSent(ctx, []int64{1}))
	require.NoError(t, s.MarkFailed(ctx, 2, "broker said no"))

	events := s.Events()
	assert.Equal(t, outbox.StatusSent, events[0].Status)
	assert.Equal(t, outbox.StatusPending, events[1].Status)
	assert.Equal(t, 1, events[1].RetryCount)
	require.NotNil(t, events[1].LastError)

	again, err := s.LockBatch(ctx, "r1", 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, int64(2), again[0].ID)
}

func TestOutboxExpiredLeaseIsReclaimed(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx application.Tx) error {
		return tx.InsertOutbox(ctx, outbox.Event{Type: "OrderPlaced"})
	}))

	first, err := s.LockBatch(ctx, "r1", 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, first, 1)

	time.Sleep(5 * time.Millisecond)
	second, err := s.LockBatch(ctx, "r2", 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "r2", s.Events()[0].RelayID)
}

func TestSetOrderStatus(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx application.Tx) error {
		return tx.InsertOrder(ctx, orderdomain.Order{ID: "ORD-1", Status: orderdomain.StatusPlaced})
	}))

	require.NoError(t, s.SetOrderStatus("ORD-1", orderdomain.StatusShipped, "TRK-1"))
	o, err := s.OrderReader().Get(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusShipped, o.Status)
	assert.Equal(t, "TRK-1", o.TrackingNumber)

	assert.ErrorIs(t, s.SetOrderStatus("nope", orderdomain.StatusShipped, ""), orderdomain.ErrOrderNotFound)
	_, err = s.OrderReader().Get(ctx, "nope")
	assert.ErrorIs(t, err, orderdomain.ErrOrderNotFound)
}
