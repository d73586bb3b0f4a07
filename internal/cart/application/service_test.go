package application

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/shop-assistant/internal/cart/domain"
	invdomain "github.com/dmehra2102/shop-assistant/internal/inventory/domain"
	"github.com/dmehra2102/shop-assistant/pkg/logging"
)

func setup() (*Service, *mockCarts, *mockCatalog) {
	carts := &mockCarts{carts: map[string]domain.Cart{}}
	catalog := &mockCatalog{products: map[string]invdomain.Product{
		"mug": {ID: "p1", Name: "mug", Price: decimal.RequireFromString("10.00"), Stock: 5},
		"pen": {ID: "p2", Name: "pen", Price: decimal.RequireFromString("1.50"), Stock: 1},
	}}
	return NewService(logging.Discard(), carts, catalog), carts, catalog
}

func TestAddItem_CreatesCartLazily(t *testing.T) {
	svc, carts, _ := setup()

	sum, err := svc.AddItem(context.Background(), "user-1", "Mug", 2)
	require.NoError(t, err)
	assert.False(t, sum.Merged)
	assert.Equal(t, 1, sum.Lines)
	assert.Equal(t, "mug", sum.Line.Product)
	assert.Equal(t, "20", sum.Total.String())

	saved := carts.carts["user-1"]
	require.Len(t, saved.Lines, 1)
	assert.False(t, saved.UpdatedAt.IsZero())
}

func TestAddItem_MergesExistingLine(t *testing.T) {
	svc, carts, _ := setup()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user-1", "mug", 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "user-1", "pen", 1)
	require.NoError(t, err)
	sum, err := svc.AddItem(ctx, "user-1", "mug", 3)
	require.NoError(t, err)

	assert.True(t, sum.Merged)
	assert.Equal(t, 5, sum.Line.Quantity)
	assert.Equal(t, 2, sum.Lines)
	assert.Equal(t, []string{"mug", "pen"}, carts.carts["user-1"].ProductNames())
}

func TestAddItem_RejectsBadQuantityBeforeStoreAccess(t *testing.T) {
	svc, carts, catalog := setup()

	for _, q := range []int{0, -3} {
		_, err := svc.AddItem(context.Background(), "user-1", "mug", q)
		assert.ErrorIs(t, err, ErrMalformedQuantity)
	}
	assert.Zero(t, catalog.calls)
	assert.Zero(t, carts.saves)
}

func TestAddItem_MissingProductName(t *testing.T) {
	svc, _, _ := setup()

	_, err := svc.AddItem(context.Background(), "user-1", "  ", 1)
	assert.ErrorIs(t, err, ErrMissingProduct)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	svc, carts, _ := setup()

	_, err := svc.AddItem(context.Background(), "user-1", "ghost", 1)
	assert.ErrorIs(t, err, invdomain.ErrProductNotFound)
	assert.Zero(t, carts.saves)
}

func TestAddItem_StockLimit(t *testing.T) {
	svc, carts, _ := setup()

	_, err := svc.AddItem(context.Background(), "user-1", "pen", 2)
	var limit *StockLimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 1, limit.Available)
	assert.Equal(t, "pen", limit.Product)
	assert.Zero(t, carts.saves)
}

func TestAddItem_StoreFailures(t *testing.T) {
	svc, carts, catalog := setup()
	ctx := context.Background()

	carts.saveErr = errors.New("write timeout")
	_, err := svc.AddItem(ctx, "user-1", "mug", 1)
	assert.ErrorIs(t, err, ErrCartUnavailable)

	carts.saveErr = nil
	carts.getErr = errors.New("read timeout")
	_, err = svc.AddItem(ctx, "user-1", "mug", 1)
	assert.ErrorIs(t, err, ErrCartUnavailable)

	carts.getErr = nil
	catalog.err = errors.New("catalog down")
	_, err = svc.AddItem(ctx, "user-1", "mug", 1)
	assert.ErrorIs(t, err, ErrCartUnavailable)
}

func TestView_FlagsShortages(t *testing.T) {
	svc, _, catalog := setup()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user-1", "mug", 4)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "user-1", "pen", 1)
	require.NoError(t, err)

	catalog.products["mug"] = invdomain.Product{Name: "mug", Price: decimal.RequireFromString("10.00"), Stock: 2}

	v, err := svc.View(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, v.Lines, 2)
	assert.False(t, v.Lines[0].InStock)
	assert.Equal(t, 2, v.Lines[0].Available)
	assert.True(t, v.Lines[1].InStock)
	assert.True(t, v.HasShortage)
	assert.Equal(t, "41.5", v.Total.String())
}

func TestView_EmptyCart(t *testing.T) {
	svc, carts, _ := setup()

	_, err := svc.View(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrEmptyCart)

	carts.carts["user-2"] = domain.Cart{UserID: "user-2"}
	_, err = svc.View(context.Background(), "user-2")
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestView_ProductRemovedFromCatalogue(t *testing.T) {
	svc, _, catalog := setup()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "user-1", "pen", 1)
	require.NoError(t, err)
	delete(catalog.products, "pen")

	v, err := svc.View(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, v.Lines[0].InStock)
	assert.Zero(t, v.Lines[0].Available)
}
