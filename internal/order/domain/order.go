package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	cartdomain "github.com/dmehra2102/shop-assistant/internal/cart/domain"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicateOrderID = errors.New("duplicate order id")
)

type Status string

const (
	StatusPlaced     Status = "placed"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var statusEmoji = map[Status]string{
	StatusPlaced:     "📦",
	StatusConfirmed:  "✅",
	StatusProcessing: "⚙️",
	StatusShipped:    "🚚",
	StatusDelivered:  "🏠",
	StatusCancelled:  "❌",
}

func (s Status) Valid() bool {
	_, ok := statusEmoji[s]
	return ok
}

func (s Status) Emoji() string {
	if e, ok := statusEmoji[s]; ok {
		return e
	}
	return "❓"
}

type Order struct {
	ID             string
	UserID         string
	Items          []OrderItem
	TotalAmount    decimal.Decimal
	Status         Status
	TrackingNumber string
	CreatedAt      time.Time
}

type OrderItem struct {
	Product   string          `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// NewOrder snapshots lines into a placed order. CreatedAt is truncated to
// the second.
func NewOrder(id, userID string, lines []cartdomain.Line, now time.Time) Order {
	items := make([]OrderItem, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		sub := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		items = append(items, OrderItem{
			Product:   l.Product,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  sub,
		})
		total = total.Add(sub)
	}
	return Order{
		ID:          id,
		UserID:      userID,
		Items:       items,
		TotalAmount: total,
		Status:      StatusPlaced,
		CreatedAt:   now.UTC().Truncate(time.Second),
	}
}
