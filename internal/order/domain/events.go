package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AggregateOrder   = "order"
	EventOrderPlaced = "OrderPlaced"
)

type OrderPlaced struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItem     `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}

func NewOrderPlaced(o Order) OrderPlaced {
	return OrderPlaced{
		OrderID:     o.ID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Items:       o.Items,
		CreatedAt:   o.CreatedAt,
	}
}
