package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	invdomain "github.com/dmehra2102/shop-assistant/internal/inventory/domain"
)

var ErrCartNotFound = errors.New("cart not found")

type Line struct {
	Product   string          `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func NewLine(product string, quantity int, unitPrice decimal.Decimal) Line {
	return Line{
		Product:   product,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

type Cart struct {
	UserID    string
	Lines     []Line
	UpdatedAt time.Time
}

// Add merges quantity into the line for product, or appends a new line. The
// line's unit price is refreshed to price. It reports whether a line was merged.
func (c *Cart) Add(product string, quantity int, price decimal.Decimal) (Line, bool) {
	for i, l := range c.Lines {
		if l.Product == product {
			c.Lines[i] = NewLine(product, l.Quantity+quantity, price)
			return c.Lines[i], true
		}
	}
	line := NewLine(product, quantity, price)
	c.Lines = append(c.Lines, line)
	return line, false
}

func (c Cart) IsEmpty() bool { return len(c.Lines) == 0 }

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

func (c Cart) StockLines() []invdomain.StockLine {
	out := make([]invdomain.StockLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		out = append(out, invdomain.StockLine{Product: l.Product, Quantity: l.Quantity})
	}
	return out
}

func (c Cart) ProductNames() []string {
	out := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		out = append(out, l.Product)
	}
	return out
}
