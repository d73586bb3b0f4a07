package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int
}

// NormalizeName is the catalogue key form of a user supplied product name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// StockLine is a requested quantity of one product.
type StockLine struct {
	Product  string
	Quantity int
}

// ErrInsufficientStock is returned by a guarded stock decrement that would
// take stock below zero.
var ErrInsufficientStock = errors.New("insufficient stock")
