package actions

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	cartapp "github.com/dmehra2102/shop-assistant/internal/cart/application"
)

// Tracker is the part of the dialogue state the actions read.
type Tracker struct {
	SenderID      string         `json:"sender_id"`
	Slots         map[string]any `json:"slots"`
	LatestMessage LatestMessage  `json:"latest_message"`
}

type LatestMessage struct {
	Text      string `json:"text"`
	MessageID string `json:"message_id"`
}

// Slot returns the named slot as trimmed text, or "" when unset.
func (t Tracker) Slot(name string) string {
	switch v := t.Slots[name].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Quantity reads the quantity slot. An unset slot means 1; whole JSON
// numbers and base-10 integer strings are accepted, anything else is
// cartapp.ErrMalformedQuantity.
func (t Tracker) Quantity() (int, error) {
	switch v := t.Slots["quantity"].(type) {
	case nil:
		return 1, nil
	case int:
		return v, nil
	case float64:
		return wholeNumber(v)
	case json.Number:
		if n, err := strconv.Atoi(v.String()); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, cartapp.ErrMalformedQuantity
		}
		return wholeNumber(f)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 1, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, cartapp.ErrMalformedQuantity
		}
		return n, nil
	default:
		return 0, cartapp.ErrMalformedQuantity
	}
}

func wholeNumber(v float64) (int, error) {
	if v != math.Trunc(v) || v > math.MaxInt32 || v < math.MinInt32 {
		return 0, cartapp.ErrMalformedQuantity
	}
	return int(v), nil
}
