// Package memory is a process-local implementation of every store port. A
// transaction holds the store lock for its whole duration and commits a staged
// copy, so it is serializable but only within one process.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	cartdomain "github.com/dmehra2102/shop-assistant/internal/cart/domain"
	invdomain "github.com/dmehra2102/shop-assistant/internal/inventory/domain"
	"github.com/dmehra2102/shop-assistant/internal/order/application"
	orderdomain "github.com/dmehra2102/shop-assistant/internal/order/domain"
	"github.com/dmehra2102/shop-assistant/pkg/outbox"
)

type Store struct {
	mu       sync.RWMutex
	products map[string]invdomain.Product
	carts    map[string]cartdomain.Cart
	orders   map[string]orderdomain.Order
	events   []outbox.Event
	nextID   int64

	// Fault, when set, is called before each transactional operation with
	// its name; a non-nil result fails that operation.
	Fault func(op string) error
}

func NewStore() *Store {
	return &Store{
		products: make(map[string]invdomain.Product),
		carts:    make(map[string]cartdomain.Cart),
		orders:   make(map[string]orderdomain.Order),
	}
}

// PutProduct inserts or replaces a catalogue entry keyed by normalised name.
func (s *Store) PutProduct(p invdomain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Name = invdomain.NormalizeName(p.Name)
	if p.ID == "" {
		p.ID = p.Name
	}
	s.products[p.Name] = p
}

func (s *Store) Product(name string) (invdomain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[name]
	return p, ok
}

func (s *Store) Orders() []orderdomain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]orderdomain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Events() []outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outbox.Event(nil), s.events...)
}

// SetOrderStatus stands in for the fulfilment process that advances orders.
func (s *Store) SetOrderStatus(id string, status orderdomain.Status, tracking string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orderdomain.ErrOrderNotFound
	}
	o.Status = status
	o.TrackingNumber = tracking
	s.orders[id] = o
	return nil
}

func (s *Store) GetByName(_ context.Context, name string) (invdomain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[name]
	if !ok {
		return invdomain.Product{}, invdomain.ErrProductNotFound
	}
	return p, nil
}

func (s *Store) GetByNames(_ context.Context, names []string) (map[string]invdomain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]invdomain.Product, len(names))
	for _, n := range names {
		if p, ok := s.products[n]; ok {
			out[n] = p
		}
	}
	return out, nil
}

func (s *Store) Search(_ context.Context, prefix string, limit int) ([]invdomain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []invdomain.Product
	for name, p := range s.products {
		if strings.HasPrefix(name, prefix) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, userID string) (cartdomain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.carts[userID]
	if !ok {
		return cartdomain.Cart{}, cartdomain.ErrCartNotFound
	}
	return cloneCart(c), nil
}

func (s *Store) Save(_ context.Context, c cartdomain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[c.UserID] = cloneCart(c)
	return nil
}

// OrderReader exposes the order read port; Get on Store itself reads carts.
func (s *Store) OrderReader() application.OrderReader { return orderReader{s} }

type orderReader struct{ s *Store }

func (r orderReader) Get(_ context.Context, id string) (orderdomain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return orderdomain.Order{}, orderdomain.ErrOrderNotFound
	}
	return o, nil
}

func cloneCart(c cartdomain.Cart) cartdomain.Cart {
	c.Lines = append([]cartdomain.Line(nil), c.Lines...)
	return c
}

// Outbox store.

func (s *Store) LockBatch(_ context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []outbox.Event
	for i := range s.events {
		if len(out) == batchSize {
			break
		}
		e := &s.events[i]
		claimable := e.Status == outbox.StatusPending ||
			(e.Status == outbox.StatusInProgress && now.After(e.LeaseUntil))
		if !claimable {
			continue
		}
		e.Status = outbox.StatusInProgress
		e.RelayID = relayID
		e.LeaseUntil = now.Add(lease)
		out = append(out, *e)
	}
	return out, nil
}

func (s *Store) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for i := range s.events {
		if want[s.events[i].ID] {
			s.events[i].Status = outbox.StatusSent
		}
	}
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		e := &s.events[i]
		if e.ID != id {
			continue
		}
		e.Status = outbox.NextStatus(e.RetryCount)
		e.RetryCount++
		msg := errMsg
		e.LastError = &msg
	}
	return nil
}
