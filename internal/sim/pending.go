package sim

import "github.com/quantfall/revival/internal/domain"

// PendingBook holds the currently resting orders. It is an ordered slice
// scanned linearly each timestep; resting-order counts stay small relative
// to timestep counts, so a price index would buy nothing.
type PendingBook struct {
	orders []domain.PendingOrder
}

// NewPendingBook returns an empty book.
func NewPendingBook() *PendingBook {
	return &PendingBook{}
}

// Len returns the number of resting orders.
func (b *PendingBook) Len() int {
	return len(b.orders)
}

// Add appends an order to the book. Orders keep insertion order, so the
// sweep evaluates older orders first.
func (b *PendingBook) Add(o domain.PendingOrder) {
	b.orders = append(b.orders, o)
}

// Remove takes the order with the given ID out of the book. The second
// return value is false when no such order rests.
func (b *PendingBook) Remove(id int64) (domain.PendingOrder, bool) {
	for i, o := range b.orders {
		if o.ID == id {
			b.orders = append(b.orders[:i], b.orders[i+1:]...)
			return o, true
		}
	}
	return domain.PendingOrder{}, false
}

// Orders returns a copy of the resting orders for read-only consumers.
func (b *PendingBook) Orders() []domain.PendingOrder {
	out := make([]domain.PendingOrder, len(b.orders))
	copy(out, b.orders)
	return out
}

// Sweep calls fill for every resting order, in insertion order, and
// removes the orders fill reports as executed. Orders added during the
// same timestep are swept too.
func (b *PendingBook) Sweep(fill func(o domain.PendingOrder) bool) {
	kept := b.orders[:0]
	for _, o := range b.orders {
		if !fill(o) {
			kept = append(kept, o)
		}
	}
	b.orders = kept
}
