package strategy

import "github.com/quantfall/revival/internal/domain"

// Holding never trades. Useful as a baseline and for dry runs that only
// exercise the timeline and value series.
type Holding struct{}

// NewHold returns the do-nothing strategy.
func NewHold() *Holding { return &Holding{} }

// Name returns the strategy identifier.
func (h *Holding) Name() string { return "hold" }

// Decide always holds.
func (h *Holding) Decide(domain.Portfolio, []domain.PendingOrder, domain.MarketHistory, *domain.BookSnapshot) []domain.Action {
	return []domain.Action{domain.Hold()}
}
