package strategy

import "github.com/quantfall/revival/internal/domain"

// Strategy is the decision function the engine drives once per timestep.
// It receives value snapshots and read-only views only; it must not retain
// references into engine state beyond the call. The returned actions are
// owned by the engine for the rest of the timestep.
type Strategy interface {
	Name() string
	Decide(portfolio domain.Portfolio, pending []domain.PendingOrder, history domain.MarketHistory, book *domain.BookSnapshot) []domain.Action
}

// Config holds strategy configuration.
type Config struct {
	Name   string
	Size   float64 // order quantity per decision
	Params map[string]any
}
