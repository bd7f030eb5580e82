package domain

import "time"

// Trade is a single historical trade print. Trades are immutable once loaded
// and the input sequence is ascending by timestamp.
type Trade struct {
	ID        int64
	Price     float64
	Quantity  float64
	Timestamp time.Time
}

// MarketHistory is a read-only, growing prefix of the full trade sequence.
// It never copies trade data; it only narrows the visible bound.
type MarketHistory struct {
	trades []Trade
	n      int
}

// NewMarketHistory returns a view over the first n trades of the sequence.
func NewMarketHistory(trades []Trade, n int) MarketHistory {
	if n < 0 {
		n = 0
	}
	if n > len(trades) {
		n = len(trades)
	}
	return MarketHistory{trades: trades, n: n}
}

// Len returns the number of trades visible through the view.
func (h MarketHistory) Len() int {
	return h.n
}

// Empty reports whether no trade has printed yet.
func (h MarketHistory) Empty() bool {
	return h.n == 0
}

// At returns the i-th visible trade. The caller must ensure 0 <= i < Len().
func (h MarketHistory) At(i int) Trade {
	return h.trades[i]
}

// Last returns the most recent visible trade and false when the view is empty.
func (h MarketHistory) Last() (Trade, bool) {
	if h.n == 0 {
		return Trade{}, false
	}
	return h.trades[h.n-1], true
}

// LastPrice returns the most recent trade price, or 0 when no trade has
// printed yet.
func (h MarketHistory) LastPrice() float64 {
	if h.n == 0 {
		return 0
	}
	return h.trades[h.n-1].Price
}
