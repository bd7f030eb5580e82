// Package timeline merges the trade and order-book sequences into the
// ordered decision timeline the replay engine iterates.
package timeline

import (
	"fmt"
	"time"

	"github.com/quantfall/revival/internal/domain"
)

// Mode selects how the two event sources drive timestep emission.
type Mode string

const (
	// ModeBoth emits one timestep per event from either source, merged
	// by timestamp with trades winning exact ties.
	ModeBoth Mode = "both"
	// ModeOrderBookDriven emits exactly one timestep per snapshot.
	ModeOrderBookDriven Mode = "order_book_driven"
	// ModeMarketDriven emits one timestep per trade, stamped one
	// millisecond after the trade so the synthetic ticks never collide
	// with the snapshot timeline.
	ModeMarketDriven Mode = "market_driven"
)

// marketTick is the offset applied to trade timestamps in market-driven
// mode.
const marketTick = time.Millisecond

// ParseMode maps a configuration string onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBoth, ModeOrderBookDriven, ModeMarketDriven:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("timeline: unknown mode %q: %w", s, domain.ErrInvalidParameters)
	}
}

// Build computes the full timestep sequence eagerly. Both inputs must be
// ascending by timestamp; ingestion enforces that before data reaches
// here. The returned slice is never regenerated or mutated during a run.
func Build(trades []domain.Trade, books []domain.BookSnapshot, mode Mode) ([]domain.Timestep, error) {
	switch mode {
	case ModeBoth:
		return buildBoth(trades, books), nil
	case ModeOrderBookDriven:
		return buildBookDriven(trades, books), nil
	case ModeMarketDriven:
		return buildMarketDriven(trades, books), nil
	default:
		return nil, fmt.Errorf("timeline: unknown mode %q: %w", mode, domain.ErrInvalidParameters)
	}
}

// buildBoth two-pointer merges the sequences by timestamp. On an exact
// tie the trade-driven timestep is emitted first. Trade-driven timesteps
// before the first snapshot carry the initial empty book.
func buildBoth(trades []domain.Trade, books []domain.BookSnapshot) []domain.Timestep {
	steps := make([]domain.Timestep, 0, len(trades)+len(books))
	book := domain.InitialBook()
	ti, bi := 0, 0
	for ti < len(trades) || bi < len(books) {
		tradeNext := bi >= len(books) ||
			(ti < len(trades) && !trades[ti].Timestamp.After(books[bi].Timestamp))
		if tradeNext {
			ti++
			steps = append(steps, domain.Timestep{
				Timestamp: trades[ti-1].Timestamp,
				History:   domain.NewMarketHistory(trades, ti),
				Book:      book,
			})
		} else {
			book = &books[bi]
			steps = append(steps, domain.Timestep{
				Timestamp: book.Timestamp,
				History:   domain.NewMarketHistory(trades, ti),
				Book:      book,
			})
			bi++
		}
	}
	return steps
}

// buildBookDriven emits one timestep per snapshot. The trade cursor only
// ever moves forward, so prefix lengths are non-decreasing.
func buildBookDriven(trades []domain.Trade, books []domain.BookSnapshot) []domain.Timestep {
	steps := make([]domain.Timestep, 0, len(books))
	ti := 0
	for bi := range books {
		for ti < len(trades) && !trades[ti].Timestamp.After(books[bi].Timestamp) {
			ti++
		}
		steps = append(steps, domain.Timestep{
			Timestamp: books[bi].Timestamp,
			History:   domain.NewMarketHistory(trades, ti),
			Book:      &books[bi],
		})
	}
	return steps
}

// buildMarketDriven emits one timestep per trade at the trade timestamp
// plus one tick. Each timestep carries the book known before the
// snapshot cursor advanced past the synthetic timestamp. With no trades
// at all a single degenerate timestep is emitted so a run still has one
// decision point.
func buildMarketDriven(trades []domain.Trade, books []domain.BookSnapshot) []domain.Timestep {
	if len(trades) == 0 {
		return []domain.Timestep{{
			Timestamp: domain.InitialBook().Timestamp,
			History:   domain.NewMarketHistory(trades, 0),
			Book:      domain.InitialBook(),
		}}
	}
	steps := make([]domain.Timestep, 0, len(trades))
	book := domain.InitialBook()
	bi := 0
	for ti := range trades {
		ts := trades[ti].Timestamp.Add(marketTick)
		known := book
		for bi < len(books) && !books[bi].Timestamp.After(ts) {
			book = &books[bi]
			bi++
		}
		steps = append(steps, domain.Timestep{
			Timestamp: ts,
			History:   domain.NewMarketHistory(trades, ti+1),
			Book:      known,
		})
	}
	return steps
}
