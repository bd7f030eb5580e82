package sim

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/revival/internal/domain"
)

// scripted replays a fixed list of actions, one batch per timestep.
type scripted struct {
	batches [][]domain.Action
	i       int
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Decide(domain.Portfolio, []domain.PendingOrder, domain.MarketHistory, *domain.BookSnapshot) []domain.Action {
	if s.i >= len(s.batches) {
		return nil
	}
	batch := s.batches[s.i]
	s.i++
	return batch
}

// recorder captures engine notifications for assertions.
type recorder struct {
	events  []domain.OrderEvent
	samples []domain.ValueSample
}

func (r *recorder) OrderEvent(ev domain.OrderEvent)  { r.events = append(r.events, ev) }
func (r *recorder) ValueSample(s domain.ValueSample) { r.samples = append(r.samples, s) }

func (r *recorder) byState(st domain.ActionState) []domain.OrderEvent {
	var out []domain.OrderEvent
	for _, ev := range r.events {
		if ev.State == st {
			out = append(out, ev)
		}
	}
	return out
}

func stepsAtPrices(prices ...float64) []domain.Timestep {
	trades := make([]domain.Trade, len(prices))
	for i, p := range prices {
		trades[i] = domain.Trade{ID: int64(i + 1), Price: p, Quantity: 1, Timestamp: time.Unix(int64(i+1), 0).UTC()}
	}
	steps := make([]domain.Timestep, len(prices))
	for i := range prices {
		steps[i] = domain.Timestep{
			Timestamp: trades[i].Timestamp,
			History:   domain.NewMarketHistory(trades, i+1),
			Book:      domain.InitialBook(),
		}
	}
	return steps
}

func newTestEngine(t *testing.T, maker, taker float64, start domain.Portfolio) *Engine {
	t.Helper()
	e, err := NewEngine(Config{MakerFee: maker, TakerFee: taker, Start: start}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return e
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{MakerFee: -0.1},
		{MakerFee: 1},
		{TakerFee: -0.1},
		{TakerFee: 1.5},
		{Start: domain.Portfolio{AuthMoney: -1}},
		{Start: domain.Portfolio{PendingQuantity: -0.5}},
	}
	for _, cfg := range bad {
		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidParameters)
	}
	assert.NoError(t, Config{MakerFee: 0.001, TakerFee: 0.002, Start: domain.Portfolio{AuthMoney: 1000}}.Validate())
}

func TestMarketBuyAppliesTakerFeeOnce(t *testing.T) {
	e := newTestEngine(t, 0.001, 0.002, domain.Portfolio{AuthMoney: 1000})
	strat := &scripted{batches: [][]domain.Action{
		{domain.NewMarketOrder(domain.SideBuy, 2)},
	}}

	e.Run(stepsAtPrices(100), strat)

	p := e.Portfolio()
	assert.InDelta(t, 800, p.AuthMoney, 1e-9)
	assert.InDelta(t, 2*(1-0.002), p.AuthQuantity, 1e-9)
	assert.Zero(t, p.PendingMoney)
	assert.Zero(t, p.PendingQuantity)
}

func TestMarketSellAppliesTakerFeeOnce(t *testing.T) {
	e := newTestEngine(t, 0.001, 0.002, domain.Portfolio{AuthMoney: 100, AuthQuantity: 5})
	strat := &scripted{batches: [][]domain.Action{
		{domain.NewMarketOrder(domain.SideSell, 3)},
	}}

	e.Run(stepsAtPrices(50), strat)

	p := e.Portfolio()
	assert.InDelta(t, 100+3*50*(1-0.002), p.AuthMoney, 1e-9)
	assert.InDelta(t, 2, p.AuthQuantity, 1e-9)
}

func TestMarketBuyInsufficientFundsLeavesPortfolioUntouched(t *testing.T) {
	start := domain.Portfolio{AuthMoney: 99.999999, AuthQuantity: 1.23456}
	e := newTestEngine(t, 0, 0.002, start)
	rec := &recorder{}
	e.SetObserver("run-1", rec)
	strat := &scripted{batches: [][]domain.Action{
		{domain.NewMarketOrder(domain.SideBuy, 1)},
	}}

	e.Run(stepsAtPrices(100), strat)

	// Bit-for-bit unchanged, so exact equality, not InDelta.
	assert.Equal(t, start, e.Portfolio())
	errs := rec.byState(domain.StateError)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.ErrInsufficientFunds.Error(), errs[0].Reason)
}

func TestMarketSellInsufficientQuantityRejected(t *testing.T) {
	start := domain.Portfolio{AuthMoney: 10, AuthQuantity: 1}
	e := newTestEngine(t, 0, 0, start)
	rec := &recorder{}
	e.SetObserver("run-1", rec)
	strat := &scripted{batches: [][]domain.Action{
		{domain.NewMarketOrder(domain.SideSell, 2)},
	}}

	e.Run(stepsAtPrices(100), strat)

	assert.Equal(t, start, e.Portfolio())
	require.Len(t, rec.byState(domain.StateError), 1)
}

func TestNegativeQuantityRejected(t *testing.T) {
	start := domain.Portfolio{AuthMoney: 1000}
	e := newTestEngine(t, 0, 0, start)
	rec := &recorder{}
	e.SetObserver("run-1", rec)
	strat := &scripted{batches: [][]domain.Action{
		{
			domain.NewMarketOrder(domain.SideBuy, -1),
			domain.NewLimitOrder(domain.SideBuy, 1, -5),
			domain.NewStopOrder(domain.SideSell, -2, 10),
		},
	}}

	e.Run(stepsAtPrices(100), strat)

	assert.Equal(t, start, e.Portfolio())
	errs := rec.byState(domain.StateError)
	require.Len(t, errs, 3)
	for _, ev := range errs {
		assert.Equal(t, domain.ErrInvalidParameters.Error(), ev.Reason)
	}
}

func TestLimitBuyCrossingFillsAtLimitPriceWithTakerFee(t *testing.T) {
	e := newTestEngine(t, 0.001, 0.002, domain.Portfolio{AuthMoney: 1000})
	strat := &scripted{batches: [][]domain.Action{
		// Trade price 100 <= limit 110: aggressive, fills at the limit.
		{domain.NewLimitOrder(domain.SideBuy, 2, 110)},
	}}

	e.Run(stepsAtPrices(100), strat)

	p := e.Portfolio()
	assert.InDelta(t, 1000-2*110, p.AuthMoney, 1e-9)
	assert.InDelta(t, 2*(1-0.002), p.AuthQuantity, 1e-9)
	assert.Zero(t, p.PendingMoney)
}

func TestLimitBuyRestsThenFillsWithMakerFee(t *testing.T) {
	e := newTestEngine(t, 0.001, 0.002, domain.Portfolio{AuthMoney: 1000})
	rec := &recorder{}
	e.SetObserver("run-1", rec)
	strat := &scripted{batches: [][]domain.Action{
		{domain.NewLimitOrder(domain.SideBuy, 2, 90)}, // price 100, rests
		nil, // price 95, still resting
		nil, // price 88, fills
	}}

	e.Run(stepsAtPrices(100, 95, 88), strat)

	p := e.Portfolio()
	assert.InDelta(t, 1000-2*90, p.AuthMoney, 1e-9)
	assert.Zero(t, p.PendingMoney)
	assert.InDelta(t, 2*(1-0.001), p.AuthQuantity, 1e-9)

	pendings := rec.byState(domain.StatePending)
	require.Len(t, pendings, 1)
	assert.Equal(t, int64(1), pendings[0].OrderID)

	fills := rec.byState(domain.StateProcessed)
	require.Len(t, fills, 1)
	assert.Equal(t, int64(1), fills[0].OrderID)
	assert.InDelta(t, 90, fills[0].ExecPrice, 1e-9)
	assert.InDelta(t, 2*(1-0.001), fills[0].ExecQuantity, 1e-9)
}

func TestLimitSellRestsAndReservesQuantity(t *testing.T) {
	e := newTestEngine(t, 0.001, 0.002, domain.Portfolio{AuthMoney: 0, AuthQuantity: 5})
	strat := &scripted{batches: [][]domain.Action{
		{domain.NewLimitOrder(domain.SideSell, 3, 120)}, // price 100, rests
	}}

	e.Run(stepsAtPrices(100), strat)

	p := e.Portfolio()
	assert.InDelta(t, 2, p.AuthQuantity, 1e-9)
	assert.InDelta(t, 3, p.PendingQuantity, 1e-9)
	assert.Zero(t, p.AuthMoney)
	require.Len(t, e.Pending(), 1)
}

func TestCancelRestoresReservationExactly(t *testing.T) {
	start := domain.Portfolio{AuthMoney: 1000, AuthQuantity: 4}
	e := newTestEngine(t, 0.001, 0.002, start)
	rec := &recorder{}
	e.SetObserver("run-1", rec)
	strat := &scripted{batches: [][]domain.Action{
		{
			domain.NewLimitOrder(domain.SideBuy, 2, 90),   // rests, ID 1
			domain.NewLimitOrder(domain.SideSell, 3, 120), // rests, ID 2
		},
		{domain.NewCancel(1), domain.NewCancel(2)},
	}}

	e.Run(stepsAtPrices(100, 100), strat)

	// Reserve then cancel is fee-free: the portfolio round-trips exactly.
	assert.Equal(t, start, e.Portfolio())
	assert.Empty(t, e.Pending())
	require.Len(t, rec.byState(domain.StateCancelled), 2)
}

func TestCancelUnknownIDRejected(t *testing.T) {
	start := domain.Portfolio{AuthMoney: 100}
	e := newTestEngine(t, 0, 0, start)
	rec := &recorder{}
	e.SetObserver("run-1", rec)
	strat := &scripted{batches: [][]domain.Action{
		{domain.NewCancel(42)},
	}}

	e.Run(stepsAtPrices(100), strat)

	assert.Equal(t, start, e.Portfolio())
	errs := rec.byState(domain.StateError)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.ErrUnknownOrderID.Error(), errs[0].Reason)
}

func TestStopBuyTriggerRecomputesQuantity(t *testing.T) {
	e := newTestEngine(t, 0.001, 0.002, domain.Portfolio{AuthMoney: 1000})
	strat := &scripted{batches: [][]domain.Action{
		{domain.NewStopOrder(domain.SideBuy, 2, 110)}, // price 100, rests with 220 reserved
		nil, // price 115, triggers
	}}

	e.Run(stepsAtPrices(100, 115), strat)

	p := e.Portfolio()
	assert.InDelta(t, 1000-220, p.AuthMoney, 1e-9)
	assert.Zero(t, p.PendingMoney)
	// Reserved notional buys at the trigger-time price, not the stop price.
	assert.InDelta(t, 220/115.0*(1-0.001), p.AuthQuantity, 1e-9)
}

func TestStopBuyImmediateTriggerUsesTakerFee(t *testing.T) {
	e := newTestEngine(t, 0.001, 0.002, domain.Portfolio{AuthMoney: 1000})
	strat := &scripted{batches: [][]domain.Action{
		{domain.NewStopOrder(domain.SideBuy, 2, 90)}, // price 100 >= 90, immediate
	}}

	e.Run(stepsAtPrices(100), strat)

	p := e.Portfolio()
	assert.InDelta(t, 1000-180, p.AuthMoney, 1e-9)
	assert.InDelta(t, 180/100.0*(1-0.002), p.AuthQuantity, 1e-9)
	assert.Zero(t, p.PendingMoney)
}

func TestStopSellTriggerExecutesAtTradePrice(t *testing.T) {
	e := newTestEngine(t, 0.001, 0.002, domain.Portfolio{AuthQuantity: 5})
	strat := &scripted{batches: [][]domain.Action{
		{domain.NewStopOrder(domain.SideSell, 3, 95)}, // price 100, rests
		nil, // price 92, triggers
	}}

	e.Run(stepsAtPrices(100, 92), strat)

	p := e.Portfolio()
	assert.InDelta(t, 2, p.AuthQuantity, 1e-9)
	assert.Zero(t, p.PendingQuantity)
	assert.InDelta(t, 3*92*(1-0.001), p.AuthMoney, 1e-9)
}

func TestPortfolioNeverNegative(t *testing.T) {
	e := newTestEngine(t, 0.001, 0.002, domain.Portfolio{AuthMoney: 500, AuthQuantity: 2})
	strat := &scripted{batches: [][]domain.Action{
		{domain.NewMarketOrder(domain.SideBuy, 100)},  // rejected
		{domain.NewLimitOrder(domain.SideBuy, 4, 90)}, // rests
		{domain.NewMarketOrder(domain.SideSell, 2)},
		{domain.NewStopOrder(domain.SideSell, 10, 50)}, // rejected
		{domain.NewCancel(1)},
	}}

	steps := stepsAtPrices(100, 100, 100, 100, 100)
	for seq, step := range steps {
		e.Step(seq, step, strat)
		p := e.Portfolio()
		assert.GreaterOrEqual(t, p.AuthMoney, 0.0)
		assert.GreaterOrEqual(t, p.PendingMoney, 0.0)
		assert.GreaterOrEqual(t, p.AuthQuantity, 0.0)
		assert.GreaterOrEqual(t, p.PendingQuantity, 0.0)
	}
}

func TestOrderIDsStartAtOneAndIncrement(t *testing.T) {
	e := newTestEngine(t, 0, 0, domain.Portfolio{AuthMoney: 1000, AuthQuantity: 10})
	rec := &recorder{}
	e.SetObserver("run-1", rec)
	strat := &scripted{batches: [][]domain.Action{
		{
			domain.NewLimitOrder(domain.SideBuy, 1, 50),
			domain.NewLimitOrder(domain.SideSell, 1, 200),
			domain.NewStopOrder(domain.SideSell, 1, 40),
		},
	}}

	e.Run(stepsAtPrices(100), strat)

	pendings := rec.byState(domain.StatePending)
	require.Len(t, pendings, 3)
	for i, ev := range pendings {
		assert.Equal(t, int64(i+1), ev.OrderID)
	}
}

func TestOrdersWithoutTradesRejected(t *testing.T) {
	start := domain.Portfolio{AuthMoney: 1000}
	e := newTestEngine(t, 0, 0, start)
	rec := &recorder{}
	e.SetObserver("run-1", rec)
	strat := &scripted{batches: [][]domain.Action{
		{domain.NewMarketOrder(domain.SideBuy, 1), domain.Hold()},
	}}

	// A book snapshot before any trade printed: no price to execute at.
	step := domain.Timestep{
		Timestamp: time.Unix(1, 0).UTC(),
		History:   domain.NewMarketHistory(nil, 0),
		Book:      domain.InitialBook(),
	}
	sample := e.Step(0, step, strat)

	assert.Equal(t, start, e.Portfolio())
	require.Len(t, rec.byState(domain.StateError), 1)
	// No price yet: quantity is marked at zero.
	assert.InDelta(t, 1000, sample.Value, 1e-9)
}

func TestValueSeriesMarksPendingAtLastPrice(t *testing.T) {
	e := newTestEngine(t, 0, 0, domain.Portfolio{AuthMoney: 1000})
	strat := &scripted{batches: [][]domain.Action{
		{domain.NewLimitOrder(domain.SideBuy, 2, 90)}, // reserves 180
	}}

	series := e.Run(stepsAtPrices(100, 110), strat)

	require.Len(t, series, 2)
	// Reserved money still counts toward value.
	assert.InDelta(t, 1000, series[0].Value, 1e-9)
	assert.InDelta(t, 1000, series[1].Value, 1e-9)
	assert.Equal(t, 0, series[0].Seq)
	assert.Equal(t, 1, series[1].Seq)
}
