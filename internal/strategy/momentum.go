package strategy

import (
	"log/slog"
	"math"

	"github.com/quantfall/revival/internal/domain"
)

const (
	defaultMomentumLookback = 10
	defaultBreakout         = 0.01
	defaultMaxDrift         = 0.05
)

// Momentum chases breakouts with resting stop orders: when the price has
// risen over the lookback window it arms a buy stop just above the
// market, so the position is only entered if the move keeps going. Once
// holding, a falling window exits at market. Resting orders that drift
// too far from the market are cancelled.
type Momentum struct {
	cfg      Config
	lookback int
	breakout float64
	maxDrift float64
	logger   *slog.Logger
}

// NewMomentum creates a Momentum strategy. The following keys are read
// from cfg.Params:
//
//   - "lookback" (int): window, in trades, used to measure direction.
//     Defaults to 10.
//   - "breakout" (float64): fractional distance above the market at which
//     the buy stop is armed. Defaults to 0.01.
//   - "max_drift" (float64): fractional distance from the market past
//     which a resting order is cancelled. Defaults to 0.05.
func NewMomentum(cfg Config, logger *slog.Logger) (Strategy, error) {
	m := &Momentum{
		cfg:      cfg,
		lookback: defaultMomentumLookback,
		breakout: defaultBreakout,
		maxDrift: defaultMaxDrift,
		logger:   logger.With(slog.String("strategy", "momentum")),
	}
	if v, ok := cfg.Params["lookback"].(int); ok && v > 0 {
		m.lookback = v
	}
	if v, ok := cfg.Params["breakout"].(float64); ok && v > 0 {
		m.breakout = v
	}
	if v, ok := cfg.Params["max_drift"].(float64); ok && v > 0 {
		m.maxDrift = v
	}
	return m, nil
}

// Name returns the strategy identifier.
func (m *Momentum) Name() string { return "momentum" }

// Decide arms or unwinds the breakout position for the current window.
func (m *Momentum) Decide(p domain.Portfolio, pending []domain.PendingOrder, hist domain.MarketHistory, _ *domain.BookSnapshot) []domain.Action {
	if hist.Len() <= m.lookback {
		return []domain.Action{domain.Hold()}
	}

	price := hist.LastPrice()
	past := hist.At(hist.Len() - 1 - m.lookback).Price

	var acts []domain.Action
	live := 0
	for _, o := range pending {
		if math.Abs(o.Price-price)/price > m.maxDrift {
			m.logger.Debug("cancelling drifted order",
				slog.Int64("order_id", o.ID),
				slog.Float64("order_price", o.Price),
				slog.Float64("price", price),
			)
			acts = append(acts, domain.NewCancel(o.ID))
			continue
		}
		live++
	}

	size := m.cfg.Size
	if size <= 0 {
		size = 1
	}

	switch {
	case price > past && live == 0:
		stop := price * (1 + m.breakout)
		if p.AuthMoney >= size*stop {
			acts = append(acts, domain.NewStopOrder(domain.SideBuy, size, stop))
		}
	case price < past && p.AuthQuantity >= size:
		acts = append(acts, domain.NewMarketOrder(domain.SideSell, size))
	}

	if len(acts) == 0 {
		return []domain.Action{domain.Hold()}
	}
	return acts
}
