package strategy

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/revival/internal/domain"
)

func histAtPrices(prices ...float64) domain.MarketHistory {
	trades := make([]domain.Trade, len(prices))
	for i, p := range prices {
		trades[i] = domain.Trade{ID: int64(i + 1), Price: p, Quantity: 1, Timestamp: time.Unix(int64(i+1), 0).UTC()}
	}
	return domain.NewMarketHistory(trades, len(trades))
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"hold", "mean_reversion", "momentum"}, r.List())

	s, err := r.Build("hold", Config{}, discard())
	require.NoError(t, err)
	assert.Equal(t, "hold", s.Name())

	_, err = r.Build("martingale", Config{}, discard())
	require.Error(t, err)
}

func TestHoldingNeverTrades(t *testing.T) {
	s := NewHold()
	acts := s.Decide(domain.Portfolio{AuthMoney: 1000}, nil, histAtPrices(100, 90, 80), domain.InitialBook())
	require.Len(t, acts, 1)
	assert.Equal(t, domain.ActionHold, acts[0].Kind)
}

func TestMeanReversionBuysBelowMean(t *testing.T) {
	s, err := NewMeanReversion(Config{Size: 2, Params: map[string]any{
		"lookback":          4,
		"std_dev_threshold": 1.0,
	}}, discard())
	require.NoError(t, err)

	// Stable around 100, then a sharp drop.
	hist := histAtPrices(100, 101, 99, 80)
	acts := s.Decide(domain.Portfolio{AuthMoney: 10000}, nil, hist, domain.InitialBook())
	require.Len(t, acts, 1)
	assert.Equal(t, domain.ActionMarket, acts[0].Kind)
	assert.Equal(t, domain.SideBuy, acts[0].Side)
	assert.Equal(t, 2.0, acts[0].Quantity)
}

func TestMeanReversionSellsAboveMean(t *testing.T) {
	s, err := NewMeanReversion(Config{Size: 1, Params: map[string]any{
		"lookback":          4,
		"std_dev_threshold": 1.0,
	}}, discard())
	require.NoError(t, err)

	hist := histAtPrices(100, 101, 99, 130)
	acts := s.Decide(domain.Portfolio{AuthQuantity: 5}, nil, hist, domain.InitialBook())
	require.Len(t, acts, 1)
	assert.Equal(t, domain.SideSell, acts[0].Side)
}

func TestMeanReversionHoldsOnShortHistory(t *testing.T) {
	s, err := NewMeanReversion(Config{}, discard())
	require.NoError(t, err)

	acts := s.Decide(domain.Portfolio{AuthMoney: 1000}, nil, histAtPrices(100, 101), domain.InitialBook())
	require.Len(t, acts, 1)
	assert.Equal(t, domain.ActionHold, acts[0].Kind)
}

func TestMomentumArmsBuyStopOnRise(t *testing.T) {
	s, err := NewMomentum(Config{Size: 1, Params: map[string]any{
		"lookback": 2,
		"breakout": 0.02,
	}}, discard())
	require.NoError(t, err)

	hist := histAtPrices(100, 102, 105)
	acts := s.Decide(domain.Portfolio{AuthMoney: 1000}, nil, hist, domain.InitialBook())
	require.Len(t, acts, 1)
	assert.Equal(t, domain.ActionStop, acts[0].Kind)
	assert.Equal(t, domain.SideBuy, acts[0].Side)
	assert.InDelta(t, 105*1.02, acts[0].Price, 1e-9)
}

func TestMomentumSellsOnFall(t *testing.T) {
	s, err := NewMomentum(Config{Size: 1, Params: map[string]any{"lookback": 2}}, discard())
	require.NoError(t, err)

	hist := histAtPrices(105, 102, 100)
	acts := s.Decide(domain.Portfolio{AuthQuantity: 3}, nil, hist, domain.InitialBook())
	require.Len(t, acts, 1)
	assert.Equal(t, domain.ActionMarket, acts[0].Kind)
	assert.Equal(t, domain.SideSell, acts[0].Side)
}

func TestMomentumCancelsDriftedOrders(t *testing.T) {
	s, err := NewMomentum(Config{Size: 1, Params: map[string]any{
		"lookback":  2,
		"max_drift": 0.03,
	}}, discard())
	require.NoError(t, err)

	pending := []domain.PendingOrder{
		{ID: 7, Kind: domain.ActionStop, Side: domain.SideBuy, Quantity: 1, Price: 140},
	}
	hist := histAtPrices(105, 102, 100)
	acts := s.Decide(domain.Portfolio{AuthQuantity: 1}, pending, hist, domain.InitialBook())
	require.Len(t, acts, 2)
	assert.Equal(t, domain.ActionCancel, acts[0].Kind)
	assert.Equal(t, int64(7), acts[0].TargetID)
	assert.Equal(t, domain.SideSell, acts[1].Side)
}
