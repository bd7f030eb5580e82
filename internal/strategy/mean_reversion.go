package strategy

import (
	"log/slog"
	"math"

	"github.com/quantfall/revival/internal/domain"
)

const (
	defaultLookback        = 20
	defaultStdDevThreshold = 2.0
)

// MeanReversion buys when the latest trade price is significantly below
// the trailing mean and sells when it is significantly above.
// "Significantly" is measured in multiples of the trailing sample
// standard deviation.
type MeanReversion struct {
	cfg       Config
	lookback  int
	threshold float64
	logger    *slog.Logger
}

// NewMeanReversion creates a MeanReversion strategy. The following keys
// are read from cfg.Params:
//
//   - "lookback" (int): number of trailing trades used for the mean and
//     deviation. Defaults to 20.
//   - "std_dev_threshold" (float64): number of standard deviations away
//     from the mean before an order is placed. Defaults to 2.0.
func NewMeanReversion(cfg Config, logger *slog.Logger) (Strategy, error) {
	mr := &MeanReversion{
		cfg:       cfg,
		lookback:  defaultLookback,
		threshold: defaultStdDevThreshold,
		logger:    logger.With(slog.String("strategy", "mean_reversion")),
	}
	if v, ok := cfg.Params["lookback"].(int); ok && v > 1 {
		mr.lookback = v
	}
	if v, ok := cfg.Params["std_dev_threshold"].(float64); ok && v > 0 {
		mr.threshold = v
	}
	return mr, nil
}

// Name returns the strategy identifier.
func (mr *MeanReversion) Name() string { return "mean_reversion" }

// Decide evaluates whether the latest price deviates enough from the
// trailing average to warrant a buy or sell.
func (mr *MeanReversion) Decide(p domain.Portfolio, _ []domain.PendingOrder, hist domain.MarketHistory, _ *domain.BookSnapshot) []domain.Action {
	if hist.Len() < mr.lookback {
		return []domain.Action{domain.Hold()}
	}

	mean, std := trailingPriceStats(hist, mr.lookback)
	if std == 0 {
		return []domain.Action{domain.Hold()}
	}

	size := mr.cfg.Size
	if size <= 0 {
		size = 1
	}
	price := hist.LastPrice()
	dev := (price - mean) / std

	switch {
	case dev <= -mr.threshold && p.AuthMoney >= size*price:
		mr.logger.Debug("buying below mean",
			slog.Float64("price", price),
			slog.Float64("mean", mean),
			slog.Float64("deviation", dev),
		)
		return []domain.Action{domain.NewMarketOrder(domain.SideBuy, size)}
	case dev >= mr.threshold && p.AuthQuantity >= size:
		mr.logger.Debug("selling above mean",
			slog.Float64("price", price),
			slog.Float64("mean", mean),
			slog.Float64("deviation", dev),
		)
		return []domain.Action{domain.NewMarketOrder(domain.SideSell, size)}
	}
	return []domain.Action{domain.Hold()}
}

// trailingPriceStats returns mean and sample standard deviation over the
// last n visible trades.
func trailingPriceStats(hist domain.MarketHistory, n int) (mean, std float64) {
	start := hist.Len() - n
	var sum float64
	for i := start; i < hist.Len(); i++ {
		sum += hist.At(i).Price
	}
	mean = sum / float64(n)

	var varSum float64
	for i := start; i < hist.Len(); i++ {
		d := hist.At(i).Price - mean
		varSum += d * d
	}
	return mean, math.Sqrt(varSum / float64(n-1))
}
