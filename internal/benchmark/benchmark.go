// Package benchmark computes hindsight baselines for a finished timeline:
// upper and lower bounds on what any strategy could have achieved, plus a
// coin-flip trajectory and descriptive trade statistics.
package benchmark

import (
	"math"
	"math/rand"

	"github.com/quantfall/revival/internal/domain"
)

// Series holds the three baseline trajectories, one value per timestep.
// All three start from the same initial money.
type Series struct {
	Best   []float64
	Worst  []float64
	Random []float64
}

// Compute walks the timestep sequence once. Between consecutive timesteps
// the running value compounds by nextPrice/currentPrice: best only on up
// moves, worst only on down moves, random on a coin flip. A step with no
// printed trade carries every series forward unchanged. rng may be nil,
// in which case an unseeded source is used.
func Compute(steps []domain.Timestep, startMoney float64, rng *rand.Rand) Series {
	coin := func() bool {
		if rng != nil {
			return rng.Intn(2) == 0
		}
		return rand.Intn(2) == 0
	}

	s := Series{
		Best:   make([]float64, len(steps)),
		Worst:  make([]float64, len(steps)),
		Random: make([]float64, len(steps)),
	}
	best, worst, random := startMoney, startMoney, startMoney
	for i, step := range steps {
		if i > 0 {
			prev := steps[i-1].History.LastPrice()
			cur := step.History.LastPrice()
			if prev > 0 && !step.History.Empty() {
				ratio := cur / prev
				if ratio >= 1 {
					best *= ratio
				} else {
					worst *= ratio
				}
				if coin() {
					random *= ratio
				}
			}
		}
		s.Best[i] = best
		s.Worst[i] = worst
		s.Random[i] = random
	}
	return s
}

// Stats holds mean and sample standard deviation of trade price and
// quantity over a full trade history.
type Stats struct {
	Count          int
	PriceMean      float64
	PriceStdDev    float64
	QuantityMean   float64
	QuantityStdDev float64
}

// Describe computes Stats over every trade visible in the history. With
// fewer than two trades the standard deviations are zero.
func Describe(hist domain.MarketHistory) Stats {
	n := hist.Len()
	st := Stats{Count: n}
	if n == 0 {
		return st
	}

	var priceSum, qtySum float64
	for i := 0; i < n; i++ {
		tr := hist.At(i)
		priceSum += tr.Price
		qtySum += tr.Quantity
	}
	st.PriceMean = priceSum / float64(n)
	st.QuantityMean = qtySum / float64(n)
	if n < 2 {
		return st
	}

	var priceVar, qtyVar float64
	for i := 0; i < n; i++ {
		tr := hist.At(i)
		priceVar += (tr.Price - st.PriceMean) * (tr.Price - st.PriceMean)
		qtyVar += (tr.Quantity - st.QuantityMean) * (tr.Quantity - st.QuantityMean)
	}
	st.PriceStdDev = math.Sqrt(priceVar / float64(n-1))
	st.QuantityStdDev = math.Sqrt(qtyVar / float64(n-1))
	return st
}
