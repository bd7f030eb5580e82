// Package sim contains the matching and portfolio engine: it replays the
// decision timeline, applies strategy actions under fee and reservation
// rules, and re-evaluates resting orders against each new trade price.
package sim

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfall/revival/internal/domain"
	"github.com/quantfall/revival/internal/strategy"
)

// Config is the engine's configuration surface: the starting portfolio
// and the two fee rates, each a fraction in [0, 1).
type Config struct {
	MakerFee float64
	TakerFee float64
	Start    domain.Portfolio
}

// Validate checks fee ranges and starting balances.
func (c Config) Validate() error {
	if c.MakerFee < 0 || c.MakerFee >= 1 {
		return fmt.Errorf("sim: maker fee %v out of [0,1): %w", c.MakerFee, domain.ErrInvalidParameters)
	}
	if c.TakerFee < 0 || c.TakerFee >= 1 {
		return fmt.Errorf("sim: taker fee %v out of [0,1): %w", c.TakerFee, domain.ErrInvalidParameters)
	}
	if c.Start.AuthMoney < 0 || c.Start.PendingMoney < 0 || c.Start.AuthQuantity < 0 || c.Start.PendingQuantity < 0 {
		return fmt.Errorf("sim: negative starting balance: %w", domain.ErrInvalidParameters)
	}
	return nil
}

// Observer receives engine notifications as the replay advances. The
// engine runs on a single goroutine and never locks; an observer that
// lives on another goroutine must do its own hand-off.
type Observer interface {
	OrderEvent(ev domain.OrderEvent)
	ValueSample(s domain.ValueSample)
}

// Engine owns the portfolio, the pending book, and the order ID counter
// for the duration of one run. It is not safe for concurrent use.
type Engine struct {
	log      *slog.Logger
	makerFee float64
	takerFee float64

	portfolio domain.Portfolio
	pending   *PendingBook
	lastID    int64

	runID string
	obs   Observer
}

// NewEngine builds an engine from a validated config.
func NewEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		log:       logger.With(slog.String("component", "engine")),
		makerFee:  cfg.MakerFee,
		takerFee:  cfg.TakerFee,
		portfolio: cfg.Start,
		pending:   NewPendingBook(),
	}, nil
}

// SetObserver attaches an observer; events carry runID. Passing nil
// detaches.
func (e *Engine) SetObserver(runID string, obs Observer) {
	e.runID = runID
	e.obs = obs
}

// Portfolio returns a snapshot of the current portfolio.
func (e *Engine) Portfolio() domain.Portfolio {
	return e.portfolio
}

// Pending returns a copy of the currently resting orders.
func (e *Engine) Pending() []domain.PendingOrder {
	return e.pending.Orders()
}

// Run drives the strategy over the full timestep sequence and returns the
// portfolio value series, one sample per timestep. A run always completes
// the whole sequence: bad actions are rejected one-shot, never fatal.
func (e *Engine) Run(steps []domain.Timestep, strat strategy.Strategy) []domain.ValueSample {
	e.log.Info("replay started",
		slog.String("strategy", strat.Name()),
		slog.Int("timesteps", len(steps)),
	)
	series := make([]domain.ValueSample, 0, len(steps))
	for seq, step := range steps {
		series = append(series, e.Step(seq, step, strat))
	}
	e.log.Info("replay finished",
		slog.String("strategy", strat.Name()),
		slog.Int("pending_left", e.pending.Len()),
		slog.Float64("final_value", e.portfolio.Value(lastPrice(steps))),
	)
	return series
}

func lastPrice(steps []domain.Timestep) float64 {
	if len(steps) == 0 {
		return 0
	}
	return steps[len(steps)-1].History.LastPrice()
}

// Step processes one decision point: strategy call, action application in
// returned order, resting-order sweep against the updated price, then the
// value sample.
func (e *Engine) Step(seq int, step domain.Timestep, strat strategy.Strategy) domain.ValueSample {
	actions := strat.Decide(e.portfolio, e.pending.Orders(), step.History, step.Book)

	price := step.History.LastPrice()
	for _, act := range actions {
		e.apply(act, price, step)
	}
	if !step.History.Empty() {
		e.sweep(price, step.Timestamp)
	}

	sample := domain.ValueSample{
		RunID:     e.runID,
		Seq:       seq,
		Timestamp: step.Timestamp,
		Value:     e.portfolio.Value(price),
	}
	if e.obs != nil {
		e.obs.ValueSample(sample)
	}
	return sample
}

func (e *Engine) apply(act domain.Action, price float64, step domain.Timestep) {
	switch act.Kind {
	case domain.ActionHold:
		return
	case domain.ActionCancel:
		e.applyCancel(act, step.Timestamp)
		return
	}

	// Market, limit, and stop orders all execute against the latest
	// trade price, so a timestep with no printed trade rejects them.
	if step.History.Empty() {
		e.reject(act, step.Timestamp, domain.ErrInvalidParameters)
		return
	}
	if act.Quantity < 0 || act.Price < 0 {
		e.reject(act, step.Timestamp, domain.ErrInvalidParameters)
		return
	}
	if act.Side != domain.SideBuy && act.Side != domain.SideSell {
		e.reject(act, step.Timestamp, domain.ErrInvalidParameters)
		return
	}

	switch act.Kind {
	case domain.ActionMarket:
		e.applyMarket(act, price, step.Timestamp)
	case domain.ActionLimit:
		e.applyLimit(act, price, step.Timestamp)
	case domain.ActionStop:
		e.applyStop(act, price, step.Timestamp)
	default:
		e.reject(act, step.Timestamp, domain.ErrInvalidParameters)
	}
}

func (e *Engine) applyMarket(act domain.Action, price float64, ts time.Time) {
	switch act.Side {
	case domain.SideBuy:
		notional := act.Quantity * price
		if notional > e.portfolio.AuthMoney {
			e.reject(act, ts, domain.ErrInsufficientFunds)
			return
		}
		received := act.Quantity * (1 - e.takerFee)
		e.portfolio.AuthMoney -= notional
		e.portfolio.AuthQuantity += received
		e.processed(act, ts, received, price, notional)
	case domain.SideSell:
		if act.Quantity > e.portfolio.AuthQuantity {
			e.reject(act, ts, domain.ErrInsufficientQuantity)
			return
		}
		proceeds := act.Quantity * price * (1 - e.takerFee)
		e.portfolio.AuthQuantity -= act.Quantity
		e.portfolio.AuthMoney += proceeds
		e.processed(act, ts, act.Quantity, price, proceeds)
	}
}

// applyLimit fills immediately, at the limit price with the taker fee,
// when the limit already crosses the trade price. Otherwise the full
// notional (buy) or quantity (sell) is reserved and the order rests.
func (e *Engine) applyLimit(act domain.Action, price float64, ts time.Time) {
	switch act.Side {
	case domain.SideBuy:
		notional := act.Notional()
		if notional > e.portfolio.AuthMoney {
			e.reject(act, ts, domain.ErrInsufficientFunds)
			return
		}
		if price <= act.Price {
			received := act.Quantity * (1 - e.takerFee)
			e.portfolio.AuthMoney -= notional
			e.portfolio.AuthQuantity += received
			e.processed(act, ts, received, act.Price, notional)
			return
		}
		e.portfolio.AuthMoney -= notional
		e.portfolio.PendingMoney += notional
		e.rest(act, ts, notional)
	case domain.SideSell:
		if act.Quantity > e.portfolio.AuthQuantity {
			e.reject(act, ts, domain.ErrInsufficientQuantity)
			return
		}
		if price >= act.Price {
			proceeds := act.Notional() * (1 - e.takerFee)
			e.portfolio.AuthQuantity -= act.Quantity
			e.portfolio.AuthMoney += proceeds
			e.processed(act, ts, act.Quantity, act.Price, proceeds)
			return
		}
		e.portfolio.AuthQuantity -= act.Quantity
		e.portfolio.PendingQuantity += act.Quantity
		e.rest(act, ts, act.Quantity)
	}
}

// applyStop mirrors applyLimit with the trigger direction inverted. The
// stop price is a trigger, not an execution price: a triggered buy spends
// its reserved notional at the current trade price, so the executed
// quantity is recomputed from the reservation.
func (e *Engine) applyStop(act domain.Action, price float64, ts time.Time) {
	switch act.Side {
	case domain.SideBuy:
		notional := act.Notional()
		if notional > e.portfolio.AuthMoney {
			e.reject(act, ts, domain.ErrInsufficientFunds)
			return
		}
		if price >= act.Price {
			received := notional / price * (1 - e.takerFee)
			e.portfolio.AuthMoney -= notional
			e.portfolio.AuthQuantity += received
			e.processed(act, ts, received, price, notional)
			return
		}
		e.portfolio.AuthMoney -= notional
		e.portfolio.PendingMoney += notional
		e.rest(act, ts, notional)
	case domain.SideSell:
		if act.Quantity > e.portfolio.AuthQuantity {
			e.reject(act, ts, domain.ErrInsufficientQuantity)
			return
		}
		if price <= act.Price {
			proceeds := act.Quantity * price * (1 - e.takerFee)
			e.portfolio.AuthQuantity -= act.Quantity
			e.portfolio.AuthMoney += proceeds
			e.processed(act, ts, act.Quantity, price, proceeds)
			return
		}
		e.portfolio.AuthQuantity -= act.Quantity
		e.portfolio.PendingQuantity += act.Quantity
		e.rest(act, ts, act.Quantity)
	}
}

// applyCancel restores the reserved amount in full, fee-free, and removes
// the target from the pending book.
func (e *Engine) applyCancel(act domain.Action, ts time.Time) {
	order, ok := e.pending.Remove(act.TargetID)
	if !ok {
		e.reject(act, ts, domain.ErrUnknownOrderID)
		return
	}
	switch order.Side {
	case domain.SideBuy:
		e.portfolio.PendingMoney -= order.Reserved
		e.portfolio.AuthMoney += order.Reserved
	case domain.SideSell:
		e.portfolio.PendingQuantity -= order.Reserved
		e.portfolio.AuthQuantity += order.Reserved
	}
	e.emit(domain.OrderEvent{
		RunID:     e.runID,
		Timestamp: ts,
		State:     domain.StateCancelled,
		Kind:      order.Kind,
		Side:      order.Side,
		Quantity:  order.Quantity,
		Price:     order.Price,
		OrderID:   order.ID,
	})
	e.processed(act, ts, 0, 0, 0)
}

// sweep re-evaluates every resting order, including ones that rested this
// same timestep, against the latest trade price. Fills here use the maker
// fee: the order rested and added liquidity.
func (e *Engine) sweep(price float64, ts time.Time) {
	e.pending.Sweep(func(o domain.PendingOrder) bool {
		switch {
		case o.Kind == domain.ActionLimit && o.Side == domain.SideBuy && price <= o.Price:
			received := o.Quantity * (1 - e.makerFee)
			e.portfolio.PendingMoney -= o.Reserved
			e.portfolio.AuthQuantity += received
			e.filled(o, ts, received, o.Price, o.Reserved)
		case o.Kind == domain.ActionLimit && o.Side == domain.SideSell && price >= o.Price:
			proceeds := o.Quantity * o.Price * (1 - e.makerFee)
			e.portfolio.PendingQuantity -= o.Reserved
			e.portfolio.AuthMoney += proceeds
			e.filled(o, ts, o.Quantity, o.Price, proceeds)
		case o.Kind == domain.ActionStop && o.Side == domain.SideBuy && price >= o.Price:
			received := o.Reserved / price * (1 - e.makerFee)
			e.portfolio.PendingMoney -= o.Reserved
			e.portfolio.AuthQuantity += received
			e.filled(o, ts, received, price, o.Reserved)
		case o.Kind == domain.ActionStop && o.Side == domain.SideSell && price <= o.Price:
			proceeds := o.Quantity * price * (1 - e.makerFee)
			e.portfolio.PendingQuantity -= o.Reserved
			e.portfolio.AuthMoney += proceeds
			e.filled(o, ts, o.Quantity, price, proceeds)
		default:
			return false
		}
		return true
	})
}

// nextOrderID hands out process-unique resting-order IDs, starting at 1.
func (e *Engine) nextOrderID() int64 {
	e.lastID++
	return e.lastID
}

func (e *Engine) rest(act domain.Action, ts time.Time, reserved float64) {
	order := domain.PendingOrder{
		ID:       e.nextOrderID(),
		Kind:     act.Kind,
		Side:     act.Side,
		Quantity: act.Quantity,
		Price:    act.Price,
		Reserved: reserved,
	}
	e.pending.Add(order)
	e.emit(domain.OrderEvent{
		RunID:     e.runID,
		Timestamp: ts,
		State:     domain.StatePending,
		Kind:      act.Kind,
		Side:      act.Side,
		Quantity:  act.Quantity,
		Price:     act.Price,
		OrderID:   order.ID,
	})
}

func (e *Engine) processed(act domain.Action, ts time.Time, execQty, execPrice, execTotal float64) {
	e.emit(domain.OrderEvent{
		RunID:        e.runID,
		Timestamp:    ts,
		State:        domain.StateProcessed,
		Kind:         act.Kind,
		Side:         act.Side,
		Quantity:     act.Quantity,
		Price:        act.Price,
		TargetID:     act.TargetID,
		ExecQuantity: execQty,
		ExecPrice:    execPrice,
		ExecTotal:    execTotal,
	})
}

func (e *Engine) filled(o domain.PendingOrder, ts time.Time, execQty, execPrice, execTotal float64) {
	e.emit(domain.OrderEvent{
		RunID:        e.runID,
		Timestamp:    ts,
		State:        domain.StateProcessed,
		Kind:         o.Kind,
		Side:         o.Side,
		Quantity:     o.Quantity,
		Price:        o.Price,
		OrderID:      o.ID,
		ExecQuantity: execQty,
		ExecPrice:    execPrice,
		ExecTotal:    execTotal,
	})
}

// reject records the one-shot failure and leaves the portfolio untouched.
func (e *Engine) reject(act domain.Action, ts time.Time, err error) {
	e.log.Debug("action rejected",
		slog.String("kind", string(act.Kind)),
		slog.String("side", string(act.Side)),
		slog.Float64("quantity", act.Quantity),
		slog.Float64("price", act.Price),
		slog.String("reason", err.Error()),
	)
	e.emit(domain.OrderEvent{
		RunID:     e.runID,
		Timestamp: ts,
		State:     domain.StateError,
		Kind:      act.Kind,
		Side:      act.Side,
		Quantity:  act.Quantity,
		Price:     act.Price,
		TargetID:  act.TargetID,
		Reason:    err.Error(),
	})
}

func (e *Engine) emit(ev domain.OrderEvent) {
	if e.obs != nil {
		e.obs.OrderEvent(ev)
	}
}
