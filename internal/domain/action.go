package domain

// Side indicates whether an order buys or sells the asset.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ActionKind enumerates the closed set of strategy action variants.
type ActionKind string

const (
	ActionHold   ActionKind = "hold"
	ActionMarket ActionKind = "market"
	ActionLimit  ActionKind = "limit"
	ActionStop   ActionKind = "stop"
	ActionCancel ActionKind = "cancel"
)

// ActionState tracks the lifecycle of an action through the engine.
//
//	Created -> Processed | Error | Pending
//	Pending -> Processed | Cancelled
//
// Processed, Error, and Cancelled are terminal. Pending is the only state
// that survives across timesteps.
type ActionState string

const (
	StateCreated   ActionState = "created"
	StateProcessed ActionState = "processed"
	StatePending   ActionState = "pending"
	StateCancelled ActionState = "cancelled"
	StateError     ActionState = "error"
)

// Terminal reports whether the state admits no further transitions.
func (s ActionState) Terminal() bool {
	switch s {
	case StateProcessed, StateError, StateCancelled:
		return true
	default:
		return false
	}
}

// Action is a single strategy decision: a tagged variant over the closed
// kind set. Fields beyond Kind are meaningful per kind:
//
//	Hold    — nothing
//	Market  — Side, Quantity
//	Limit   — Side, Quantity, Price (limit price)
//	Stop    — Side, Quantity, Price (trigger price)
//	Cancel  — TargetID (the resting order to cancel)
//
// ID is zero until the engine moves the action into the pending book; IDs
// are the only handle Cancel can reference.
type Action struct {
	Kind     ActionKind
	Side     Side
	Quantity float64
	Price    float64
	TargetID int64

	ID int64
}

// Hold returns a no-op action.
func Hold() Action {
	return Action{Kind: ActionHold}
}

// NewMarketOrder returns a market order action.
func NewMarketOrder(side Side, quantity float64) Action {
	return Action{Kind: ActionMarket, Side: side, Quantity: quantity}
}

// NewLimitOrder returns a limit order action.
func NewLimitOrder(side Side, quantity, price float64) Action {
	return Action{Kind: ActionLimit, Side: side, Quantity: quantity, Price: price}
}

// NewStopOrder returns a stop order action. Price is a trigger, not an
// execution price.
func NewStopOrder(side Side, quantity, price float64) Action {
	return Action{Kind: ActionStop, Side: side, Quantity: quantity, Price: price}
}

// NewCancel returns a cancel action targeting a resting order by ID.
func NewCancel(targetID int64) Action {
	return Action{Kind: ActionCancel, TargetID: targetID}
}

// Notional returns quantity*price, the gross monetary size of the order.
func (a Action) Notional() float64 {
	return a.Quantity * a.Price
}

// PendingOrder is a resting limit or stop order together with the amount
// reserved against it: the full notional for a buy, the quantity for a
// sell. The engine owns resting orders exclusively; strategies only ever
// see copies.
type PendingOrder struct {
	ID       int64
	Kind     ActionKind // ActionLimit or ActionStop
	Side     Side
	Quantity float64
	Price    float64
	Reserved float64
}
