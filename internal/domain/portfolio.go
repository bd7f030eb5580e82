package domain

// Portfolio is the simulated account state. Auth fields are immediately
// spendable; pending fields are reserved against resting orders. All four
// fields stay non-negative: a rejected action never mutates any of them.
type Portfolio struct {
	AuthMoney       float64
	PendingMoney    float64
	AuthQuantity    float64
	PendingQuantity float64
}

// Value returns the total portfolio value at the given trade price:
// all money plus all quantity marked at price.
func (p Portfolio) Value(price float64) float64 {
	return p.AuthMoney + p.PendingMoney + (p.AuthQuantity+p.PendingQuantity)*price
}
