package domain

import "time"

// Run records one completed (or failed) replay of a data set through a
// strategy.
type Run struct {
	ID            string // UUID
	Label         string
	Strategy      string
	Mode          string // timestep mode used to build the timeline
	MakerFee      float64
	TakerFee      float64
	StartMoney    float64
	StartQuantity float64
	Final         Portfolio
	Timesteps     int
	Status        string // "completed" or "failed"
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Run statuses.
const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ValueSample is one portfolio-value observation, one per timestep.
type ValueSample struct {
	RunID     string
	Seq       int
	Timestamp time.Time
	Value     float64
}

// OrderEvent is an order-lifecycle audit record: one per state transition,
// with enough data to reconstruct the trail.
type OrderEvent struct {
	RunID     string
	Timestamp time.Time // timestep timestamp, not wall clock
	State     ActionState
	Kind      ActionKind
	Side      Side
	Quantity  float64
	Price     float64
	OrderID   int64  // assigned order ID, 0 if never pending
	TargetID  int64  // cancel target, 0 otherwise
	Reason    string // rejection reason, set only on Error

	// Execution details, set only on Processed fills.
	ExecQuantity float64
	ExecPrice    float64
	ExecTotal    float64
}
