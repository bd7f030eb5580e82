package notify

import (
	"context"
	"fmt"

	"github.com/quantfall/revival/internal/domain"
)

// Event types emitted by the replay service.
const (
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"
)

// RunCompleted notifies operators that a replay finished, with the final
// portfolio summary.
func (n *Notifier) RunCompleted(ctx context.Context, run domain.Run, finalValue float64) error {
	title := fmt.Sprintf("Run %s completed", run.Label)
	message := fmt.Sprintf(
		"id: %s\nstrategy: %s (%s)\ntimesteps: %d\nstart money: %.2f\nfinal value: %.2f",
		run.ID, run.Strategy, run.Mode, run.Timesteps, run.StartMoney, finalValue,
	)
	return n.Notify(ctx, EventRunCompleted, title, message)
}

// RunFailed notifies operators that a replay did not finish.
func (n *Notifier) RunFailed(ctx context.Context, run domain.Run, cause error) error {
	title := fmt.Sprintf("Run %s failed", run.Label)
	message := fmt.Sprintf("id: %s\nstrategy: %s (%s)\nerror: %v", run.ID, run.Strategy, run.Mode, cause)
	return n.Notify(ctx, EventRunFailed, title, message)
}
