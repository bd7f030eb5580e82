package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/revival/internal/domain"
)

type fakeSender struct {
	name   string
	err    error
	titles []string
	bodies []string
}

func (f *fakeSender) Send(_ context.Context, title, message string) error {
	if f.err != nil {
		return f.err
	}
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, message)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestNotifyFiltersEvents(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{EventRunFailed}, discard())

	require.NoError(t, n.Notify(context.Background(), EventRunCompleted, "done", "ok"))
	assert.Empty(t, s.titles)

	require.NoError(t, n.Notify(context.Background(), EventRunFailed, "broken", "boom"))
	assert.Equal(t, []string{"broken"}, s.titles)
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, discard())

	require.NoError(t, n.Notify(context.Background(), "anything", "t", "m"))
	assert.Len(t, s.titles, 1)
}

func TestDispatchCollectsSenderErrors(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("unreachable")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.NotifyAll(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	// The failing sender must not block delivery to the healthy one.
	assert.Len(t, good.titles, 1)
}

func TestRunCompletedMessage(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{EventRunCompleted, EventRunFailed}, discard())

	run := domain.Run{
		ID:         "run-1",
		Label:      "overnight",
		Strategy:   "momentum",
		Mode:       "both",
		Timesteps:  120,
		StartMoney: 10_000,
	}
	require.NoError(t, n.RunCompleted(context.Background(), run, 10_450.5))

	require.Len(t, s.titles, 1)
	assert.Equal(t, "Run overnight completed", s.titles[0])
	assert.Contains(t, s.bodies[0], "momentum")
	assert.Contains(t, s.bodies[0], "10450.50")
}

func TestRunFailedMessage(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, discard())

	run := domain.Run{ID: "run-2", Label: "bad data", Strategy: "hold", Mode: "market_driven"}
	require.NoError(t, n.RunFailed(context.Background(), run, errors.New("trades out of order")))

	require.Len(t, s.titles, 1)
	assert.Equal(t, "Run bad data failed", s.titles[0])
	assert.Contains(t, s.bodies[0], "trades out of order")
}

func TestEnabled(t *testing.T) {
	assert.False(t, NewNotifier(nil, nil, discard()).Enabled())
	assert.True(t, NewNotifier([]Sender{&fakeSender{name: "x"}}, nil, discard()).Enabled())
}
