package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/revival/internal/domain"
	"github.com/quantfall/revival/internal/strategy"
)

type fakeRunStore struct {
	created  []domain.Run
	finished []domain.Run
	values   []domain.ValueSample
}

func (f *fakeRunStore) Create(_ context.Context, run domain.Run) error {
	f.created = append(f.created, run)
	return nil
}

func (f *fakeRunStore) Finish(_ context.Context, run domain.Run) error {
	f.finished = append(f.finished, run)
	return nil
}

func (f *fakeRunStore) GetByID(_ context.Context, id string) (domain.Run, error) {
	for _, r := range f.finished {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Run{}, domain.ErrNotFound
}

func (f *fakeRunStore) List(_ context.Context, _ domain.ListOpts) ([]domain.Run, error) {
	return f.finished, nil
}

func (f *fakeRunStore) InsertValues(_ context.Context, samples []domain.ValueSample) error {
	f.values = append(f.values, samples...)
	return nil
}

func (f *fakeRunStore) ListValues(_ context.Context, runID string, opts domain.ListOpts) ([]domain.ValueSample, error) {
	var out []domain.ValueSample
	for _, v := range f.values {
		if v.RunID == runID {
			out = append(out, v)
		}
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeRunStore) Count(_ context.Context) (int64, error) {
	return int64(len(f.finished)), nil
}

type fakeAuditStore struct {
	events []domain.OrderEvent
}

func (f *fakeAuditStore) InsertBatch(_ context.Context, events []domain.OrderEvent) error {
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeAuditStore) ListByRun(_ context.Context, runID string, _ domain.ListOpts) ([]domain.OrderEvent, error) {
	var out []domain.OrderEvent
	for _, ev := range f.events {
		if ev.RunID == runID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func writeTradesFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "trades.csv")
	data := "id,price,qty,quote_qty,flags,time\n" +
		"1,100.0,2.0,200.0,0,1000000\n" +
		"2,110.0,1.0,110.0,0,2000000\n" +
		"3,95.0,3.0,285.0,0,3000000\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func newTestService(runs domain.RunStore, audit domain.AuditStore) *ReplayService {
	logger := slog.New(slog.DiscardHandler)
	return NewReplayService(runs, audit, nil, nil, nil, nil, strategy.DefaultRegistry(), logger)
}

func TestExecuteHoldRun(t *testing.T) {
	runs := &fakeRunStore{}
	audit := &fakeAuditStore{}
	svc := newTestService(runs, audit)

	result, err := svc.Execute(context.Background(), RunParams{
		Label:      "hold smoke",
		TradesFile: writeTradesFile(t, t.TempDir()),
		Mode:       "both",
		MakerFee:   0.001,
		TakerFee:   0.002,
		StartMoney: 1000,
		Strategy:   strategy.Config{Name: "hold", Size: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusCompleted, result.Run.Status)
	assert.Equal(t, 3, result.Run.Timesteps)
	assert.NotEmpty(t, result.Run.ID)
	assert.Len(t, result.Values, 3)

	// A pure hold keeps the value flat at the starting balance.
	for _, v := range result.Values {
		assert.InDelta(t, 1000.0, v.Value, 1e-9)
	}
	assert.Equal(t, 1000.0, result.Run.Final.AuthMoney)

	// Hindsight bounds incorporate the 110 -> 95 drop.
	require.Len(t, result.Benchmarks.Best, 3)
	assert.InDelta(t, 1100.0, result.Benchmarks.Best[2], 1e-9)
	assert.InDelta(t, 1000.0*95.0/110.0, result.Benchmarks.Worst[2], 1e-9)

	require.Len(t, runs.created, 1)
	require.Len(t, runs.finished, 1)
	assert.Equal(t, result.Run.ID, runs.created[0].ID)
	assert.Equal(t, domain.RunStatusCompleted, runs.finished[0].Status)
	assert.Len(t, runs.values, 3)
	assert.Empty(t, audit.events)
}

func TestExecuteRecordsOrderEvents(t *testing.T) {
	runs := &fakeRunStore{}
	audit := &fakeAuditStore{}
	svc := newTestService(runs, audit)

	// Mean reversion with a 2-step lookback and a tiny threshold trades
	// eagerly on this series.
	result, err := svc.Execute(context.Background(), RunParams{
		TradesFile: writeTradesFile(t, t.TempDir()),
		Mode:       "both",
		StartMoney: 10_000,
		Strategy: strategy.Config{
			Name: "mean_reversion",
			Size: 1,
			Params: map[string]any{
				"lookback":          2,
				"std_dev_threshold": 0.5,
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, result.Run.Status)

	require.NotEmpty(t, result.Events)
	assert.Equal(t, result.Events, audit.events)
	for _, ev := range result.Events {
		assert.Equal(t, result.Run.ID, ev.RunID)
	}
}

func TestExecuteRejectsUnknownStrategy(t *testing.T) {
	svc := newTestService(&fakeRunStore{}, nil)

	_, err := svc.Execute(context.Background(), RunParams{
		TradesFile: writeTradesFile(t, t.TempDir()),
		Mode:       "both",
		StartMoney: 1000,
		Strategy:   strategy.Config{Name: "nope", Size: 1},
	})
	require.Error(t, err)
}

func TestExecuteRejectsUnknownMode(t *testing.T) {
	svc := newTestService(&fakeRunStore{}, nil)

	_, err := svc.Execute(context.Background(), RunParams{
		TradesFile: writeTradesFile(t, t.TempDir()),
		Mode:       "sideways",
		StartMoney: 1000,
		Strategy:   strategy.Config{Name: "hold", Size: 1},
	})
	require.ErrorIs(t, err, domain.ErrInvalidParameters)
}

func TestExecuteCancelledContext(t *testing.T) {
	runs := &fakeRunStore{}
	svc := newTestService(runs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Execute(ctx, RunParams{
		TradesFile: writeTradesFile(t, t.TempDir()),
		Mode:       "both",
		StartMoney: 1000,
		Strategy:   strategy.Config{Name: "hold", Size: 1},
	})
	require.ErrorIs(t, err, domain.ErrContextDone)
	assert.Equal(t, domain.RunStatusFailed, result.Run.Status)
	require.Len(t, runs.finished, 1)
	assert.Equal(t, domain.RunStatusFailed, runs.finished[0].Status)
}

func TestProgressFallsBackToStore(t *testing.T) {
	runs := &fakeRunStore{}
	svc := newTestService(runs, nil)

	res, err := svc.Execute(context.Background(), RunParams{
		TradesFile: writeTradesFile(t, t.TempDir()),
		Mode:       "both",
		StartMoney: 1000,
		Strategy:   strategy.Config{Name: "hold", Size: 1},
	})
	require.NoError(t, err)

	p, err := svc.Progress(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, p.Status)
	assert.Equal(t, 2, p.Seq)
	assert.InDelta(t, 1000.0, p.Value, 1e-9)
}

func TestListRunsAndValues(t *testing.T) {
	runs := &fakeRunStore{}
	svc := newTestService(runs, nil)

	res, err := svc.Execute(context.Background(), RunParams{
		TradesFile: writeTradesFile(t, t.TempDir()),
		Mode:       "both",
		StartMoney: 500,
		Strategy:   strategy.Config{Name: "hold", Size: 1},
	})
	require.NoError(t, err)

	listed, err := svc.ListRuns(context.Background(), domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, res.Run.ID, listed[0].ID)

	values, err := svc.RunValues(context.Background(), res.Run.ID, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, values, len(res.Values))
}

// Guards the timestamp formatting used in bus payloads.
func TestObserverBuffersEvents(t *testing.T) {
	obs := newRunObserver(context.Background(), "r1", nil, nil, slog.New(slog.DiscardHandler))
	ev := domain.OrderEvent{RunID: "r1", Timestamp: time.Now(), State: domain.StateProcessed}
	obs.OrderEvent(ev)
	obs.ValueSample(domain.ValueSample{RunID: "r1", Seq: 0, Value: 1})
	require.Len(t, obs.events, 1)
	assert.Equal(t, ev, obs.events[0])
}
