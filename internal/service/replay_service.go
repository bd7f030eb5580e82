package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/quantfall/revival/internal/benchmark"
	"github.com/quantfall/revival/internal/domain"
	"github.com/quantfall/revival/internal/ingest"
	"github.com/quantfall/revival/internal/notify"
	"github.com/quantfall/revival/internal/sim"
	"github.com/quantfall/revival/internal/strategy"
	"github.com/quantfall/revival/internal/timeline"
)

// progressEvery controls how often live progress is pushed to the cache
// and the signal bus while a replay is running.
const progressEvery = 25

// RunParams describes a single replay: the data files, the timeline
// merge mode, the engine configuration, and the strategy to drive it.
type RunParams struct {
	ID            string // optional; generated when empty
	Label         string
	TradesFile    string
	BooksFile     string
	Mode          string
	MakerFee      float64
	TakerFee      float64
	StartMoney    float64
	StartQuantity float64
	RandomSeed    int64
	Strategy      strategy.Config
}

// RunResult bundles everything a finished replay produced.
type RunResult struct {
	Run        domain.Run
	Values     []domain.ValueSample
	Events     []domain.OrderEvent
	Benchmarks benchmark.Series
	PriceStats benchmark.Stats
}

// ReplayService orchestrates a full replay: it loads historical data,
// builds the decision timeline, drives the engine, computes hindsight
// benchmarks, and persists the results. The store, cache, bus, archiver,
// and notifier are all optional; a nil dependency is skipped.
type ReplayService struct {
	runs     domain.RunStore
	audit    domain.AuditStore
	cache    domain.RunCache
	bus      domain.SignalBus
	archiver domain.Archiver
	notifier *notify.Notifier
	registry *strategy.Registry
	logger   *slog.Logger
}

// NewReplayService creates a ReplayService. Only registry and logger are
// required.
func NewReplayService(
	runs domain.RunStore,
	audit domain.AuditStore,
	cache domain.RunCache,
	bus domain.SignalBus,
	archiver domain.Archiver,
	notifier *notify.Notifier,
	registry *strategy.Registry,
	logger *slog.Logger,
) *ReplayService {
	return &ReplayService{
		runs:     runs,
		audit:    audit,
		cache:    cache,
		bus:      bus,
		archiver: archiver,
		notifier: notifier,
		registry: registry,
		logger:   logger.With(slog.String("component", "replay_service")),
	}
}

// Execute runs one replay end to end and returns its result. The run is
// recorded as failed when the engine cannot finish, including when ctx
// is cancelled mid-replay.
func (s *ReplayService) Execute(ctx context.Context, params RunParams) (RunResult, error) {
	steps, err := s.buildTimeline(params)
	if err != nil {
		return RunResult{}, err
	}

	strat, err := s.registry.Build(params.Strategy.Name, params.Strategy, s.logger)
	if err != nil {
		return RunResult{}, fmt.Errorf("replay_service: build strategy: %w", err)
	}

	engine, err := sim.NewEngine(sim.Config{
		MakerFee: params.MakerFee,
		TakerFee: params.TakerFee,
		Start: domain.Portfolio{
			AuthMoney:    params.StartMoney,
			AuthQuantity: params.StartQuantity,
		},
	}, s.logger)
	if err != nil {
		return RunResult{}, fmt.Errorf("replay_service: new engine: %w", err)
	}

	runID := params.ID
	if runID == "" {
		runID = uuid.New().String()
	}
	run := domain.Run{
		ID:            runID,
		Label:         params.Label,
		Strategy:      strat.Name(),
		Mode:          params.Mode,
		MakerFee:      params.MakerFee,
		TakerFee:      params.TakerFee,
		StartMoney:    params.StartMoney,
		StartQuantity: params.StartQuantity,
		Timesteps:     len(steps),
		StartedAt:     time.Now().UTC(),
	}

	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			return RunResult{}, fmt.Errorf("replay_service: create run: %w", err)
		}
	}
	s.setStatus(ctx, run.ID, "running")

	s.logger.InfoContext(ctx, "replay_service: run started",
		slog.String("run_id", run.ID),
		slog.String("strategy", run.Strategy),
		slog.String("mode", run.Mode),
		slog.Int("timesteps", len(steps)),
	)

	obs := newRunObserver(ctx, run.ID, s.cache, s.bus, s.logger)
	engine.SetObserver(run.ID, obs)

	values, runErr := s.drive(ctx, engine, steps, strat)
	run.Final = engine.Portfolio()
	run.FinishedAt = time.Now().UTC()

	result := RunResult{
		Run:    run,
		Values: values,
		Events: obs.events,
	}

	if runErr != nil {
		run.Status = domain.RunStatusFailed
		result.Run = run
		s.finishFailed(ctx, run, runErr)
		return result, fmt.Errorf("replay_service: run %s: %w", run.ID, runErr)
	}

	run.Status = domain.RunStatusCompleted
	result.Run = run

	var rng *rand.Rand
	if params.RandomSeed != 0 {
		rng = rand.New(rand.NewSource(params.RandomSeed))
	}
	result.Benchmarks = benchmark.Compute(steps, params.StartMoney, rng)
	if len(steps) > 0 {
		result.PriceStats = benchmark.Describe(steps[len(steps)-1].History)
	}

	s.persist(ctx, result)

	finalValue := run.StartMoney
	if n := len(values); n > 0 {
		finalValue = values[n-1].Value
	}
	s.logger.InfoContext(ctx, "replay_service: run completed",
		slog.String("run_id", run.ID),
		slog.Float64("final_value", finalValue),
		slog.Int("order_events", len(obs.events)),
	)

	if s.notifier != nil {
		if err := s.notifier.RunCompleted(ctx, run, finalValue); err != nil {
			s.logger.WarnContext(ctx, "replay_service: completion notification failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return result, nil
}

// buildTimeline loads the data files and merges them into timesteps.
func (s *ReplayService) buildTimeline(params RunParams) ([]domain.Timestep, error) {
	mode, err := timeline.ParseMode(params.Mode)
	if err != nil {
		return nil, fmt.Errorf("replay_service: %w", err)
	}

	trades, err := ingest.LoadTradesFile(params.TradesFile)
	if err != nil {
		return nil, fmt.Errorf("replay_service: load trades: %w", err)
	}

	var books []domain.BookSnapshot
	if params.BooksFile != "" {
		books, err = ingest.LoadBooksFile(params.BooksFile)
		if err != nil {
			return nil, fmt.Errorf("replay_service: load books: %w", err)
		}
	}

	steps, err := timeline.Build(trades, books, mode)
	if err != nil {
		return nil, fmt.Errorf("replay_service: build timeline: %w", err)
	}
	return steps, nil
}

// drive advances the engine one timestep at a time, checking for
// cancellation between steps so a long replay can be aborted cleanly.
func (s *ReplayService) drive(ctx context.Context, engine *sim.Engine, steps []domain.Timestep, strat strategy.Strategy) ([]domain.ValueSample, error) {
	values := make([]domain.ValueSample, 0, len(steps))
	for i, step := range steps {
		select {
		case <-ctx.Done():
			return values, fmt.Errorf("aborted at timestep %d: %w", i, domain.ErrContextDone)
		default:
		}
		values = append(values, engine.Step(i, step, strat))
	}
	return values, nil
}

// persist writes a completed run to every configured sink. Sink errors
// are logged and do not fail the run: the in-memory result is already
// complete.
func (s *ReplayService) persist(ctx context.Context, result RunResult) {
	run := result.Run

	if s.runs != nil {
		if err := s.runs.Finish(ctx, run); err != nil {
			s.logger.ErrorContext(ctx, "replay_service: finish run failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.runs.InsertValues(ctx, result.Values); err != nil {
			s.logger.ErrorContext(ctx, "replay_service: insert values failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.audit != nil && len(result.Events) > 0 {
		if err := s.audit.InsertBatch(ctx, result.Events); err != nil {
			s.logger.ErrorContext(ctx, "replay_service: insert audit batch failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.archiver != nil {
		if n, err := s.archiver.ArchiveValues(ctx, run.ID, result.Values); err != nil {
			s.logger.WarnContext(ctx, "replay_service: archive values failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.DebugContext(ctx, "replay_service: archived values",
				slog.String("run_id", run.ID),
				slog.Int64("records", n),
			)
		}
		if _, err := s.archiver.ArchiveEvents(ctx, run.ID, result.Events); err != nil {
			s.logger.WarnContext(ctx, "replay_service: archive events failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.setStatus(ctx, run.ID, domain.RunStatusCompleted)
	s.publishLifecycle(ctx, run, "run_completed")
}

// finishFailed records a failed run in every configured sink.
func (s *ReplayService) finishFailed(ctx context.Context, run domain.Run, cause error) {
	s.logger.ErrorContext(ctx, "replay_service: run failed",
		slog.String("run_id", run.ID),
		slog.String("error", cause.Error()),
	)

	if s.runs != nil {
		if err := s.runs.Finish(ctx, run); err != nil {
			s.logger.ErrorContext(ctx, "replay_service: finish run failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	s.setStatus(ctx, run.ID, domain.RunStatusFailed)
	s.publishLifecycle(ctx, run, "run_failed")

	if s.notifier != nil {
		if err := s.notifier.RunFailed(ctx, run, cause); err != nil {
			s.logger.WarnContext(ctx, "replay_service: failure notification failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *ReplayService) setStatus(ctx context.Context, runID, status string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetStatus(ctx, runID, status); err != nil {
		s.logger.WarnContext(ctx, "replay_service: cache status update failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
	}
}

// publishLifecycle announces a run state transition on the signal bus.
func (s *ReplayService) publishLifecycle(ctx context.Context, run domain.Run, event string) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"event":     event,
		"run_id":    run.ID,
		"strategy":  run.Strategy,
		"status":    run.Status,
		"timesteps": run.Timesteps,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err := s.bus.Publish(ctx, "runs", payload); err != nil {
		s.logger.WarnContext(ctx, "replay_service: publish lifecycle event failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
}

// runObserver buffers order events for the audit trail and pushes live
// progress to the cache and bus. It runs on the engine goroutine, so
// sink calls are fire-and-forget.
type runObserver struct {
	ctx    context.Context
	runID  string
	cache  domain.RunCache
	bus    domain.SignalBus
	logger *slog.Logger

	events []domain.OrderEvent
}

func newRunObserver(ctx context.Context, runID string, cache domain.RunCache, bus domain.SignalBus, logger *slog.Logger) *runObserver {
	return &runObserver{
		ctx:    ctx,
		runID:  runID,
		cache:  cache,
		bus:    bus,
		logger: logger,
	}
}

var _ sim.Observer = (*runObserver)(nil)

func (o *runObserver) OrderEvent(ev domain.OrderEvent) {
	o.events = append(o.events, ev)

	if o.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"run_id":    ev.RunID,
		"state":     string(ev.State),
		"kind":      string(ev.Kind),
		"side":      string(ev.Side),
		"order_id":  ev.OrderID,
		"quantity":  ev.Quantity,
		"price":     ev.Price,
		"timestamp": ev.Timestamp.Format(time.RFC3339Nano),
	})
	if err := o.bus.Publish(o.ctx, "replay:"+o.runID+":orders", payload); err != nil {
		o.logger.DebugContext(o.ctx, "replay_service: publish order event failed",
			slog.String("run_id", o.runID),
			slog.String("error", err.Error()),
		)
	}
}

func (o *runObserver) ValueSample(s domain.ValueSample) {
	if o.cache != nil && s.Seq%progressEvery == 0 {
		if err := o.cache.SetProgress(o.ctx, o.runID, s.Seq, s.Value, s.Timestamp); err != nil {
			o.logger.DebugContext(o.ctx, "replay_service: cache progress update failed",
				slog.String("run_id", o.runID),
				slog.String("error", err.Error()),
			)
		}
	}

	if o.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"run_id":    s.RunID,
		"seq":       s.Seq,
		"value":     s.Value,
		"timestamp": s.Timestamp.Format(time.RFC3339Nano),
	})
	if err := o.bus.Publish(o.ctx, "replay:"+o.runID+":values", payload); err != nil {
		o.logger.DebugContext(o.ctx, "replay_service: publish value sample failed",
			slog.String("run_id", o.runID),
			slog.String("error", err.Error()),
		)
	}
	if err := o.bus.StreamAppend(o.ctx, "replay:values", payload); err != nil {
		o.logger.DebugContext(o.ctx, "replay_service: stream append failed",
			slog.String("run_id", o.runID),
			slog.String("error", err.Error()),
		)
	}
}
