package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfall/revival/internal/benchmark"
	"github.com/quantfall/revival/internal/server"
	"github.com/quantfall/revival/internal/server/handler"
	"github.com/quantfall/revival/internal/server/ws"
	"github.com/quantfall/revival/internal/service"
	"github.com/quantfall/revival/internal/strategy"
)

// baseRunParams translates the loaded configuration into replay parameters.
func (a *App) baseRunParams() service.RunParams {
	return service.RunParams{
		Label:         a.cfg.Simulation.Label,
		TradesFile:    a.cfg.Data.TradesFile,
		BooksFile:     a.cfg.Data.BooksFile,
		Mode:          a.cfg.Simulation.TimestepMode,
		MakerFee:      a.cfg.Simulation.MakerFee,
		TakerFee:      a.cfg.Simulation.TakerFee,
		StartMoney:    a.cfg.Simulation.StartMoney,
		StartQuantity: a.cfg.Simulation.StartQuantity,
		RandomSeed:    a.cfg.Simulation.RandomSeed,
		Strategy: strategy.Config{
			Name:   a.cfg.Strategy.Name,
			Size:   a.cfg.Strategy.Size,
			Params: a.cfg.Strategy.Params,
		},
	}
}

// ReplayMode runs a single replay to completion and reports the outcome.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting replay mode")

	result, err := deps.Replay.Execute(ctx, a.baseRunParams())
	if err != nil {
		return err
	}

	a.reportResult(ctx, result)
	return nil
}

// reportResult logs the replay outcome next to its hindsight benchmarks.
func (a *App) reportResult(ctx context.Context, result service.RunResult) {
	finalValue := result.Run.StartMoney
	if n := len(result.Values); n > 0 {
		finalValue = result.Values[n-1].Value
	}

	attrs := []any{
		slog.String("run_id", result.Run.ID),
		slog.String("strategy", result.Run.Strategy),
		slog.Int("timesteps", result.Run.Timesteps),
		slog.Int("order_events", len(result.Events)),
		slog.Float64("final_value", finalValue),
	}
	if n := len(result.Benchmarks.Best); n > 0 {
		attrs = append(attrs,
			slog.Float64("benchmark_best", result.Benchmarks.Best[n-1]),
			slog.Float64("benchmark_worst", result.Benchmarks.Worst[n-1]),
			slog.Float64("benchmark_random", result.Benchmarks.Random[n-1]),
		)
	}
	if result.PriceStats != (benchmark.Stats{}) {
		attrs = append(attrs,
			slog.Float64("price_mean", result.PriceStats.PriceMean),
			slog.Float64("price_stddev", result.PriceStats.PriceStdDev),
		)
	}
	a.logger.InfoContext(ctx, "replay finished", attrs...)
}

// ServeMode runs the HTTP + WebSocket API until the context is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode starts the API and immediately launches one replay of the
// configured data set. The server keeps running after the replay finishes
// so results can be inspected over HTTP.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)

	g.Go(func() error {
		result, err := deps.Replay.Execute(ctx, a.baseRunParams())
		if err != nil {
			// The run is recorded as failed; keep serving.
			a.logger.ErrorContext(ctx, "initial replay failed",
				slog.String("error", err.Error()),
			)
			return nil
		}
		a.reportResult(ctx, result)
		return nil
	})

	return g.Wait()
}

// startHTTPServer registers the API routes, starts the WebSocket hub, and
// runs the HTTP server on the errgroup until the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(a.logger),
		Runs:       handler.NewRunHandler(deps.Replay, a.logger),
		Strategies: handler.NewStrategyHandler(deps.Registry, a.logger),
	}

	if deps.BlobReader != nil && deps.BlobDeleter != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.BlobReader, deps.BlobDeleter, a.logger)
	}

	// The trigger endpoint needs a data file to replay.
	if a.cfg.Data.TradesFile != "" {
		handlers.Replay = handler.NewReplayHandler(deps.Replay, a.baseRunParams(), a.logger)
	} else {
		a.logger.InfoContext(ctx, "no trades file configured; replay trigger endpoint disabled")
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
