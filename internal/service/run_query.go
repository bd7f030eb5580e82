package service

import (
	"context"
	"fmt"

	"github.com/quantfall/revival/internal/domain"
)

// GetRun fetches a single run by ID.
func (s *ReplayService) GetRun(ctx context.Context, id string) (domain.Run, error) {
	if s.runs == nil {
		return domain.Run{}, domain.ErrNotFound
	}
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return domain.Run{}, fmt.Errorf("replay_service: get run %q: %w", id, err)
	}
	return run, nil
}

// ListRuns returns recorded runs, newest first.
func (s *ReplayService) ListRuns(ctx context.Context, opts domain.ListOpts) ([]domain.Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	runs, err := s.runs.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("replay_service: list runs: %w", err)
	}
	return runs, nil
}

// RunValues returns the stored value series for a run.
func (s *ReplayService) RunValues(ctx context.Context, runID string, opts domain.ListOpts) ([]domain.ValueSample, error) {
	if s.runs == nil {
		return nil, nil
	}
	values, err := s.runs.ListValues(ctx, runID, opts)
	if err != nil {
		return nil, fmt.Errorf("replay_service: list values for %q: %w", runID, err)
	}
	return values, nil
}

// RunEvents returns the audit trail for a run.
func (s *ReplayService) RunEvents(ctx context.Context, runID string, opts domain.ListOpts) ([]domain.OrderEvent, error) {
	if s.audit == nil {
		return nil, nil
	}
	events, err := s.audit.ListByRun(ctx, runID, opts)
	if err != nil {
		return nil, fmt.Errorf("replay_service: list events for %q: %w", runID, err)
	}
	return events, nil
}

// CountRuns returns the total number of recorded runs.
func (s *ReplayService) CountRuns(ctx context.Context) (int64, error) {
	if s.runs == nil {
		return 0, nil
	}
	n, err := s.runs.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("replay_service: count runs: %w", err)
	}
	return n, nil
}

// Progress reports the live state of a run from the cache. For runs the
// cache has expired it falls back to the store.
func (s *ReplayService) Progress(ctx context.Context, runID string) (domain.RunProgress, error) {
	if s.cache != nil {
		status, err := s.cache.GetStatus(ctx, runID)
		if err == nil {
			p := domain.RunProgress{RunID: runID, Status: status}
			if seq, value, ts, perr := s.cache.GetProgress(ctx, runID); perr == nil {
				p.Seq = seq
				p.Value = value
				p.Timestamp = ts
			}
			return p, nil
		}
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return domain.RunProgress{}, err
	}
	p := domain.RunProgress{
		RunID:     runID,
		Status:    run.Status,
		Timestamp: run.FinishedAt,
	}
	if run.Timesteps > 0 && s.runs != nil {
		last, lerr := s.runs.ListValues(ctx, runID, domain.ListOpts{Offset: run.Timesteps - 1, Limit: 1})
		if lerr == nil && len(last) > 0 {
			p.Seq = last[0].Seq
			p.Value = last[0].Value
		}
	}
	return p, nil
}
