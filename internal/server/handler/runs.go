package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/quantfall/revival/internal/domain"
)

// RunService defines the methods that the run handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type RunService interface {
	GetRun(ctx context.Context, id string) (domain.Run, error)
	ListRuns(ctx context.Context, opts domain.ListOpts) ([]domain.Run, error)
	CountRuns(ctx context.Context) (int64, error)
	RunValues(ctx context.Context, runID string, opts domain.ListOpts) ([]domain.ValueSample, error)
	RunEvents(ctx context.Context, runID string, opts domain.ListOpts) ([]domain.OrderEvent, error)
	Progress(ctx context.Context, runID string) (domain.RunProgress, error)
}

// RunHandler serves replay-run HTTP endpoints.
type RunHandler struct {
	runs   RunService
	logger *slog.Logger
}

// NewRunHandler creates a RunHandler with the given service and logger.
func NewRunHandler(runs RunService, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		runs:   runs,
		logger: logHandler(logger, "runs"),
	}
}

// listRunsResponse wraps the list endpoint output with metadata.
type listRunsResponse struct {
	Runs   []domain.Run `json:"runs"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// ListRuns returns recorded runs with pagination, newest first.
// GET /api/runs?limit=50&offset=0&since=...&until=...
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	runs, err := h.runs.ListRuns(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list runs failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	total, err := h.runs.CountRuns(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count runs failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count runs")
		return
	}

	if runs == nil {
		runs = []domain.Run{}
	}
	writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetRun returns a single run by its ID.
// GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get run failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// GetValues returns the portfolio value series for a run.
// GET /api/runs/{id}/values?limit=500&offset=0
func (h *RunHandler) GetValues(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	values, err := h.runs.RunValues(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list run values failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list run values")
		return
	}

	if values == nil {
		values = []domain.ValueSample{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": id,
		"values": values,
	})
}

// GetEvents returns the order event audit trail for a run.
// GET /api/runs/{id}/events?limit=50&offset=0
func (h *RunHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	events, err := h.runs.RunEvents(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list run events failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list run events")
		return
	}

	if events == nil {
		events = []domain.OrderEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": id,
		"events": events,
	})
}

// GetProgress returns the live progress of a run.
// GET /api/runs/{id}/progress
func (h *RunHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	progress, err := h.runs.Progress(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get run progress failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get run progress")
		return
	}

	writeJSON(w, http.StatusOK, progress)
}
