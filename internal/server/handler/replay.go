package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/quantfall/revival/internal/service"
)

// ReplayRunner starts replays. Triggered runs execute in the background;
// clients follow progress over the run endpoints or the WebSocket feed.
type ReplayRunner interface {
	Execute(ctx context.Context, params service.RunParams) (service.RunResult, error)
}

// ReplayHandler serves the replay trigger endpoint. Each triggered run
// starts from the base parameters (the loaded configuration) with any
// request overrides applied on top.
type ReplayHandler struct {
	runner ReplayRunner
	base   service.RunParams
	logger *slog.Logger
}

// NewReplayHandler creates a ReplayHandler with the given runner, base
// parameters, and logger.
func NewReplayHandler(runner ReplayRunner, base service.RunParams, logger *slog.Logger) *ReplayHandler {
	return &ReplayHandler{
		runner: runner,
		base:   base,
		logger: logHandler(logger, "replay"),
	}
}

// triggerRequest carries the per-run overrides a client may supply.
type triggerRequest struct {
	Label      string         `json:"label"`
	Mode       string         `json:"mode"`
	Strategy   string         `json:"strategy"`
	Size       float64        `json:"size"`
	Params     map[string]any `json:"params"`
	MakerFee   *float64       `json:"maker_fee"`
	TakerFee   *float64       `json:"taker_fee"`
	StartMoney *float64       `json:"start_money"`
	RandomSeed *int64         `json:"random_seed"`
}

// TriggerRun starts a replay in the background and returns its run ID.
// POST /api/runs
func (h *ReplayHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := h.base
	params.ID = uuid.New().String()
	if req.Label != "" {
		params.Label = req.Label
	}
	if req.Mode != "" {
		params.Mode = req.Mode
	}
	if req.Strategy != "" {
		params.Strategy.Name = req.Strategy
	}
	if req.Size > 0 {
		params.Strategy.Size = req.Size
	}
	if len(req.Params) > 0 {
		params.Strategy.Params = req.Params
	}
	if req.MakerFee != nil {
		params.MakerFee = *req.MakerFee
	}
	if req.TakerFee != nil {
		params.TakerFee = *req.TakerFee
	}
	if req.StartMoney != nil {
		params.StartMoney = *req.StartMoney
	}
	if req.RandomSeed != nil {
		params.RandomSeed = *req.RandomSeed
	}

	// Detach from the request context: the replay outlives the HTTP
	// exchange.
	go func() {
		if _, err := h.runner.Execute(context.Background(), params); err != nil {
			h.logger.Error("handler: triggered run failed",
				slog.String("run_id", params.ID),
				slog.String("error", err.Error()),
			)
		}
	}()

	h.logger.InfoContext(r.Context(), "handler: run triggered",
		slog.String("run_id", params.ID),
		slog.String("strategy", params.Strategy.Name),
	)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": params.ID,
		"status": "accepted",
	})
}
