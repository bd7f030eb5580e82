package handler

import (
	"log/slog"
	"net/http"

	"github.com/quantfall/revival/internal/strategy"
)

// StrategyHandler serves the strategy catalog endpoint.
type StrategyHandler struct {
	registry *strategy.Registry
	logger   *slog.Logger
}

// NewStrategyHandler creates a StrategyHandler over the given registry.
func NewStrategyHandler(registry *strategy.Registry, logger *slog.Logger) *StrategyHandler {
	return &StrategyHandler{
		registry: registry,
		logger:   logHandler(logger, "strategies"),
	}
}

// ListStrategies returns the names of all registered strategies.
// GET /api/strategies
func (h *StrategyHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"strategies": h.registry.List(),
	})
}
