package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	s3blob "github.com/quantfall/revival/internal/blob/s3"
	"github.com/quantfall/revival/internal/domain"
)

// ArchiveHandler serves archived run artifacts straight from blob storage.
type ArchiveHandler struct {
	reader  domain.BlobReader
	deleter domain.BlobDeleter
	logger  *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler over the given blob reader
// and deleter.
func NewArchiveHandler(reader domain.BlobReader, deleter domain.BlobDeleter, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		reader:  reader,
		deleter: deleter,
		logger:  logHandler(logger, "archive"),
	}
}

// GetValues streams the archived value series for a run as JSONL.
// GET /api/runs/{id}/archive/values
func (h *ArchiveHandler) GetValues(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, s3blob.ValuesKey(pathParam(r, "id")))
}

// GetEvents streams the archived audit trail for a run as JSONL.
// GET /api/runs/{id}/archive/events
func (h *ArchiveHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, s3blob.AuditKey(pathParam(r, "id")))
}

// DeleteArchive removes both archived artifacts for a run.
// DELETE /api/runs/{id}/archive
func (h *ArchiveHandler) DeleteArchive(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	for _, key := range []string{s3blob.ValuesKey(id), s3blob.AuditKey(id)} {
		if err := h.deleter.Delete(r.Context(), key); err != nil {
			h.logger.ErrorContext(r.Context(), "handler: delete archive failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to delete archive")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"run_id": id, "status": "deleted"})
}

func (h *ArchiveHandler) stream(w http.ResponseWriter, r *http.Request, key string) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	body, err := h.reader.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get archive failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get archive")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: archive stream interrupted",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
