package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/quantfall/revival/internal/domain"
)

// ArchiveImpl implements domain.Archiver by serializing a finished run's
// artifacts to JSONL and uploading them under runs/{id}/ in the bucket.
// The database rows stay in place; the archive is the cold copy served to
// offline analysis tools.
type ArchiveImpl struct {
	writer domain.BlobWriter
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// NewArchiver creates a new ArchiveImpl on top of a blob writer.
func NewArchiver(writer domain.BlobWriter) *ArchiveImpl {
	return &ArchiveImpl{writer: writer}
}

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

// valueRecord is the JSONL schema for one portfolio value sample.
type valueRecord struct {
	Seq       int     `json:"seq"`
	Timestamp string  `json:"ts"`
	Value     float64 `json:"value"`
}

// eventRecord is the JSONL schema for one order lifecycle event.
type eventRecord struct {
	Timestamp    string  `json:"ts"`
	State        string  `json:"state"`
	Kind         string  `json:"kind"`
	Side         string  `json:"side,omitempty"`
	Quantity     float64 `json:"quantity,omitempty"`
	Price        float64 `json:"price,omitempty"`
	OrderID      int64   `json:"order_id,omitempty"`
	TargetID     int64   `json:"target_id,omitempty"`
	Reason       string  `json:"reason,omitempty"`
	ExecQuantity float64 `json:"exec_quantity,omitempty"`
	ExecPrice    float64 `json:"exec_price,omitempty"`
	ExecTotal    float64 `json:"exec_total,omitempty"`
}

// ValuesKey returns the bucket key for a run's archived value series.
func ValuesKey(runID string) string {
	return fmt.Sprintf("runs/%s/values.jsonl", runID)
}

// AuditKey returns the bucket key for a run's archived audit trail.
func AuditKey(runID string) string {
	return fmt.Sprintf("runs/%s/audit.jsonl", runID)
}

// ArchiveValues uploads the run's portfolio value series as
// runs/{id}/values.jsonl and returns the number of records written.
func (a *ArchiveImpl) ArchiveValues(ctx context.Context, runID string, samples []domain.ValueSample) (int64, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, s := range samples {
		rec := valueRecord{
			Seq:       s.Seq,
			Timestamp: s.Timestamp.UTC().Format(tsLayout),
			Value:     s.Value,
		}
		if err := enc.Encode(rec); err != nil {
			return 0, fmt.Errorf("s3blob: encode value sample: %w", err)
		}
	}

	if err := a.writer.Put(ctx, ValuesKey(runID), &buf, "application/x-ndjson"); err != nil {
		return 0, err
	}
	return int64(len(samples)), nil
}

// ArchiveEvents uploads the run's order event trail as
// runs/{id}/audit.jsonl and returns the number of records written.
func (a *ArchiveImpl) ArchiveEvents(ctx context.Context, runID string, events []domain.OrderEvent) (int64, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range events {
		rec := eventRecord{
			Timestamp:    ev.Timestamp.UTC().Format(tsLayout),
			State:        string(ev.State),
			Kind:         string(ev.Kind),
			Side:         string(ev.Side),
			Quantity:     ev.Quantity,
			Price:        ev.Price,
			OrderID:      ev.OrderID,
			TargetID:     ev.TargetID,
			Reason:       ev.Reason,
			ExecQuantity: ev.ExecQuantity,
			ExecPrice:    ev.ExecPrice,
			ExecTotal:    ev.ExecTotal,
		}
		if err := enc.Encode(rec); err != nil {
			return 0, fmt.Errorf("s3blob: encode order event: %w", err)
		}
	}

	if err := a.writer.Put(ctx, AuditKey(runID), &buf, "application/x-ndjson"); err != nil {
		return 0, err
	}
	return int64(len(events)), nil
}
