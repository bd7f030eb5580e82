package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfall/revival/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL.
type AuditStore struct {
	pool *pgxpool.Pool
}

var _ domain.AuditStore = (*AuditStore)(nil)

// NewAuditStore creates a new AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// InsertBatch appends order events efficiently using pgx Batch.
func (s *AuditStore) InsertBatch(ctx context.Context, events []domain.OrderEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO order_events (
			run_id, ts, state, kind, side, quantity, price,
			order_id, target_id, reason,
			exec_quantity, exec_price, exec_total
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	for _, ev := range events {
		batch.Queue(query,
			ev.RunID, ev.Timestamp, string(ev.State), string(ev.Kind), string(ev.Side),
			ev.Quantity, ev.Price, ev.OrderID, ev.TargetID, ev.Reason,
			ev.ExecQuantity, ev.ExecPrice, ev.ExecTotal,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert order events: %w", err)
		}
	}
	return nil
}

// ListByRun returns a run's order events in timeline order.
func (s *AuditStore) ListByRun(ctx context.Context, runID string, opts domain.ListOpts) ([]domain.OrderEvent, error) {
	query := `
		SELECT run_id, ts, state, kind, side, quantity, price,
			order_id, target_id, reason,
			exec_quantity, exec_price, exec_total
		FROM order_events WHERE run_id = $1`
	args := []any{runID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND ts >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND ts <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY id"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list order events: %w", err)
	}
	defer rows.Close()

	var events []domain.OrderEvent
	for rows.Next() {
		var ev domain.OrderEvent
		var state, kind, side string
		if err := rows.Scan(
			&ev.RunID, &ev.Timestamp, &state, &kind, &side,
			&ev.Quantity, &ev.Price, &ev.OrderID, &ev.TargetID, &ev.Reason,
			&ev.ExecQuantity, &ev.ExecPrice, &ev.ExecTotal,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan order event: %w", err)
		}
		ev.State = domain.ActionState(state)
		ev.Kind = domain.ActionKind(kind)
		ev.Side = domain.Side(side)
		events = append(events, ev)
	}
	return events, rows.Err()
}
