package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfall/revival/internal/domain"
)

// RunStore implements domain.RunStore using PostgreSQL.
type RunStore struct {
	pool *pgxpool.Pool
}

var _ domain.RunStore = (*RunStore)(nil)

// NewRunStore creates a new RunStore backed by the given connection pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

const runSelectCols = `id, label, strategy, mode, maker_fee, taker_fee,
	start_money, start_quantity, auth_money, pending_money, auth_quantity,
	pending_quantity, timesteps, status, started_at, finished_at`

func scanRun(row pgx.Row) (domain.Run, error) {
	var r domain.Run
	var finished *time.Time // NULL until the run finishes
	err := row.Scan(
		&r.ID, &r.Label, &r.Strategy, &r.Mode, &r.MakerFee, &r.TakerFee,
		&r.StartMoney, &r.StartQuantity, &r.Final.AuthMoney, &r.Final.PendingMoney,
		&r.Final.AuthQuantity, &r.Final.PendingQuantity, &r.Timesteps,
		&r.Status, &r.StartedAt, &finished,
	)
	if finished != nil {
		r.FinishedAt = *finished
	}
	return r, err
}

// Create inserts a run row when the replay starts.
func (s *RunStore) Create(ctx context.Context, run domain.Run) error {
	const query = `
		INSERT INTO runs (
			id, label, strategy, mode, maker_fee, taker_fee,
			start_money, start_quantity, status, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.pool.Exec(ctx, query,
		run.ID, run.Label, run.Strategy, run.Mode, run.MakerFee, run.TakerFee,
		run.StartMoney, run.StartQuantity, run.Status, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create run %s: %w", run.ID, err)
	}
	return nil
}

// Finish records the final portfolio, status, and timestep count.
func (s *RunStore) Finish(ctx context.Context, run domain.Run) error {
	const query = `
		UPDATE runs SET
			auth_money = $2, pending_money = $3, auth_quantity = $4,
			pending_quantity = $5, timesteps = $6, status = $7, finished_at = $8
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		run.ID, run.Final.AuthMoney, run.Final.PendingMoney, run.Final.AuthQuantity,
		run.Final.PendingQuantity, run.Timesteps, run.Status, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: finish run %s: %w", run.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: finish run %s: %w", run.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID fetches a run by its UUID.
func (s *RunStore) GetByID(ctx context.Context, id string) (domain.Run, error) {
	query := `SELECT ` + runSelectCols + ` FROM runs WHERE id = $1`
	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Run{}, fmt.Errorf("postgres: run %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Run{}, fmt.Errorf("postgres: get run %s: %w", id, err)
	}
	return run, nil
}

// List returns runs, newest first, with pagination and time filtering.
func (s *RunStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Run, error) {
	query := `SELECT ` + runSelectCols + ` FROM runs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND started_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND started_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY started_at DESC"

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
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// InsertValues inserts the portfolio value series using pgx Batch.
func (s *RunStore) InsertValues(ctx context.Context, samples []domain.ValueSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO run_values (run_id, seq, ts, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, seq) DO NOTHING`
	for _, v := range samples {
		batch.Queue(query, v.RunID, v.Seq, v.Timestamp, v.Value)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range samples {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert run values: %w", err)
		}
	}
	return nil
}

// ListValues returns the value series for a run in sequence order.
func (s *RunStore) ListValues(ctx context.Context, runID string, opts domain.ListOpts) ([]domain.ValueSample, error) {
	query := `SELECT run_id, seq, ts, value FROM run_values WHERE run_id = $1 ORDER BY seq`
	args := []any{runID}
	argIdx := 2

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
		return nil, fmt.Errorf("postgres: list run values: %w", err)
	}
	defer rows.Close()

	var samples []domain.ValueSample
	for rows.Next() {
		var v domain.ValueSample
		if err := rows.Scan(&v.RunID, &v.Seq, &v.Timestamp, &v.Value); err != nil {
			return nil, fmt.Errorf("postgres: scan run value: %w", err)
		}
		samples = append(samples, v)
	}
	return samples, rows.Err()
}

// Count returns the total number of runs.
func (s *RunStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count runs: %w", err)
	}
	return n, nil
}
