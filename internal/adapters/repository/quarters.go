package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/spms/internal/domain/model"
)

const quarterColumns = `id, name, start_range, end_range`

func scanQuarter(row interface{ Scan(...any) error }) (model.Quarter, error) {
	var (
		q          model.Quarter
		start, end int64
	)
	if err := row.Scan(&q.ID, &q.Name, &start, &end); err != nil {
		return model.Quarter{}, err
	}
	q.Start = fromMillis(start)
	q.End = fromMillis(end)
	return q, nil
}

// GetQuarter returns the quarter with id or ErrNotFound.
func (s *Store) GetQuarter(ctx context.Context, id int64) (q model.Quarter, err error) {
	defer s.observe("get_quarter")(&err)

	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+quarterColumns+` FROM quarter_ranges WHERE id = ?`), id)
	q, err = scanQuarter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Quarter{}, fmt.Errorf("%w: quarter %d", ErrNotFound, id)
	}
	if err != nil {
		return model.Quarter{}, fmt.Errorf("get quarter %d: %w", id, err)
	}
	return q, nil
}

// ListQuarters returns every quarter ordered by start.
func (s *Store) ListQuarters(ctx context.Context) ([]model.Quarter, error) {
	return s.queryQuarters(ctx, "list_quarters", `SELECT `+quarterColumns+` FROM quarter_ranges ORDER BY start_range, id`)
}

// EndedQuarters returns quarters whose end is at or before now, oldest first.
func (s *Store) EndedQuarters(ctx context.Context, now time.Time) ([]model.Quarter, error) {
	return s.queryQuarters(ctx, "ended_quarters",
		`SELECT `+quarterColumns+` FROM quarter_ranges WHERE end_range <= ? ORDER BY end_range, id`, toMillis(now))
}

// PastQuarter returns the most recently ended quarter at now, or ErrNotFound.
func (s *Store) PastQuarter(ctx context.Context, now time.Time) (q model.Quarter, err error) {
	defer s.observe("past_quarter")(&err)

	row := s.db.QueryRowContext(ctx,
		s.q(`SELECT `+quarterColumns+` FROM quarter_ranges WHERE end_range <= ? ORDER BY end_range DESC, id DESC LIMIT 1`),
		toMillis(now))
	q, err = scanQuarter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Quarter{}, fmt.Errorf("%w: no ended quarter", ErrNotFound)
	}
	if err != nil {
		return model.Quarter{}, fmt.Errorf("past quarter: %w", err)
	}
	return q, nil
}

func (s *Store) queryQuarters(ctx context.Context, op, query string, args ...any) (out []model.Quarter, err error) {
	defer s.observe(op)(&err)

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		q, err := scanQuarter(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
