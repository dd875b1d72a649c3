package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okian/spms/internal/domain/model"
	"github.com/okian/spms/internal/domain/tier"
)

// FindPrizesByTier returns the prizes of level ordered by id.
func (s *Store) FindPrizesByTier(ctx context.Context, level tier.Level) (out []model.Prize, err error) {
	defer s.observe("prizes_by_tier")(&err)

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, name, level FROM prizes WHERE level = ? ORDER BY id`), int(level))
	if err != nil {
		return nil, fmt.Errorf("prizes for level %d: %w", level, err)
	}
	defer rows.Close()

	out = []model.Prize{}
	for rows.Next() {
		var p model.Prize
		if err := rows.Scan(&p.ID, &p.Name, &p.Level); err != nil {
			return nil, fmt.Errorf("prizes: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("prizes: %w", err)
	}
	return out, nil
}

// GetPrize returns the prize with id or ErrNotFound.
func (s *Store) GetPrize(ctx context.Context, id int64) (p model.Prize, err error) {
	defer s.observe("get_prize")(&err)

	err = s.db.QueryRowContext(ctx, s.q(`SELECT id, name, level FROM prizes WHERE id = ?`), id).Scan(&p.ID, &p.Name, &p.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Prize{}, fmt.Errorf("%w: prize %d", ErrNotFound, id)
	}
	if err != nil {
		return model.Prize{}, fmt.Errorf("get prize %d: %w", id, err)
	}
	return p, nil
}
