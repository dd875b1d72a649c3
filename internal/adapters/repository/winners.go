package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/spms/internal/domain/model"
	"github.com/okian/spms/internal/domain/types"
)

// PastWinnersLimit caps how many records PastWinners returns.
const PastWinnersLimit = 5

const winnerColumns = `id, quarter_range_id, user_id, prize_id, points, top_points, grade, category, created_at`

func scanWinner(row interface{ Scan(...any) error }) (model.Winner, error) {
	var (
		w         model.Winner
		grade     sql.NullInt64
		category  string
		createdAt int64
	)
	if err := row.Scan(&w.ID, &w.QuarterID, &w.UserID, &w.PrizeID, &w.Points, &w.TopPoints, &grade, &category, &createdAt); err != nil {
		return model.Winner{}, err
	}
	w.Grade = gradePtr(grade)
	w.Category = model.Category(category)
	w.CreatedAt = fromMillis(createdAt)
	return w, nil
}

// WinnerExists reports whether the quarter's category slot is taken.
func (s *Store) WinnerExists(ctx context.Context, quarterID int64, category model.Category) (exists bool, err error) {
	defer s.observe("winner_exists")(&err)

	var one int
	err = s.db.QueryRowContext(ctx,
		s.q(`SELECT 1 FROM student_winners WHERE quarter_range_id = ? AND category = ?`),
		quarterID, string(category)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("winner exists: %w", err)
	}
	return true, nil
}

// InsertWinner stores w in its category slot. A taken slot yields
// ErrConflict and leaves the existing record untouched.
func (s *Store) InsertWinner(ctx context.Context, w model.Winner) (saved model.Winner, err error) {
	defer s.observe("insert_winner")(&err)

	if w.Category == "" {
		return model.Winner{}, fmt.Errorf("%w: winner category is required", ErrInvalidArgument)
	}
	w.CreatedAt = fromMillis(toMillis(s.now()))

	err = s.db.QueryRowContext(ctx, s.q(`
INSERT INTO student_winners (quarter_range_id, user_id, prize_id, points, top_points, grade, category, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (quarter_range_id, category) DO NOTHING
RETURNING id`),
		w.QuarterID, w.UserID, w.PrizeID, w.Points, w.TopPoints, nullGrade(w.Grade), string(w.Category), toMillis(w.CreatedAt),
	).Scan(&w.ID)
	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		return model.Winner{}, fmt.Errorf("%w: quarter %d category %s", ErrConflict, w.QuarterID, w.Category)
	}
	if err != nil {
		return model.Winner{}, fmt.Errorf("insert winner: %w", err)
	}
	return w, nil
}

// GetWinner returns the winner with id or ErrNotFound.
func (s *Store) GetWinner(ctx context.Context, id int64) (w model.Winner, err error) {
	defer s.observe("get_winner")(&err)

	w, err = scanWinner(s.db.QueryRowContext(ctx, s.q(`SELECT `+winnerColumns+` FROM student_winners WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Winner{}, fmt.Errorf("%w: winner %d", ErrNotFound, id)
	}
	if err != nil {
		return model.Winner{}, fmt.Errorf("get winner %d: %w", id, err)
	}
	return w, nil
}

// UpdateWinnerPrize swaps the prize of winnerID and returns the updated record.
func (s *Store) UpdateWinnerPrize(ctx context.Context, winnerID, prizeID int64) (w model.Winner, err error) {
	defer s.observe("update_winner_prize")(&err)

	res, err := s.db.ExecContext(ctx, s.q(`UPDATE student_winners SET prize_id = ? WHERE id = ?`), prizeID, winnerID)
	if err != nil {
		return model.Winner{}, fmt.Errorf("update winner %d: %w", winnerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Winner{}, fmt.Errorf("update winner %d: %w", winnerID, err)
	}
	if n == 0 {
		return model.Winner{}, fmt.Errorf("%w: winner %d", ErrNotFound, winnerID)
	}
	return s.GetWinner(ctx, winnerID)
}

// DeleteWinner removes the winner record, freeing its category slot.
func (s *Store) DeleteWinner(ctx context.Context, id int64) (err error) {
	defer s.observe("delete_winner")(&err)

	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM student_winners WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete winner %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete winner %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: winner %d", ErrNotFound, id)
	}
	return nil
}

// ListWinners returns one page of winners, newest first.
func (s *Store) ListWinners(ctx context.Context, f types.WinnerFilter) (page types.Page[model.Winner], err error) {
	defer s.observe("list_winners")(&err)

	if f.Limit <= 0 || f.Offset < 0 {
		return page, fmt.Errorf("%w: limit %d offset %d", ErrInvalidArgument, f.Limit, f.Offset)
	}

	var (
		conds []string
		args  []any
	)
	if f.QuarterID != nil {
		conds = append(conds, "quarter_range_id = ?")
		args = append(args, *f.QuarterID)
	}
	if f.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *f.UserID)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM student_winners`+where), args...).Scan(&total); err != nil {
		return page, fmt.Errorf("count winners: %w", err)
	}

	items, err := s.queryWinners(ctx,
		`SELECT `+winnerColumns+` FROM student_winners`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return page, err
	}
	return types.Page[model.Winner]{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// PastWinners returns up to PastWinnersLimit winners of the quarter, top
// scorer first.
func (s *Store) PastWinners(ctx context.Context, quarterID int64) (out []model.Winner, err error) {
	defer s.observe("past_winners")(&err)

	return s.queryWinners(ctx,
		`SELECT `+winnerColumns+` FROM student_winners WHERE quarter_range_id = ? ORDER BY top_points DESC, id ASC LIMIT ?`,
		quarterID, PastWinnersLimit)
}

func (s *Store) queryWinners(ctx context.Context, query string, args ...any) ([]model.Winner, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query winners: %w", err)
	}
	defer rows.Close()

	out := []model.Winner{}
	for rows.Next() {
		w, err := scanWinner(rows)
		if err != nil {
			return nil, fmt.Errorf("query winners: scan: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query winners: %w", err)
	}
	return out, nil
}
