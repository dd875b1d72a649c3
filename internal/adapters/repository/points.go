package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/okian/spms/internal/domain/model"
	"github.com/okian/spms/internal/domain/types"
)

// pointCountsFrom aggregates distinct attended event times per user for one
// quarter. The quarter is derived through the event time of each point.
const pointCountsFrom = `
FROM student_points sp
JOIN users u ON u.id = sp.user_id
JOIN event_times et ON et.id = sp.event_time_id
WHERE et.quarter_range_id = ?`

const pointCountsGroup = `
GROUP BY u.id, u.grade
ORDER BY points DESC, u.id ASC`

// GetPointCounts returns per-user point counts of the quarter, highest
// first, ties broken by user id ascending. grade restricts to one grade.
func (s *Store) GetPointCounts(ctx context.Context, quarterID int64, grade *int) (out []model.PointCount, err error) {
	defer s.observe("point_counts")(&err)

	query := `SELECT u.id, u.grade, COUNT(DISTINCT sp.event_time_id) AS points` + pointCountsFrom
	args := []any{quarterID}
	if grade != nil {
		query += ` AND u.grade = ?`
		args = append(args, *grade)
	}
	query += pointCountsGroup

	return s.queryPointCounts(ctx, query, args...)
}

// GetUsersWithPoints returns the users of grade with at least one point in
// the quarter, ordered by user id.
func (s *Store) GetUsersWithPoints(ctx context.Context, quarterID int64, grade int) (out []model.PointCount, err error) {
	defer s.observe("users_with_points")(&err)

	query := `SELECT u.id, u.grade, COUNT(DISTINCT sp.event_time_id) AS points` + pointCountsFrom + `
  AND u.grade = ?
GROUP BY u.id, u.grade
ORDER BY u.id ASC`
	return s.queryPointCounts(ctx, query, quarterID, grade)
}

func (s *Store) queryPointCounts(ctx context.Context, query string, args ...any) ([]model.PointCount, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("point counts: %w", err)
	}
	defer rows.Close()

	out := []model.PointCount{}
	for rows.Next() {
		var (
			pc    model.PointCount
			grade sql.NullInt64
		)
		if err := rows.Scan(&pc.UserID, &grade, &pc.Points); err != nil {
			return nil, fmt.Errorf("point counts: scan: %w", err)
		}
		pc.Grade = gradePtr(grade)
		out = append(out, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("point counts: %w", err)
	}
	return out, nil
}

// Leaderboard returns one page of the quarter ranking with user names.
// Ranks are positions in the full ordering, so they continue across pages.
func (s *Store) Leaderboard(ctx context.Context, quarterID int64, grade *int, limit, offset int) (page types.Page[types.LeaderboardEntry], err error) {
	defer s.observe("leaderboard")(&err)

	if limit <= 0 || offset < 0 {
		return page, fmt.Errorf("%w: limit %d offset %d", ErrInvalidArgument, limit, offset)
	}

	filter := pointCountsFrom
	args := []any{quarterID}
	if grade != nil {
		filter += ` AND u.grade = ?`
		args = append(args, *grade)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM (SELECT u.id` + filter + ` GROUP BY u.id) ranked`
	if err := s.db.QueryRowContext(ctx, s.q(countQuery), args...).Scan(&total); err != nil {
		return page, fmt.Errorf("leaderboard count: %w", err)
	}

	query := `SELECT u.id, u.username, u.first_name, u.last_name, u.grade, COUNT(DISTINCT sp.event_time_id) AS points` +
		filter + `
GROUP BY u.id, u.username, u.first_name, u.last_name, u.grade
ORDER BY points DESC, u.id ASC
LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, s.q(query), append(args, limit, offset)...)
	if err != nil {
		return page, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	page = types.Page[types.LeaderboardEntry]{Items: []types.LeaderboardEntry{}, Total: total, Limit: limit, Offset: offset}
	for rows.Next() {
		var (
			e  types.LeaderboardEntry
			gr sql.NullInt64
		)
		if err := rows.Scan(&e.UserID, &e.Username, &e.FirstName, &e.LastName, &gr, &e.Points); err != nil {
			return page, fmt.Errorf("leaderboard: scan: %w", err)
		}
		e.Grade = gradePtr(gr)
		e.Rank = offset + len(page.Items) + 1
		page.Items = append(page.Items, e)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("leaderboard: %w", err)
	}
	return page, nil
}

// UserPoints returns how many points userID holds in the quarter.
func (s *Store) UserPoints(ctx context.Context, quarterID, userID int64) (points int, err error) {
	defer s.observe("user_points")(&err)

	query := `SELECT COUNT(DISTINCT sp.event_time_id)
FROM student_points sp
JOIN event_times et ON et.id = sp.event_time_id
WHERE et.quarter_range_id = ? AND sp.user_id = ?`
	if err := s.db.QueryRowContext(ctx, s.q(query), quarterID, userID).Scan(&points); err != nil {
		return 0, fmt.Errorf("user points: %w", err)
	}
	return points, nil
}
