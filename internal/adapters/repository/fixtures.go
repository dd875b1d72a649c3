package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/spms/internal/domain/model"
)

// The writers below cover tables owned by the school's CRUD service. They
// exist so the seeder and tests can populate a database.

// DefaultPrizes is the starter catalog with one prize per level.
var DefaultPrizes = []model.Prize{
	{Name: "Great Student Reward", Level: 1},
	{Name: "5$ Mcdonald's gift card", Level: 2},
	{Name: "School Tshirt", Level: 3},
}

func (s *Store) insertReturningID(ctx context.Context, op, query string, args ...any) (id int64, err error) {
	defer s.observe(op)(&err)

	err = s.db.QueryRowContext(ctx, s.q(query+` RETURNING id`), args...).Scan(&id)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("%w: %s: %w", ErrConflict, op, err)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// CreateUser inserts u and returns it with its id.
func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	if !u.Role.Valid() {
		return model.User{}, fmt.Errorf("%w: role %q", ErrInvalidArgument, u.Role)
	}
	id, err := s.insertReturningID(ctx, "create_user",
		`INSERT INTO users (username, first_name, last_name, grade, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.FirstName, u.LastName, nullGrade(u.Grade), string(u.Role), toMillis(s.now()))
	if err != nil {
		return model.User{}, err
	}
	u.ID = id
	return u, nil
}

// CreateQuarter inserts q and returns it with its id.
func (s *Store) CreateQuarter(ctx context.Context, q model.Quarter) (model.Quarter, error) {
	if !q.Start.Before(q.End) {
		return model.Quarter{}, fmt.Errorf("%w: quarter start must precede end", ErrInvalidArgument)
	}
	id, err := s.insertReturningID(ctx, "create_quarter",
		`INSERT INTO quarter_ranges (name, start_range, end_range) VALUES (?, ?, ?)`,
		q.Name, toMillis(q.Start), toMillis(q.End))
	if err != nil {
		return model.Quarter{}, err
	}
	q.ID = id
	q.Start, q.End = fromMillis(toMillis(q.Start)), fromMillis(toMillis(q.End))
	return q, nil
}

// CreateEvent inserts an event and returns its id. An event with the same
// name is reused and gets the new description.
func (s *Store) CreateEvent(ctx context.Context, name, description string) (int64, error) {
	return s.insertReturningID(ctx, "create_event",
		`INSERT INTO events (name, description) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET description = excluded.description`, name, description)
}

// CreateEventTime schedules an occurrence of eventID inside quarterID.
func (s *Store) CreateEventTime(ctx context.Context, eventID, quarterID int64, start, end time.Time) (int64, error) {
	return s.insertReturningID(ctx, "create_event_time",
		`INSERT INTO event_times (event_id, start_time, end_time, quarter_range_id) VALUES (?, ?, ?, ?)`,
		eventID, toMillis(start), toMillis(end), quarterID)
}

// AddPoint records that userID attended eventTimeID. A second point for the
// same pair yields ErrConflict.
func (s *Store) AddPoint(ctx context.Context, userID, eventTimeID int64) (int64, error) {
	return s.insertReturningID(ctx, "add_point",
		`INSERT INTO student_points (user_id, event_time_id, created_at) VALUES (?, ?, ?)`,
		userID, eventTimeID, toMillis(s.now()))
}

// CreatePrize inserts p and returns it with its id.
func (s *Store) CreatePrize(ctx context.Context, p model.Prize) (model.Prize, error) {
	id, err := s.insertReturningID(ctx, "create_prize",
		`INSERT INTO prizes (name, level) VALUES (?, ?)`, p.Name, p.Level)
	if err != nil {
		return model.Prize{}, err
	}
	p.ID = id
	return p, nil
}

// EnsureDefaultPrizes adds any missing DefaultPrizes entry by name.
func (s *Store) EnsureDefaultPrizes(ctx context.Context) (err error) {
	defer s.observe("ensure_default_prizes")(&err)

	for _, p := range DefaultPrizes {
		if _, err := s.db.ExecContext(ctx,
			s.q(`INSERT INTO prizes (name, level) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`), p.Name, p.Level); err != nil {
			return fmt.Errorf("ensure prize %q: %w", p.Name, err)
		}
	}
	return nil
}
