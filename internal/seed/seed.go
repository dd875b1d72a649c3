// Package seed populates a development database with quarters, events,
// users and attendance.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/spms/internal/domain/draw"
	"github.com/okian/spms/internal/domain/model"
	"github.com/okian/spms/pkg/logger"
)

const quartersPerYear = 4

// Store is the write surface the seeder needs.
type Store interface {
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	CreateQuarter(ctx context.Context, q model.Quarter) (model.Quarter, error)
	CreateEvent(ctx context.Context, name, description string) (int64, error)
	CreateEventTime(ctx context.Context, eventID, quarterID int64, start, end time.Time) (int64, error)
	AddPoint(ctx context.Context, userID, eventTimeID int64) (int64, error)
	EnsureDefaultPrizes(ctx context.Context) error
}

// Run seeds store according to cfg. Usernames carry a random suffix so Run
// can be repeated against the same database.
func Run(ctx context.Context, store Store, cfg Config) (Report, error) {
	start := time.Now()
	log := logger.Get().Named("seed")
	src := cfg.Source
	if src == nil {
		src = draw.NewSource(cfg.RandomSeed)
	}
	batch := strings.SplitN(uuid.NewString(), "-", 2)[0]
	var report Report

	if cfg.Students < 0 || cfg.SessionsPerQ < 1 {
		return report, fmt.Errorf("seed: students must be >= 0 and sessions >= 1")
	}

	log.Info(ctx, "seeding",
		logger.Int("year", cfg.Year),
		logger.Int("students", cfg.Students),
		logger.Int("sessionsPerQuarter", cfg.SessionsPerQ),
		logger.String("batch", batch),
	)

	if err := store.EnsureDefaultPrizes(ctx); err != nil {
		return report, fmt.Errorf("seed prizes: %w", err)
	}

	if cfg.IncludeAdmins {
		admin, err := store.CreateUser(ctx, model.User{Username: "admin-" + batch, FirstName: "Admin", Role: model.RoleAdmin})
		if err != nil {
			return report, fmt.Errorf("seed admin: %w", err)
		}
		staff, err := store.CreateUser(ctx, model.User{Username: "staff-" + batch, FirstName: "Staff", Role: model.RoleStaff})
		if err != nil {
			return report, fmt.Errorf("seed staff: %w", err)
		}
		report.AdminID, report.StaffID = admin.ID, staff.ID
	}

	eventIDs := make([]int64, 0, len(defaultEvents))
	for _, name := range defaultEvents {
		id, err := store.CreateEvent(ctx, name, "")
		if err != nil {
			return report, fmt.Errorf("seed event %q: %w", name, err)
		}
		eventIDs = append(eventIDs, id)
	}

	// sessions[q] holds the event time ids of quarter q.
	sessions := make([][]int64, quartersPerYear)
	for i := 0; i < quartersPerYear; i++ {
		qStart := time.Date(cfg.Year, time.Month(1+3*i), 1, 0, 0, 0, 0, time.UTC)
		qEnd := qStart.AddDate(0, 3, 0)
		q, err := store.CreateQuarter(ctx, model.Quarter{Name: fmt.Sprintf("Quarter %d %d", i+1, cfg.Year), Start: qStart, End: qEnd})
		if err != nil {
			return report, fmt.Errorf("seed quarter %d: %w", i+1, err)
		}
		report.Quarters = append(report.Quarters, q.ID)

		step := qEnd.Sub(qStart) / time.Duration(cfg.SessionsPerQ)
		for s := 0; s < cfg.SessionsPerQ; s++ {
			at := qStart.Add(time.Duration(s) * step).Add(18 * time.Hour)
			id, err := store.CreateEventTime(ctx, eventIDs[s%len(eventIDs)], q.ID, at, at.Add(2*time.Hour))
			if err != nil {
				return report, fmt.Errorf("seed event time: %w", err)
			}
			sessions[i] = append(sessions[i], id)
		}
		report.EventTimes += cfg.SessionsPerQ
	}

	for n := 0; n < cfg.Students; n++ {
		grade := model.Grades[n%len(model.Grades)]
		u, err := store.CreateUser(ctx, model.User{
			Username:  fmt.Sprintf("student-%04d-%s", n+1, batch),
			FirstName: "Student",
			LastName:  fmt.Sprintf("%04d", n+1),
			Grade:     model.IntPtr(grade),
			Role:      model.RoleStudent,
		})
		if err != nil {
			return report, fmt.Errorf("seed student %d: %w", n+1, err)
		}
		report.StudentIDs = append(report.StudentIDs, u.ID)

		for _, qSessions := range sessions {
			attended := attendance(src, len(qSessions))
			for _, idx := range pickDistinct(src, len(qSessions), attended) {
				if _, err := store.AddPoint(ctx, u.ID, qSessions[idx]); err != nil {
					return report, fmt.Errorf("seed point: %w", err)
				}
				report.Points++
			}
		}
	}

	report.Duration = time.Since(start)
	log.Info(ctx, "seeding done",
		logger.Int("students", len(report.StudentIDs)),
		logger.Int("eventTimes", report.EventTimes),
		logger.Int("points", report.Points),
		logger.Duration("duration", report.Duration),
	)
	return report, nil
}

// pickDistinct returns k distinct indexes out of n using a partial
// Fisher-Yates shuffle.
func pickDistinct(src draw.Source, n, k int) []int {
	if k > n {
		k = n
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + src.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}
