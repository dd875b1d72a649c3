// Package winners resolves quarter winners and reassigns their prizes.
//
// A quarter has five winner categories: the quarter-wide top scorer and one
// per grade 9..12. Each category moves from unresolved to resolved at most
// once; the ledger's unique (quarter, category) slot makes that hold under
// concurrent resolution.
package winners

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/spms/internal/domain/draw"
	"github.com/okian/spms/internal/domain/model"
	"github.com/okian/spms/internal/domain/tier"
	"github.com/okian/spms/pkg/logger"
	"github.com/okian/spms/pkg/metrics"
)

// Skip reasons recorded in metrics and logs.
const (
	skipResolved = "resolved"
	skipNoPoints = "no_points"
	skipConflict = "conflict"
)

// Resolver creates winner records for quarters.
type Resolver struct {
	store  Store
	src    draw.Source
	logger logger.Logger
}

// NewResolver creates a resolver over store.
func NewResolver(store Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:  store,
		src:    draw.NewSource(0),
		logger: logger.Get().Named("resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveQuarterWinners fills every unresolved category of the quarter and
// returns the records created by this call.
//
// Each insert commits on its own. When a category fails with
// ErrPrizeNotFound the run stops there and the records already created are
// returned together with the error. ErrNoWinnersAvailable means the call
// created nothing.
func (r *Resolver) ResolveQuarterWinners(ctx context.Context, quarterID int64) ([]model.Winner, error) {
	start := time.Now()
	log := r.logger.With(logger.Int64("quarter_id", quarterID), logger.String("run_id", uuid.NewString()))

	created, err := r.resolve(ctx, log, quarterID)

	outcome := "created"
	switch {
	case errors.Is(err, ErrQuarterNotFound):
		outcome = "quarter_not_found"
	case errors.Is(err, ErrPrizeNotFound):
		outcome = "prize_not_found"
	case errors.Is(err, ErrNoWinnersAvailable):
		outcome = "no_winners"
	case err != nil:
		outcome = "error"
	}
	metrics.RecordResolution(outcome, float64(time.Since(start).Milliseconds()))

	if err != nil {
		log.Warn(ctx, "quarter resolution finished with error", logger.Int("created", len(created)), logger.Error(err))
		return created, err
	}
	log.Info(ctx, "quarter resolved", logger.Int("created", len(created)))
	return created, nil
}

func (r *Resolver) resolve(ctx context.Context, log logger.Logger, quarterID int64) ([]model.Winner, error) {
	if _, err := r.store.GetQuarter(ctx, quarterID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrQuarterNotFound, quarterID)
		}
		return nil, fmt.Errorf("get quarter %d: %w", quarterID, err)
	}

	var created []model.Winner

	w, ok, err := r.resolveTop(ctx, log, quarterID)
	if err != nil {
		return created, err
	}
	if ok {
		created = append(created, w)
	}

	for _, g := range model.Grades {
		w, ok, err := r.resolveGrade(ctx, log, quarterID, g)
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, w)
		}
	}

	if len(created) == 0 {
		return nil, fmt.Errorf("%w: quarter %d", ErrNoWinnersAvailable, quarterID)
	}
	return created, nil
}

// resolveTop awards the highest point count of the whole quarter.
func (r *Resolver) resolveTop(ctx context.Context, log logger.Logger, quarterID int64) (model.Winner, bool, error) {
	done, err := r.resolved(ctx, log, quarterID, model.CategoryTop)
	if err != nil || done {
		return model.Winner{}, false, err
	}

	counts, err := r.store.GetPointCounts(ctx, quarterID, nil)
	if err != nil {
		return model.Winner{}, false, fmt.Errorf("point counts for quarter %d: %w", quarterID, err)
	}
	if len(counts) == 0 {
		r.skip(ctx, log, model.CategoryTop, skipNoPoints)
		return model.Winner{}, false, nil
	}

	top := counts[0]
	return r.award(ctx, log, model.Winner{
		QuarterID: quarterID,
		UserID:    top.UserID,
		Points:    top.Points,
		TopPoints: true,
		Category:  model.CategoryTop,
	})
}

// resolveGrade draws uniformly among the grade's users holding points,
// regardless of how many points each holds.
func (r *Resolver) resolveGrade(ctx context.Context, log logger.Logger, quarterID int64, grade int) (model.Winner, bool, error) {
	category := model.GradeCategory(grade)
	done, err := r.resolved(ctx, log, quarterID, category)
	if err != nil || done {
		return model.Winner{}, false, err
	}

	users, err := r.store.GetUsersWithPoints(ctx, quarterID, grade)
	if err != nil {
		return model.Winner{}, false, fmt.Errorf("users with points for grade %d: %w", grade, err)
	}
	pick, ok := draw.Pick(r.src, users)
	if !ok {
		r.skip(ctx, log, category, skipNoPoints)
		return model.Winner{}, false, nil
	}

	return r.award(ctx, log, model.Winner{
		QuarterID: quarterID,
		UserID:    pick.UserID,
		Points:    pick.Points,
		Grade:     model.IntPtr(grade),
		Category:  category,
	})
}

func (r *Resolver) resolved(ctx context.Context, log logger.Logger, quarterID int64, category model.Category) (bool, error) {
	exists, err := r.store.WinnerExists(ctx, quarterID, category)
	if err != nil {
		return false, fmt.Errorf("check %s winner: %w", category, err)
	}
	if exists {
		r.skip(ctx, log, category, skipResolved)
	}
	return exists, nil
}

// award draws a prize for the winner's level and persists the record. A
// conflicting insert means another run took the slot first.
func (r *Resolver) award(ctx context.Context, log logger.Logger, w model.Winner) (model.Winner, bool, error) {
	level := tier.For(w.Points)
	prize, err := r.selectPrize(ctx, level)
	if err != nil {
		return model.Winner{}, false, fmt.Errorf("%s winner: %w", w.Category, err)
	}
	w.PrizeID = prize.ID

	saved, err := r.store.InsertWinner(ctx, w)
	if errors.Is(err, ErrConflict) {
		r.skip(ctx, log, w.Category, skipConflict)
		return model.Winner{}, false, nil
	}
	if err != nil {
		return model.Winner{}, false, fmt.Errorf("insert %s winner: %w", w.Category, err)
	}

	metrics.RecordWinnerCreated(string(w.Category))
	log.Info(ctx, "winner created",
		logger.String("category", string(w.Category)),
		logger.Int64("user_id", saved.UserID),
		logger.Int("points", saved.Points),
		logger.Int64("prize_id", saved.PrizeID),
	)
	return saved, true, nil
}

// selectPrize draws one prize of level uniformly.
func (r *Resolver) selectPrize(ctx context.Context, level tier.Level) (model.Prize, error) {
	prizes, err := r.store.FindPrizesByTier(ctx, level)
	if err != nil {
		return model.Prize{}, fmt.Errorf("prizes for level %d: %w", level, err)
	}
	prize, ok := draw.Pick(r.src, prizes)
	if !ok {
		return model.Prize{}, fmt.Errorf("%w: level %d", ErrPrizeNotFound, level)
	}
	return prize, nil
}

func (r *Resolver) skip(ctx context.Context, log logger.Logger, category model.Category, reason string) {
	metrics.RecordCategorySkipped(string(category), reason)
	log.Debug(ctx, "category skipped", logger.String("category", string(category)), logger.String("reason", reason))
}

// ReassignPrize swaps the prize of a winner record and leaves everything
// else untouched.
func (r *Resolver) ReassignPrize(ctx context.Context, winnerID, prizeID int64) (model.Winner, error) {
	if _, err := r.store.GetWinner(ctx, winnerID); err != nil {
		return model.Winner{}, notFoundAs(err, ErrWinnerNotFound, "winner", winnerID)
	}
	if _, err := r.store.GetPrize(ctx, prizeID); err != nil {
		return model.Winner{}, notFoundAs(err, ErrPrizeNotFound, "prize", prizeID)
	}

	w, err := r.store.UpdateWinnerPrize(ctx, winnerID, prizeID)
	if err != nil {
		return model.Winner{}, notFoundAs(err, ErrWinnerNotFound, "winner", winnerID)
	}

	metrics.RecordPrizeReassigned()
	r.logger.Info(ctx, "prize reassigned", logger.Int64("winner_id", winnerID), logger.Int64("prize_id", prizeID))
	return w, nil
}

// notFoundAs translates a store ErrNotFound into kind.
func notFoundAs(err, kind error, what string, id int64) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %d", kind, id)
	}
	return fmt.Errorf("%s %d: %w", what, id, err)
}
