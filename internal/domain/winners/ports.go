package winners

import (
	"context"

	"github.com/okian/spms/internal/domain/model"
	"github.com/okian/spms/internal/domain/tier"
)

// PointStore aggregates attendance points per user inside a quarter.
type PointStore interface {
	// GetPointCounts returns one row per user with at least one point in the
	// quarter, optionally restricted to grade, ordered by points descending
	// then user id ascending. No points yields an empty slice.
	GetPointCounts(ctx context.Context, quarterID int64, grade *int) ([]model.PointCount, error)

	// GetUsersWithPoints returns the users of grade holding at least one
	// point in the quarter, in no particular order.
	GetUsersWithPoints(ctx context.Context, quarterID int64, grade int) ([]model.PointCount, error)
}

// PrizeCatalog reads prizes.
type PrizeCatalog interface {
	FindPrizesByTier(ctx context.Context, level tier.Level) ([]model.Prize, error)
	// GetPrize returns ErrNotFound for an unknown id.
	GetPrize(ctx context.Context, id int64) (model.Prize, error)
}

// WinnerLedger persists winner records.
type WinnerLedger interface {
	WinnerExists(ctx context.Context, quarterID int64, category model.Category) (bool, error)
	// InsertWinner returns ErrConflict when the (quarter, category) slot is
	// already taken.
	InsertWinner(ctx context.Context, w model.Winner) (model.Winner, error)
	// GetWinner and UpdateWinnerPrize return ErrNotFound for an unknown id.
	GetWinner(ctx context.Context, id int64) (model.Winner, error)
	UpdateWinnerPrize(ctx context.Context, winnerID, prizeID int64) (model.Winner, error)
}

// QuarterDirectory looks up quarters.
type QuarterDirectory interface {
	// GetQuarter returns ErrNotFound for an unknown id.
	GetQuarter(ctx context.Context, id int64) (model.Quarter, error)
}

// Store bundles every port the resolver needs.
type Store interface {
	PointStore
	PrizeCatalog
	WinnerLedger
	QuarterDirectory
}
