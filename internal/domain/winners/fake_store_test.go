package winners_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/spms/internal/domain/model"
	"github.com/okian/spms/internal/domain/tier"
	"github.com/okian/spms/internal/domain/winners"
)

type point struct {
	userID    int64
	grade     *int
	quarterID int64
}

// fakeStore is an in-memory Store with the ledger's unique category slot.
type fakeStore struct {
	mu       sync.Mutex
	quarters map[int64]model.Quarter
	points   []point
	prizes   []model.Prize
	winners  []model.Winner
	nextID   int64

	// staleExists makes WinnerExists miss these categories, as a concurrent
	// resolver would see them before the other commit lands.
	staleExists map[model.Category]bool
	pointsErr   error
	calls       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		quarters:    map[int64]model.Quarter{},
		staleExists: map[model.Category]bool{},
	}
}

func (f *fakeStore) addQuarter(id int64) {
	now := time.Now()
	f.quarters[id] = model.Quarter{ID: id, Name: "Q", Start: now.Add(-time.Hour), End: now}
}

func (f *fakeStore) addPoints(quarterID, userID int64, grade *int, n int) {
	for i := 0; i < n; i++ {
		f.points = append(f.points, point{userID: userID, grade: grade, quarterID: quarterID})
	}
}

func (f *fakeStore) addPrize(id int64, level int) {
	f.prizes = append(f.prizes, model.Prize{ID: id, Name: "prize", Level: level})
}

func (f *fakeStore) ledger() []model.Winner {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Winner, len(f.winners))
	copy(out, f.winners)
	return out
}

func (f *fakeStore) GetQuarter(_ context.Context, id int64) (model.Quarter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quarters[id]
	if !ok {
		return model.Quarter{}, winners.ErrNotFound
	}
	return q, nil
}

func (f *fakeStore) aggregate(quarterID int64, keep func(point) bool) []model.PointCount {
	byUser := map[int64]*model.PointCount{}
	for _, p := range f.points {
		if p.quarterID != quarterID || !keep(p) {
			continue
		}
		pc, ok := byUser[p.userID]
		if !ok {
			pc = &model.PointCount{UserID: p.userID, Grade: p.grade}
			byUser[p.userID] = pc
		}
		pc.Points++
	}
	out := make([]model.PointCount, 0, len(byUser))
	for _, pc := range byUser {
		out = append(out, *pc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (f *fakeStore) GetPointCounts(_ context.Context, quarterID int64, grade *int) ([]model.PointCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.pointsErr != nil {
		return nil, f.pointsErr
	}
	return f.aggregate(quarterID, func(p point) bool {
		return grade == nil || (p.grade != nil && *p.grade == *grade)
	}), nil
}

func (f *fakeStore) GetUsersWithPoints(_ context.Context, quarterID int64, grade int) ([]model.PointCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := f.aggregate(quarterID, func(p point) bool { return p.grade != nil && *p.grade == grade })
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeStore) FindPrizesByTier(_ context.Context, level tier.Level) ([]model.Prize, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Prize
	for _, p := range f.prizes {
		if p.Level == int(level) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPrize(_ context.Context, id int64) (model.Prize, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.prizes {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Prize{}, winners.ErrNotFound
}

func (f *fakeStore) WinnerExists(_ context.Context, quarterID int64, category model.Category) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.staleExists[category] {
		return false, nil
	}
	for _, w := range f.winners {
		if w.QuarterID == quarterID && w.Category == category {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertWinner(_ context.Context, w model.Winner) (model.Winner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.winners {
		if existing.QuarterID == w.QuarterID && existing.Category == w.Category {
			return model.Winner{}, winners.ErrConflict
		}
	}
	f.nextID++
	w.ID = f.nextID
	w.CreatedAt = time.Now()
	f.winners = append(f.winners, w)
	return w, nil
}

func (f *fakeStore) GetWinner(_ context.Context, id int64) (model.Winner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.winners {
		if w.ID == id {
			return w, nil
		}
	}
	return model.Winner{}, winners.ErrNotFound
}

func (f *fakeStore) UpdateWinnerPrize(_ context.Context, winnerID, prizeID int64) (model.Winner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.winners {
		if f.winners[i].ID == winnerID {
			f.winners[i].PrizeID = prizeID
			return f.winners[i], nil
		}
	}
	return model.Winner{}, winners.ErrNotFound
}
