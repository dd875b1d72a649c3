package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/spms/internal/adapters/http/api"
	"github.com/okian/spms/internal/adapters/http/auth"
	"github.com/okian/spms/internal/adapters/mq/queue"
	"github.com/okian/spms/internal/domain/model"
	"github.com/okian/spms/internal/domain/types"
	"github.com/okian/spms/internal/domain/winners"
	"github.com/okian/spms/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	signingKey = "api-test-key"
	issuer     = "spms-test"
)

// mockDeps records the arguments it receives and returns canned results.
type mockDeps struct {
	resolved     []model.Winner
	resolveErr   error
	ack          types.JobAck
	scheduleErr  error
	reassignErr  error
	winner       model.Winner
	getErr       error
	deleteErr    error
	board        types.Page[types.LeaderboardEntry]
	points       types.UserPoints
	pointsErr    error
	past         []model.Winner
	quarter      model.Quarter
	quarterErr   error
	lastFilter   types.WinnerFilter
	lastGrade    *int
	lastUserID   int64
	lastPrizeID  int64
	scheduledFor int64
}

func (m *mockDeps) ResolveQuarterWinners(_ context.Context, quarterID int64) ([]model.Winner, error) {
	return m.resolved, m.resolveErr
}

func (m *mockDeps) ScheduleResolution(_ context.Context, quarterID int64, _ string) (types.JobAck, error) {
	m.scheduledFor = quarterID
	return m.ack, m.scheduleErr
}

func (m *mockDeps) ReassignPrize(_ context.Context, winnerID, prizeID int64) (model.Winner, error) {
	m.lastPrizeID = prizeID
	if m.reassignErr != nil {
		return model.Winner{}, m.reassignErr
	}
	w := m.winner
	w.ID = winnerID
	w.PrizeID = prizeID
	return w, nil
}

func (m *mockDeps) ListWinners(_ context.Context, f types.WinnerFilter) (types.Page[model.Winner], error) {
	m.lastFilter = f
	return types.Page[model.Winner]{Items: []model.Winner{m.winner}, Total: 1, Limit: 100}, nil
}

func (m *mockDeps) GetWinner(_ context.Context, id int64) (model.Winner, error) {
	if m.getErr != nil {
		return model.Winner{}, m.getErr
	}
	w := m.winner
	w.ID = id
	return w, nil
}

func (m *mockDeps) DeleteWinner(context.Context, int64) error { return m.deleteErr }

func (m *mockDeps) Leaderboard(_ context.Context, _ int64, grade *int, _, _ int) (types.Page[types.LeaderboardEntry], error) {
	m.lastGrade = grade
	return m.board, nil
}

func (m *mockDeps) UserPoints(_ context.Context, quarterID, userID int64) (types.UserPoints, error) {
	m.lastUserID = userID
	if m.pointsErr != nil {
		return types.UserPoints{}, m.pointsErr
	}
	p := m.points
	p.QuarterID, p.UserID = quarterID, userID
	return p, nil
}

func (m *mockDeps) PastWinners(context.Context, int64) ([]model.Winner, error) { return m.past, nil }

func (m *mockDeps) PastQuarter(context.Context) (model.Quarter, error) {
	return m.quarter, m.quarterErr
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} { return m.stats }

func newMux(deps *mockDeps) *http.ServeMux {
	So(logger.Init(logger.WithOutput(io.Discard)), ShouldBeNil)
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, api.NewVerifier(signingKey, issuer))
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func token(userID int64, role model.Role) string {
	tok, err := auth.Issue(userID, role, issuer, signingKey, time.Hour)
	So(err, ShouldBeNil)
	return tok
}

func do(mux *http.ServeMux, method, target, body, tok string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
	return body.Code
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(&mockDeps{})

		Convey("Then health serves Prometheus metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats serves JSON without a token", func() {
			w := do(mux, http.MethodGet, "/stats", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then unknown paths are not found", func() {
			w := do(mux, http.MethodGet, "/unknown", "", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then every response carries a request id", func() {
			w := do(mux, http.MethodGet, "/stats", "", "")
			So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)

			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			req.Header.Set("X-Request-ID", "abc-123")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Header().Get("X-Request-ID"), ShouldEqual, "abc-123")
		})

		Convey("Then unsupported methods are rejected", func() {
			w := do(mux, http.MethodPatch, "/student-winners", "", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(errorCode(w), ShouldEqual, "method_not_allowed")
		})
	})
}

func TestResolveWinners(t *testing.T) {
	Convey("Given the resolve endpoint", t, func() {
		deps := &mockDeps{resolved: []model.Winner{{ID: 1, Category: model.CategoryTop}}}
		mux := newMux(deps)
		body := `{"quarter_range_id": 3}`

		Convey("When called without a token", func() {
			w := do(mux, http.MethodPost, "/student-winners", body, "")

			Convey("Then it is unauthorized", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When called by a student", func() {
			w := do(mux, http.MethodPost, "/student-winners", body, token(5, model.RoleStudent))

			Convey("Then it is forbidden", func() {
				So(w.Code, ShouldEqual, http.StatusForbidden)
				So(errorCode(w), ShouldEqual, "forbidden")
			})
		})

		Convey("When called by an admin", func() {
			w := do(mux, http.MethodPost, "/student-winners", body, token(1, model.RoleAdmin))

			Convey("Then the created winners are returned", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				var got []model.Winner
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].Category, ShouldEqual, model.CategoryTop)
			})
		})

		Convey("When the body is invalid", func() {
			admin := token(1, model.RoleAdmin)

			Convey("Then it is a bad request", func() {
				So(do(mux, http.MethodPost, "/student-winners", `{"quarter_range_id": 0}`, admin).Code, ShouldEqual, http.StatusBadRequest)
				So(do(mux, http.MethodPost, "/student-winners", `not json`, admin).Code, ShouldEqual, http.StatusBadRequest)
				So(do(mux, http.MethodPost, "/student-winners", `{"quarter": 1}`, admin).Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When resolution fails", func() {
			admin := token(1, model.RoleAdmin)
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{winners.ErrQuarterNotFound, http.StatusNotFound, "quarter_not_found"},
				{winners.ErrNoWinnersAvailable, http.StatusConflict, "no_winners_available"},
				{winners.ErrPrizeNotFound, http.StatusConflict, "prize_not_found"},
				{fmt.Errorf("db down"), http.StatusInternalServerError, "internal_error"},
			}

			Convey("Then each failure maps to its status", func() {
				for _, c := range cases {
					deps.resolveErr = fmt.Errorf("resolve: %w", c.err)
					w := do(mux, http.MethodPost, "/student-winners", body, admin)
					So(w.Code, ShouldEqual, c.status)
					So(errorCode(w), ShouldEqual, c.code)
				}
			})
		})

		Convey("When a prize is missing after the top scorer was committed", func() {
			deps.resolveErr = fmt.Errorf("grade-9: %w", winners.ErrPrizeNotFound)
			w := do(mux, http.MethodPost, "/student-winners", body, token(1, model.RoleAdmin))

			Convey("Then the committed winners come back with the error", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				var got struct {
					Code    string         `json:"code"`
					Winners []model.Winner `json:"winners"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Code, ShouldEqual, "prize_not_found")
				So(got.Winners, ShouldHaveLength, 1)
				So(got.Winners[0].ID, ShouldEqual, 1)
			})
		})

		Convey("When nothing was committed before the failure", func() {
			deps.resolved = nil
			deps.resolveErr = fmt.Errorf("top: %w", winners.ErrPrizeNotFound)
			w := do(mux, http.MethodPost, "/student-winners", body, token(1, model.RoleAdmin))

			Convey("Then the body is a plain error", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(w.Body.String(), ShouldNotContainSubstring, `"winners"`)
			})
		})
	})
}

func TestWinnerRoutes(t *testing.T) {
	Convey("Given the winner routes", t, func() {
		deps := &mockDeps{winner: model.Winner{QuarterID: 3, UserID: 9, PrizeID: 2}}
		mux := newMux(deps)
		staff := token(2, model.RoleStaff)
		admin := token(1, model.RoleAdmin)

		Convey("When listing with filters", func() {
			w := do(mux, http.MethodGet, "/student-winners?quarter_range_id=3&student_id=9&limit=5&offset=10", "", staff)

			Convey("Then the filter reaches the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(*deps.lastFilter.QuarterID, ShouldEqual, 3)
				So(*deps.lastFilter.UserID, ShouldEqual, 9)
				So(deps.lastFilter.Limit, ShouldEqual, 5)
				So(deps.lastFilter.Offset, ShouldEqual, 10)
			})
		})

		Convey("When listing with a malformed parameter", func() {
			So(do(mux, http.MethodGet, "/student-winners?limit=-1", "", staff).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/student-winners?quarter_range_id=abc", "", staff).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When reading one winner", func() {
			w := do(mux, http.MethodGet, "/student-winners/7", "", staff)

			Convey("Then it is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got model.Winner
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.ID, ShouldEqual, 7)
			})
		})

		Convey("When reading a bad or unknown id", func() {
			So(do(mux, http.MethodGet, "/student-winners/abc", "", staff).Code, ShouldEqual, http.StatusBadRequest)
			deps.getErr = fmt.Errorf("%w: winner 8", winners.ErrWinnerNotFound)
			So(do(mux, http.MethodGet, "/student-winners/8", "", staff).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When reassigning a prize", func() {
			w := do(mux, http.MethodPut, "/student-winners/7", `{"prize_id": 4}`, admin)

			Convey("Then the updated record is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastPrizeID, ShouldEqual, 4)
			})
		})

		Convey("When reassigning to an unknown prize or winner", func() {
			deps.reassignErr = fmt.Errorf("%w: prize 4", winners.ErrPrizeNotFound)
			prize := do(mux, http.MethodPut, "/student-winners/7", `{"prize_id": 4}`, admin)
			deps.reassignErr = fmt.Errorf("%w: winner 7", winners.ErrWinnerNotFound)
			winner := do(mux, http.MethodPut, "/student-winners/7", `{"prize_id": 4}`, admin)

			Convey("Then both are not found", func() {
				So(prize.Code, ShouldEqual, http.StatusNotFound)
				So(errorCode(prize), ShouldEqual, "prize_not_found")
				So(winner.Code, ShouldEqual, http.StatusNotFound)
				So(errorCode(winner), ShouldEqual, "winner_not_found")
			})
		})

		Convey("When staff tries to reassign or delete", func() {
			So(do(mux, http.MethodPut, "/student-winners/7", `{"prize_id": 4}`, staff).Code, ShouldEqual, http.StatusForbidden)
			So(do(mux, http.MethodDelete, "/student-winners/7", "", staff).Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("When an admin deletes a winner", func() {
			So(do(mux, http.MethodDelete, "/student-winners/7", "", admin).Code, ShouldEqual, http.StatusNoContent)
			deps.deleteErr = winners.ErrWinnerNotFound
			So(do(mux, http.MethodDelete, "/student-winners/7", "", admin).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestResolutionJobs(t *testing.T) {
	Convey("Given the job endpoint", t, func() {
		deps := &mockDeps{ack: types.JobAck{JobID: "job-1", QuarterID: 3}}
		mux := newMux(deps)
		admin := token(1, model.RoleAdmin)

		Convey("When a quarter is scheduled", func() {
			w := do(mux, http.MethodPost, "/student-winners/jobs", `{"quarter_range_id": 3}`, admin)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.scheduledFor, ShouldEqual, 3)
				So(w.Body.String(), ShouldContainSubstring, `"status":"accepted"`)
				So(w.Body.String(), ShouldContainSubstring, `"job_id":"job-1"`)
			})
		})

		Convey("When the quarter already has a job", func() {
			deps.ack = types.JobAck{QuarterID: 3, Duplicate: true}
			w := do(mux, http.MethodPost, "/student-winners/jobs", `{"quarter_range_id": 3}`, admin)

			Convey("Then it is reported as a duplicate", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})
		})

		Convey("When the queue is full", func() {
			deps.scheduleErr = fmt.Errorf("enqueue: %w", queue.ErrQueueFull)
			w := do(mux, http.MethodPost, "/student-winners/jobs", `{"quarter_range_id": 3}`, admin)

			Convey("Then backpressure is signalled", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(errorCode(w), ShouldEqual, "backpressure")
			})
		})

		Convey("When fetched with GET", func() {
			So(do(mux, http.MethodGet, "/student-winners/jobs", "", admin).Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestStandings(t *testing.T) {
	Convey("Given the standings routes", t, func() {
		deps := &mockDeps{
			board:   types.Page[types.LeaderboardEntry]{Items: []types.LeaderboardEntry{{Rank: 1, UserID: 9, Points: 12}}, Total: 1},
			points:  types.UserPoints{Points: 6, Level: 2},
			quarter: model.Quarter{ID: 2, Name: "Q2"},
		}
		mux := newMux(deps)
		staff := token(2, model.RoleStaff)

		Convey("When the leaderboard is requested for a grade", func() {
			w := do(mux, http.MethodGet, "/leaderboards?quarter_range_id=3&grade=10", "", staff)

			Convey("Then the page is returned with the grade applied", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(*deps.lastGrade, ShouldEqual, 10)
				So(w.Body.String(), ShouldContainSubstring, `"points":12`)
			})
		})

		Convey("When leaderboard parameters are invalid", func() {
			So(do(mux, http.MethodGet, "/leaderboards", "", staff).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/leaderboards?quarter_range_id=3&grade=8", "", staff).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/leaderboards?quarter_range_id=3&offset=x", "", staff).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a student reads their points", func() {
			w := do(mux, http.MethodGet, "/user-points?quarter_range_id=3", "", token(42, model.RoleStudent))

			Convey("Then the token's user is used", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastUserID, ShouldEqual, 42)
				So(w.Body.String(), ShouldContainSubstring, `"level":2`)
			})
		})

		Convey("When staff reads user points", func() {
			So(do(mux, http.MethodGet, "/user-points?quarter_range_id=3", "", staff).Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("When the quarter of the points is unknown", func() {
			deps.pointsErr = winners.ErrQuarterNotFound
			So(do(mux, http.MethodGet, "/user-points?quarter_range_id=3", "", token(42, model.RoleStudent)).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When a quarter has no past winners", func() {
			w := do(mux, http.MethodGet, "/past-winners?quarter_range_id=3", "", staff)

			Convey("Then an empty list is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})
		})

		Convey("When the past quarter is requested", func() {
			So(do(mux, http.MethodGet, "/past-quarter", "", staff).Code, ShouldEqual, http.StatusOK)
			deps.quarterErr = winners.ErrQuarterNotFound
			So(do(mux, http.MethodGet, "/past-quarter", "", staff).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
