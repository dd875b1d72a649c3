package api

import (
	"net/http"

	"github.com/okian/spms/internal/adapters/http/auth"
	"github.com/okian/spms/internal/domain/model"
)

// StandingsHandler serves leaderboards, a student's own points and the
// history of past quarters.
type StandingsHandler struct {
	deps StandingsDependencies

	leaderboard http.HandlerFunc
	userPoints  http.HandlerFunc
	pastWinners http.HandlerFunc
	pastQuarter http.HandlerFunc
}

// NewStandingsHandler creates a new standings handler.
func NewStandingsHandler(deps StandingsDependencies, verifier *auth.Verifier) *StandingsHandler {
	h := &StandingsHandler{deps: deps}
	h.leaderboard = verifier.Require(h.handleLeaderboard)
	h.userPoints = verifier.Require(h.handleUserPoints, model.RoleStudent)
	h.pastWinners = verifier.Require(h.handlePastWinners)
	h.pastQuarter = verifier.Require(h.handlePastQuarter)
	return h
}

// HandleLeaderboard handles GET /leaderboards?quarter_range_id&grade&limit&offset.
func (h *StandingsHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	h.serveGet(w, r, h.leaderboard)
}

// HandleUserPoints handles GET /user-points?quarter_range_id for the calling student.
func (h *StandingsHandler) HandleUserPoints(w http.ResponseWriter, r *http.Request) {
	h.serveGet(w, r, h.userPoints)
}

// HandlePastWinners handles GET /past-winners?quarter_range_id.
func (h *StandingsHandler) HandlePastWinners(w http.ResponseWriter, r *http.Request) {
	h.serveGet(w, r, h.pastWinners)
}

// HandlePastQuarter handles GET /past-quarter.
func (h *StandingsHandler) HandlePastQuarter(w http.ResponseWriter, r *http.Request) {
	h.serveGet(w, r, h.pastQuarter)
}

func (h *StandingsHandler) serveGet(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	if r.Method != http.MethodGet {
		writeFailure(w, NewKind("api.standings", ErrMethodNotAllowed))
		return
	}
	next(w, r)
}

func (h *StandingsHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	q := r.URL.Query()
	quarterID, err := requireInt64(q, "quarter_range_id")
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	grade, err := queryGrade(q)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	limit, err := queryInt(q, "limit", 0)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	offset, err := queryInt(q, "offset", 0)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	page, err := h.deps.Leaderboard(r.Context(), quarterID, grade, limit, offset)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *StandingsHandler) handleUserPoints(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_user_points"
	quarterID, err := requireInt64(r.URL.Query(), "quarter_range_id")
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, _ := auth.FromContext(r.Context())
	points, err := h.deps.UserPoints(r.Context(), quarterID, p.UserID)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *StandingsHandler) handlePastWinners(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_past_winners"
	quarterID, err := requireInt64(r.URL.Query(), "quarter_range_id")
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	past, err := h.deps.PastWinners(r.Context(), quarterID)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if past == nil {
		past = []model.Winner{}
	}
	writeJSON(w, http.StatusOK, past)
}

func (h *StandingsHandler) handlePastQuarter(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_past_quarter"
	quarter, err := h.deps.PastQuarter(r.Context())
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, quarter)
}
