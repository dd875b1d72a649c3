// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/spms/internal/adapters/http/auth"
	"github.com/okian/spms/internal/domain/model"
	"github.com/okian/spms/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	WinnerDependencies
	StandingsDependencies
}

// WinnerDependencies covers winner resolution and the winner ledger.
type WinnerDependencies interface {
	ResolveQuarterWinners(ctx context.Context, quarterID int64) ([]model.Winner, error)
	ScheduleResolution(ctx context.Context, quarterID int64, reason string) (types.JobAck, error)
	ReassignPrize(ctx context.Context, winnerID, prizeID int64) (model.Winner, error)
	ListWinners(ctx context.Context, f types.WinnerFilter) (types.Page[model.Winner], error)
	GetWinner(ctx context.Context, id int64) (model.Winner, error)
	DeleteWinner(ctx context.Context, id int64) error
}

// StandingsDependencies covers the read-only point and history views.
type StandingsDependencies interface {
	Leaderboard(ctx context.Context, quarterID int64, grade *int, limit, offset int) (types.Page[types.LeaderboardEntry], error)
	UserPoints(ctx context.Context, quarterID, userID int64) (types.UserPoints, error)
	PastWinners(ctx context.Context, quarterID int64) ([]model.Winner, error)
	PastQuarter(ctx context.Context) (model.Quarter, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	winnersHandler   *WinnersHandler
	standingsHandler *StandingsHandler
}

// NewServer creates a new API server with all handlers. Protected routes
// are checked by verifier.
func NewServer(deps Dependencies, statsProvider StatsProvider, verifier *auth.Verifier) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		winnersHandler:   NewWinnersHandler(deps, verifier),
		standingsHandler: NewStandingsHandler(deps, verifier),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/student-winners/jobs", MetricsMiddleware(s.winnersHandler.HandleJobs, "winner_jobs"))
	mux.HandleFunc("/student-winners/", MetricsMiddleware(s.winnersHandler.HandleItem, "winner"))
	mux.HandleFunc("/student-winners", MetricsMiddleware(s.winnersHandler.HandleCollection, "winners"))
	mux.HandleFunc("/leaderboards", MetricsMiddleware(s.standingsHandler.HandleLeaderboard, "leaderboards"))
	mux.HandleFunc("/user-points", MetricsMiddleware(s.standingsHandler.HandleUserPoints, "user_points"))
	mux.HandleFunc("/past-winners", MetricsMiddleware(s.standingsHandler.HandlePastWinners, "past_winners"))
	mux.HandleFunc("/past-quarter", MetricsMiddleware(s.standingsHandler.HandlePastQuarter, "past_quarter"))
}

// quarterRequest is the body of POST /student-winners and
// POST /student-winners/jobs.
type quarterRequest struct {
	QuarterID int64 `json:"quarter_range_id"`
}

func (q quarterRequest) validate() error {
	if q.QuarterID <= 0 {
		return errors.New("quarter_range_id must be positive")
	}
	return nil
}

// prizeRequest is the body of PUT /student-winners/{id}.
type prizeRequest struct {
	PrizeID int64 `json:"prize_id"`
}

func (p prizeRequest) validate() error {
	if p.PrizeID <= 0 {
		return errors.New("prize_id must be positive")
	}
	return nil
}

type ackResponse struct {
	Status string `json:"status"`
	types.JobAck
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// partialResolution reports winners committed before a resolution failed.
type partialResolution struct {
	errorResponse
	Winners []model.Winner `json:"winners"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure picks the status from the error chain.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}

// authError renders rejections from auth.Verifier.
func authError(w http.ResponseWriter, _ *http.Request, err error) {
	writeFailure(w, err)
}

// NewVerifier returns an auth.Verifier that renders failures as API errors.
func NewVerifier(signingKey, issuer string) *auth.Verifier {
	return auth.NewVerifier(signingKey, issuer, authError)
}
