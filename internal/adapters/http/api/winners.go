package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/spms/internal/adapters/http/auth"
	"github.com/okian/spms/internal/adapters/mq/queue"
	"github.com/okian/spms/internal/domain/model"
	"github.com/okian/spms/internal/domain/types"
	"github.com/okian/spms/internal/domain/winners"
)

const winnersPrefix = "/student-winners/"

// WinnersHandler serves the student winner routes.
type WinnersHandler struct {
	deps WinnerDependencies

	create   http.HandlerFunc
	list     http.HandlerFunc
	get      http.HandlerFunc
	reassign http.HandlerFunc
	remove   http.HandlerFunc
	schedule http.HandlerFunc
}

// NewWinnersHandler creates a new winners handler. Writes require the admin
// role; reads accept any authenticated caller.
func NewWinnersHandler(deps WinnerDependencies, verifier *auth.Verifier) *WinnersHandler {
	h := &WinnersHandler{deps: deps}
	h.create = verifier.Require(h.handleCreate, model.RoleAdmin)
	h.list = verifier.Require(h.handleList)
	h.get = verifier.Require(h.handleGet)
	h.reassign = verifier.Require(h.handleReassign, model.RoleAdmin)
	h.remove = verifier.Require(h.handleDelete, model.RoleAdmin)
	h.schedule = verifier.Require(h.handleSchedule, model.RoleAdmin)
	return h
}

// HandleCollection handles POST and GET /student-winners.
func (h *WinnersHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		writeFailure(w, NewKind("api.winners", ErrMethodNotAllowed))
	}
}

// HandleItem handles GET, PUT and DELETE /student-winners/{id}.
func (h *WinnersHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.reassign(w, r)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		writeFailure(w, NewKind("api.winner", ErrMethodNotAllowed))
	}
}

// HandleJobs handles POST /student-winners/jobs.
func (h *WinnersHandler) HandleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeFailure(w, NewKind("api.winner_jobs", ErrMethodNotAllowed))
		return
	}
	h.schedule(w, r)
}

func (h *WinnersHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.resolve_winners"
	var req quarterRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	created, err := h.deps.ResolveQuarterWinners(r.Context(), req.QuarterID)
	if err != nil && len(created) > 0 {
		// Earlier categories stay committed; report them with the failure.
		err = Wrap(op, err)
		status, code := statusFor(err)
		writeJSON(w, status, partialResolution{
			errorResponse: errorResponse{Code: code, Message: err.Error()},
			Winners:       created,
		})
		return
	}
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *WinnersHandler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "api.schedule_resolution"
	var req quarterRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	ack, err := h.deps.ScheduleResolution(r.Context(), req.QuarterID, queue.ReasonManual)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	status := "accepted"
	if ack.Duplicate {
		status = "duplicate"
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: status, JobAck: ack})
}

func (h *WinnersHandler) handleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_winners"
	q := r.URL.Query()
	var (
		f   types.WinnerFilter
		err error
	)
	if f.QuarterID, err = queryInt64(q, "quarter_range_id"); err == nil {
		if f.UserID, err = queryInt64(q, "student_id"); err == nil {
			if f.Limit, err = queryInt(q, "limit", 0); err == nil {
				f.Offset, err = queryInt(q, "offset", 0)
			}
		}
	}
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	page, err := h.deps.ListWinners(r.Context(), f)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *WinnersHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_winner"
	id, err := pathID(r.URL.Path, winnersPrefix)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	winner, err := h.deps.GetWinner(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, winner)
}

func (h *WinnersHandler) handleReassign(w http.ResponseWriter, r *http.Request) {
	const op = "api.reassign_prize"
	id, err := pathID(r.URL.Path, winnersPrefix)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req prizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	winner, err := h.deps.ReassignPrize(r.Context(), id, req.PrizeID)
	if errors.Is(err, winners.ErrPrizeNotFound) {
		// An unknown prize is a missing resource here, not a resolution conflict.
		writeError(w, http.StatusNotFound, "prize_not_found", Wrap(op, err))
		return
	}
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, winner)
}

func (h *WinnersHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_winner"
	id, err := pathID(r.URL.Path, winnersPrefix)
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.DeleteWinner(r.Context(), id); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type validator interface {
	validate() error
}

func decodeBody(r *http.Request, v validator) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return v.validate()
}
