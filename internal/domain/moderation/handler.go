package moderation

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mwork/moderation-api/internal/middleware"
	"github.com/mwork/moderation-api/internal/pkg/errorhandler"
	"github.com/mwork/moderation-api/internal/pkg/response"
	"github.com/mwork/moderation-api/internal/pkg/validator"
)

// Handler handles admin moderation HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates moderation handler
func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		response.NotFound(w, "Account not found")
	case errors.Is(err, ErrOperatorRequired):
		response.Unauthorized(w, "Operator is required")
	case errors.Is(err, ErrReasonRequired):
		response.ValidationError(w, map[string]string{"reason": "This field is required"})
	case errors.Is(err, ErrInvalidAction):
		response.ValidationError(w, map[string]string{"action": "Invalid action"})
	case errors.Is(err, ErrInvalidViolation):
		response.ValidationError(w, map[string]string{"kind": "Invalid violation kind"})
	case errors.Is(err, ErrProbationInThePast):
		response.ValidationError(w, map[string]string{"until": "Must be in the future"})
	default:
		errorhandler.HandleInternal(r.Context(), w, err)
	}
}

func accountIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid account ID")
		return uuid.Nil, false
	}
	return id, true
}

// decode reads and validates a request body
func decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := response.DecodeJSON(r.Body, req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return false
	}
	if errs := validator.Validate(req); errs != nil {
		errorhandler.HandleValidation(r.Context(), w, errs)
		return false
	}
	return true
}

// GetProfile returns an account's moderation profile
// GET /accounts/{id}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	acc, err := h.service.Profile(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, NewProfileResponse(acc, h.service.nowFn()))
}

// ListEvents lists the account's audit log
// GET /accounts/{id}/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > h.service.cfg.EventCap {
		limit = h.service.cfg.EventCap
	}

	events, err := h.service.Events(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, events)
}

// Override records an operator override
// POST /accounts/{id}/override
func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}
	var req OverrideRequest
	if !decode(w, r, &req) {
		return
	}

	ev, err := h.service.Override(r.Context(), id, req.Action, req.Reason, middleware.GetOperatorID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, ev)
}

// Mute mutes an account
// POST /accounts/{id}/mute
func (h *Handler) Mute(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}
	var req MuteRequest
	if !decode(w, r, &req) {
		return
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	ev, err := h.service.MuteAccount(r.Context(), id, middleware.GetOperatorID(r.Context()), duration, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, ev)
}

// Unmute lifts a mute
// POST /accounts/{id}/unmute
func (h *Handler) Unmute(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}
	var req ReasonRequest
	if !decode(w, r, &req) {
		return
	}

	ev, err := h.service.UnmuteAccount(r.Context(), id, middleware.GetOperatorID(r.Context()), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, ev)
}

// SetProbation opens or closes probation
// PUT /accounts/{id}/probation
func (h *Handler) SetProbation(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}
	var req ProbationRequest
	if !decode(w, r, &req) {
		return
	}

	ev, err := h.service.SetProbation(r.Context(), id, middleware.GetOperatorID(r.Context()), req.Until, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, ev)
}

// SetRisk stores the risk score
// PUT /accounts/{id}/risk
func (h *Handler) SetRisk(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}
	var req RiskRequest
	if !decode(w, r, &req) {
		return
	}

	ev, err := h.service.SetRisk(r.Context(), id, middleware.GetOperatorID(r.Context()), req.Score, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, ev)
}

// SetAutoMute toggles auto-mute
// PUT /accounts/{id}/auto-mute
func (h *Handler) SetAutoMute(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}
	var req AutoMuteRequest
	if !decode(w, r, &req) {
		return
	}

	ev, err := h.service.SetAutoMute(r.Context(), id, middleware.GetOperatorID(r.Context()), req.Enabled, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, ev)
}

// RecordViolation records a spam / slur / speech violation
// POST /accounts/{id}/violations
func (h *Handler) RecordViolation(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}
	var req ViolationRequest
	if !decode(w, r, &req) {
		return
	}

	operatorID := middleware.GetOperatorID(r.Context())
	rep := ViolationReport{
		Kind:        ViolationKind(req.Kind),
		Reason:      req.Reason,
		Content:     req.Content,
		ContentType: ContentKind(req.ContentType),
		ContentID:   req.ContentID,
	}
	// the risk service reports automated detections
	if middleware.GetOperatorRole(r.Context()) != middleware.RoleRiskService {
		rep.OperatorID = &operatorID
	}

	ev, err := h.service.RecordViolation(r.Context(), id, rep)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, ev)
}

// AddNote appends an operator note
// POST /accounts/{id}/notes
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}
	var req NoteRequest
	if !decode(w, r, &req) {
		return
	}

	ev, err := h.service.AddNote(r.Context(), id, middleware.GetOperatorID(r.Context()), req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, ev)
}

// Evaluate runs the pipeline without side effects
// POST /evaluate
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateDryRunRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.service.Preview(r.Context(), EvaluateRequest{
		AccountID:     req.AccountID,
		Content:       req.Content,
		ContentType:   ContentKind(req.ContentType),
		RecentContent: req.RecentContent,
		UserContext:   req.UserContext,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, res)
}
