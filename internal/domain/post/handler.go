package post

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mwork/moderation-api/internal/domain/moderation"
	"github.com/mwork/moderation-api/internal/middleware"
	"github.com/mwork/moderation-api/internal/pkg/errorhandler"
	"github.com/mwork/moderation-api/internal/pkg/response"
	"github.com/mwork/moderation-api/internal/pkg/validator"
)

// Handler handles post HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates post handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var gateErr *GateError
	var blockedErr *BlockedError

	switch {
	case errors.As(err, &gateErr):
		status := http.StatusForbidden
		if gateErr.Result.Reason == moderation.GateReasonDailyPostCap {
			status = http.StatusTooManyRequests
		}
		response.ErrorWithData(w, status, "SUBMISSION_REJECTED", gateErr.Result.Message, gateErr.Result)
	case errors.As(err, &blockedErr):
		resp := PostResponseFromEntity(blockedErr.Post).withDecision(blockedErr.Decision)
		response.ErrorWithData(w, http.StatusUnprocessableEntity, "CONTENT_BLOCKED", "Content was blocked by moderation", resp)
	case errors.Is(err, ErrPostNotFound):
		response.NotFound(w, "Post not found")
	case errors.Is(err, ErrParentNotVisible):
		response.Conflict(w, "Post is not open for comments")
	case errors.Is(err, moderation.ErrAccountNotFound):
		response.Unauthorized(w, "Account not found")
	default:
		errorhandler.HandleInternal(r.Context(), w, err)
	}
}

func decodeCreate(w http.ResponseWriter, r *http.Request) (*CreateRequest, bool) {
	var req CreateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return nil, false
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.HandleValidation(r.Context(), w, errs)
		return nil, false
	}
	return &req, true
}

// Create handles POST /posts
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCreate(w, r)
	if !ok {
		return
	}

	p, decision, err := h.service.CreatePost(r.Context(), middleware.GetUserID(r.Context()), req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, PostResponseFromEntity(p).withDecision(decision))
}

// Comment handles POST /posts/{id}/comments
func (h *Handler) Comment(w http.ResponseWriter, r *http.Request) {
	parentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid post ID")
		return
	}
	req, ok := decodeCreate(w, r)
	if !ok {
		return
	}

	p, decision, err := h.service.CreateComment(r.Context(), middleware.GetUserID(r.Context()), parentID, req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, PostResponseFromEntity(p).withDecision(decision))
}

// Get handles GET /posts/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid post ID")
		return
	}

	p, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// held and blocked posts are only visible to their author
	if !p.IsVisible() && p.AuthorID != middleware.GetUserID(r.Context()) {
		response.NotFound(w, "Post not found")
		return
	}

	response.OK(w, PostResponseFromEntity(p))
}
