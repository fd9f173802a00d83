package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/supportiq-platform/supportiq/internal/api"
	"github.com/supportiq-platform/supportiq/internal/auth"
	"github.com/supportiq-platform/supportiq/internal/llm"
	"github.com/supportiq-platform/supportiq/internal/usage"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requesterID(w, r)
	if !ok {
		return
	}

	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	session, err := h.svc.Start(r.Context(), ownerID, &req)
	if err != nil {
		slog.Error("starting chat session", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, session)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requesterID(w, r)
	if !ok {
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid session ID"))
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	reply, err := h.svc.Send(r.Context(), ownerID, sessionID, req.Message)
	if err != nil {
		h.handleSendError(w, sessionID, err)
		return
	}

	api.JSON(w, http.StatusOK, reply)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requesterID(w, r)
	if !ok {
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid session ID"))
		return
	}

	view, err := h.svc.Get(r.Context(), ownerID, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			api.HandleError(w, api.NewNotFoundError("chat session not found"))
		case errors.Is(err, ErrNotSessionOwner):
			api.HandleError(w, api.ErrOwnershipViolation)
		default:
			slog.Error("fetching chat session", "session_id", sessionID, "error", err)
			api.HandleError(w, api.ErrInternalServer)
		}
		return
	}

	api.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleSendError(w http.ResponseWriter, sessionID uuid.UUID, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		api.HandleError(w, api.NewNotFoundError("chat session not found"))
	case errors.Is(err, ErrNotSessionOwner):
		api.HandleError(w, api.ErrOwnershipViolation)
	case errors.Is(err, usage.ErrLimitExceeded):
		api.HandleError(w, api.ErrInsufficientCredits)
	case errors.Is(err, usage.ErrSuspended):
		api.HandleError(w, api.ErrAccountSuspended)
	case errors.Is(err, llm.ErrProvider):
		slog.Error("chat provider failure", "session_id", sessionID, "error", err)
		api.HandleError(w, api.NewBadGatewayError("chat provider unavailable"))
	default:
		slog.Error("sending chat message", "session_id", sessionID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
	}
}

func requesterID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}
