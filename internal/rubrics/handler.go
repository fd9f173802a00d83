package rubrics

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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		slog.Error("listing rubrics", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rubric, ok := h.fetchRubric(w, r)
	if !ok {
		return
	}

	api.JSON(w, http.StatusOK, rubric)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreateRubricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	createdBy, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	rubric, err := h.svc.Create(r.Context(), createdBy, &req)
	if err != nil {
		if errors.Is(err, ErrInvalidWeights) {
			api.HandleError(w, api.NewValidationError(err.Error()))
			return
		}
		slog.Error("creating rubric", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, rubric)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	rubric, ok := h.fetchRubric(w, r)
	if !ok {
		return
	}

	var req UpdateRubricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	updated, err := h.svc.Update(r.Context(), rubric, &req)
	if err != nil {
		if errors.Is(err, ErrInvalidWeights) {
			api.HandleError(w, api.NewValidationError(err.Error()))
			return
		}
		slog.Error("updating rubric", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	rubric, ok := h.fetchRubric(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), rubric); err != nil {
		if errors.Is(err, ErrDefaultImmutable) {
			api.HandleError(w, api.NewBadRequestError(err.Error()))
			return
		}
		slog.Error("deleting rubric", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "rubric deleted successfully")
}

func (h *Handler) fetchRubric(w http.ResponseWriter, r *http.Request) (*Rubric, bool) {
	rubricID, err := uuid.Parse(chi.URLParam(r, "rubricID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid rubric ID"))
		return nil, false
	}

	rubric, err := h.svc.GetByID(r.Context(), rubricID)
	if err != nil {
		slog.Error("fetching rubric", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return nil, false
	}
	if rubric == nil {
		api.HandleError(w, api.NewNotFoundError("rubric not found"))
		return nil, false
	}
	return rubric, true
}
