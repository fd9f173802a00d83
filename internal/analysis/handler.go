package analysis

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
	"github.com/supportiq-platform/supportiq/internal/transcripts"
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

// Run scores the transcript already resolved by the ownership middleware.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	transcript := transcripts.GetTranscriptFromContext(r.Context())
	if transcript == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	var req RunAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	ownerID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	rubricID, _ := uuid.Parse(req.RubricID)

	result, err := h.svc.Run(r.Context(), ownerID, transcript, rubricID)
	if err != nil {
		switch {
		case errors.Is(err, usage.ErrLimitExceeded):
			api.HandleError(w, api.ErrInsufficientCredits)
		case errors.Is(err, usage.ErrSuspended):
			api.HandleError(w, api.ErrAccountSuspended)
		case errors.Is(err, llm.ErrProvider):
			slog.Error("analysis provider failure", "transcript_id", transcript.ID, "error", err)
			api.HandleError(w, api.NewBadGatewayError("analysis provider unavailable"))
		default:
			slog.Error("running analysis", "transcript_id", transcript.ID, "error", err)
			api.HandleError(w, api.ErrInternalServer)
		}
		return
	}

	api.JSON(w, http.StatusCreated, result)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	transcript := transcripts.GetTranscriptFromContext(r.Context())
	if transcript == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	list, err := h.svc.ListByTranscript(r.Context(), transcript.ID)
	if err != nil {
		slog.Error("listing analyses", "transcript_id", transcript.ID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	transcript := transcripts.GetTranscriptFromContext(r.Context())
	if transcript == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	analysisID, err := uuid.Parse(chi.URLParam(r, "analysisID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid analysis ID"))
		return
	}

	result, err := h.svc.GetByID(r.Context(), analysisID)
	if err != nil {
		slog.Error("fetching analysis", "analysis_id", analysisID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	// The ownership middleware checked the transcript, so also pin the
	// analysis to it.
	if result == nil || result.TranscriptID != transcript.ID {
		api.HandleError(w, api.NewNotFoundError("analysis not found"))
		return
	}

	api.JSON(w, http.StatusOK, result)
}
