package transcription

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/supportiq-platform/supportiq/internal/api"
	"github.com/supportiq-platform/supportiq/internal/auth"
	"github.com/supportiq-platform/supportiq/internal/llm"
	"github.com/supportiq-platform/supportiq/internal/usage"
)

// maxUploadBytes caps audio uploads at 25MB, the provider's own limit.
const maxUploadBytes = 25 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Transcribe accepts a multipart upload with an "audio" file part and
// optional "title", "agent_name" and "duration_seconds" fields.
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	ownerID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid or oversized multipart upload"))
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("missing audio file"))
		return
	}
	defer file.Close()

	req := &Request{
		Filename:  header.Filename,
		Audio:     file,
		Title:     r.FormValue("title"),
		AgentName: r.FormValue("agent_name"),
	}
	if d := r.FormValue("duration_seconds"); d != "" {
		if seconds, err := strconv.Atoi(d); err == nil && seconds >= 0 {
			req.DurationSeconds = seconds
		}
	}

	transcript, err := h.svc.Run(r.Context(), ownerID, req)
	if err != nil {
		switch {
		case errors.Is(err, usage.ErrLimitExceeded):
			api.HandleError(w, api.ErrInsufficientCredits)
		case errors.Is(err, usage.ErrSuspended):
			api.HandleError(w, api.ErrAccountSuspended)
		case errors.Is(err, llm.ErrProvider):
			slog.Error("transcription provider failure", "filename", header.Filename, "error", err)
			api.HandleError(w, api.NewBadGatewayError("transcription provider unavailable"))
		default:
			slog.Error("running transcription", "filename", header.Filename, "error", err)
			api.HandleError(w, api.ErrInternalServer)
		}
		return
	}

	api.JSON(w, http.StatusCreated, transcript)
}
