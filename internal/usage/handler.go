package usage

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/supportiq-platform/supportiq/internal/api"
	"github.com/supportiq-platform/supportiq/internal/auth"
)

// Handler exposes the authenticated user's own ledger state.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// UsageStatus is the API shape: the record plus derived remaining credits
// and the price list so the UI can show costs without hardcoding them.
type UsageStatus struct {
	*UsageRecord
	RemainingCredits int `json:"remaining_credits"`
	CostPerOperation struct {
		Analysis      int `json:"analysis"`
		Transcription int `json:"transcription"`
		ChatMessage   int `json:"chat_message"`
	} `json:"cost_per_operation"`
}

func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	rec, err := h.svc.Get(r.Context(), userID)
	if rec == nil {
		slog.Error("getting usage", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if err != nil {
		// Rollover could not be persisted; serve the pre-rollover state.
		slog.Warn("serving pre-rollover usage", "user_id", userID, "error", err)
	}

	status := &UsageStatus{UsageRecord: rec, RemainingCredits: rec.Remaining()}
	costs := h.svc.Costs()
	status.CostPerOperation.Analysis = costs.Analysis
	status.CostPerOperation.Transcription = costs.Transcription
	status.CostPerOperation.ChatMessage = costs.ChatMessage

	api.JSON(w, http.StatusOK, status)
}
