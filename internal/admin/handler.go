package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/supportiq-platform/supportiq/internal/api"
	"github.com/supportiq-platform/supportiq/internal/audit"
	"github.com/supportiq-platform/supportiq/internal/auth"
	"github.com/supportiq-platform/supportiq/internal/events"
	"github.com/supportiq-platform/supportiq/internal/usage"
	"github.com/supportiq-platform/supportiq/internal/users"
)

type Handler struct {
	users     *users.Service
	usage     *usage.Service
	audit     *audit.Repository
	publisher *events.Publisher
	validate  *validator.Validate
}

// NewHandler builds the admin console handler. publisher may be nil
// when NATS is not configured; audit events are then skipped.
func NewHandler(userSvc *users.Service, usageSvc *usage.Service, auditRepo *audit.Repository, publisher *events.Publisher) *Handler {
	return &Handler{
		users:     userSvc,
		usage:     usageSvc,
		audit:     auditRepo,
		publisher: publisher,
		validate:  validator.New(),
	}
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=agent manager admin"`
}

type setLimitRequest struct {
	MonthlyLimit int `json:"monthly_limit" validate:"required,min=1"`
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params := users.DefaultListParams()
	parsePaging(r, &params.Page, &params.PageSize)

	list, totalCount, err := h.users.List(r.Context(), params)
	if err != nil {
		slog.Error("admin: listing users", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, list, totalCount, params.Page, params.PageSize)
}

func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	targetID, ok := targetUserID(w, r)
	if !ok {
		return
	}

	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	role, err := users.ParseRole(req.Role)
	if err != nil {
		api.HandleError(w, api.NewBadRequestError(err.Error()))
		return
	}

	user, err := h.users.SetRole(r.Context(), targetID, role)
	if err != nil {
		slog.Error("admin: setting role", "user_id", targetID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	h.publishAudit(r, targetID, events.EventRoleChanged, "user",
		fmt.Sprintf("role set to %s", role))

	api.JSON(w, http.StatusOK, user)
}

func (h *Handler) ListUsage(w http.ResponseWriter, r *http.Request) {
	params := usage.DefaultListParams()
	parsePaging(r, &params.Page, &params.PageSize)

	records, totalCount, err := h.usage.List(r.Context(), params)
	if err != nil {
		slog.Error("admin: listing usage records", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, records, totalCount, params.Page, params.PageSize)
}

func (h *Handler) SetLimit(w http.ResponseWriter, r *http.Request) {
	targetID, ok := targetUserID(w, r)
	if !ok {
		return
	}

	var req setLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	rec, err := h.usage.SetLimit(r.Context(), targetID, req.MonthlyLimit)
	if err != nil {
		slog.Error("admin: setting usage limit", "user_id", targetID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	h.publishAudit(r, targetID, events.EventLimitChanged, "usage_record",
		fmt.Sprintf("monthly limit set to %d", req.MonthlyLimit))

	api.JSON(w, http.StatusOK, rec)
}

func (h *Handler) ResetCycle(w http.ResponseWriter, r *http.Request) {
	targetID, ok := targetUserID(w, r)
	if !ok {
		return
	}

	rec, err := h.usage.ResetCycle(r.Context(), targetID)
	if err != nil {
		slog.Error("admin: resetting usage cycle", "user_id", targetID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	h.publishAudit(r, targetID, events.EventCycleReset, "usage_record",
		"billing cycle reset by admin")

	api.JSON(w, http.StatusOK, rec)
}

func (h *Handler) ToggleSuspend(w http.ResponseWriter, r *http.Request) {
	targetID, ok := targetUserID(w, r)
	if !ok {
		return
	}

	rec, err := h.usage.ToggleSuspend(r.Context(), targetID)
	if err != nil {
		slog.Error("admin: toggling suspension", "user_id", targetID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	h.publishAudit(r, targetID, events.EventSuspendToggled, "usage_record",
		fmt.Sprintf("suspended set to %t", rec.Suspended))

	api.JSON(w, http.StatusOK, rec)
}

func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	params := audit.ListParams{
		EventType: r.URL.Query().Get("event_type"),
		Severity:  r.URL.Query().Get("severity"),
	}
	parsePaging(r, &params.Page, &params.PageSize)

	if v := r.URL.Query().Get("target_user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("invalid target_user_id"))
			return
		}
		params.TargetUserID = &id
	}
	if v := r.URL.Query().Get("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("invalid from timestamp"))
			return
		}
		params.From = &ts
	}
	if v := r.URL.Query().Get("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("invalid to timestamp"))
			return
		}
		params.To = &ts
	}

	logs, totalCount, err := h.audit.List(r.Context(), params)
	if err != nil {
		slog.Error("admin: listing audit logs", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, logs, totalCount, params.Page, params.PageSize)
}

// publishAudit emits an audit event for an admin mutation. Failures are
// logged, never surfaced: the mutation itself already succeeded.
func (h *Handler) publishAudit(r *http.Request, targetID uuid.UUID, eventType, resourceType, details string) {
	if h.publisher == nil {
		return
	}

	var actorID uuid.UUID
	if claims := auth.GetUserClaims(r.Context()); claims != nil {
		if parsed, err := uuid.Parse(claims.UserID); err == nil {
			actorID = parsed
		}
	}

	event := events.AuditEvent{
		ActorUserID:  actorID,
		TargetUserID: targetID,
		EventType:    eventType,
		Severity:     "info",
		ResourceType: resourceType,
		ResourceID:   targetID.String(),
		Details:      details,
		Timestamp:    time.Now().UTC(),
	}

	// Detached context so a canceled request does not lose the event.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.publisher.PublishAuditEvent(ctx, event); err != nil {
		slog.Error("publishing audit event", "event_type", eventType, "error", err)
	}
}

func targetUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid user ID"))
		return uuid.Nil, false
	}
	return id, true
}

func parsePaging(r *http.Request, page, pageSize *int) {
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			*page = v
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			*pageSize = v
		}
	}
}
