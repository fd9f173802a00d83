package events

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEvents = "SUPPORTIQ_EVENTS"
)

// Subject constants.
const (
	SubjectAuditEvent = "supportiq.events.audit"
)

// Audit event types.
const (
	EventRoleChanged    = "role_changed"
	EventLimitChanged   = "limit_changed"
	EventCycleReset     = "cycle_reset"
	EventSuspendToggled = "suspend_toggled"
	EventUsageDenied    = "usage_denied"
)

// AuditEvent is published for compliance/audit logging. ActorUserID is
// who performed the action, TargetUserID who it was applied to;
// self-inflicted events carry the same ID in both.
type AuditEvent struct {
	ActorUserID  uuid.UUID `json:"actor_user_id"`
	TargetUserID uuid.UUID `json:"target_user_id"`
	EventType    string    `json:"event_type"`
	Severity     string    `json:"severity"` // info, warn, error
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Details      string    `json:"details"`
	Timestamp    time.Time `json:"timestamp"`
}
