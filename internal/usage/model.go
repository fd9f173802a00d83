package usage

import (
	"time"

	"github.com/google/uuid"
)

// Operation identifies which kind of paid work a credit spend belongs to.
type Operation string

const (
	OpAnalysis      Operation = "analysis"
	OpTranscription Operation = "transcription"
	OpChat          Operation = "chat"
)

// UsageRecord matches the usage_records table schema: one row per user
// covering the current billing cycle.
type UsageRecord struct {
	UserID              uuid.UUID `json:"user_id"`
	CreditsUsed         int       `json:"credits_used"`
	MonthlyLimit        int       `json:"monthly_limit"`
	AnalysesCount       int       `json:"analyses_count"`
	TranscriptionsCount int       `json:"transcriptions_count"`
	ChatMessagesCount   int       `json:"chat_messages_count"`
	ResetDate           time.Time `json:"reset_date"`
	Suspended           bool      `json:"suspended"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Remaining returns the credits left in the current cycle, never negative.
// Concurrent spends can overshoot the limit, so clamp.
func (r *UsageRecord) Remaining() int {
	if r.CreditsUsed >= r.MonthlyLimit {
		return 0
	}
	return r.MonthlyLimit - r.CreditsUsed
}

// DenyReason tells a caller why CheckLimit said no. Over-quota and suspension
// are distinct outcomes so the UI can present them differently.
type DenyReason string

const (
	ReasonAllowed       DenyReason = ""
	ReasonLimitExceeded DenyReason = "limit_exceeded"
	ReasonSuspended     DenyReason = "suspended"
)

// Costs is the per-operation credit price list. It is built from config at
// startup and never mutated afterwards.
type Costs struct {
	Analysis      int
	Transcription int
	ChatMessage   int
}

// For returns the credit cost of op. Unknown operations cost nothing.
func (c Costs) For(op Operation) int {
	switch op {
	case OpAnalysis:
		return c.Analysis
	case OpTranscription:
		return c.Transcription
	case OpChat:
		return c.ChatMessage
	default:
		return 0
	}
}

type ListParams struct {
	Page     int
	PageSize int
}

func DefaultListParams() ListParams {
	return ListParams{
		Page:     1,
		PageSize: 20,
	}
}
