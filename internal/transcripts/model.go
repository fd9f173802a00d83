package transcripts

import (
	"time"

	"github.com/google/uuid"
)

// Channel is the medium the conversation happened on.
const (
	ChannelChat  = "chat"
	ChannelVoice = "voice"
	ChannelEmail = "email"
)

// Source records how the transcript entered the system.
const (
	SourceUpload        = "upload"
	SourceTranscription = "transcription"
)

type Transcript struct {
	ID              uuid.UUID  `json:"id"`
	OwnerUserID     uuid.UUID  `json:"owner_user_id"`
	Title           string     `json:"title"`
	Channel         string     `json:"channel"`
	AgentName       string     `json:"agent_name,omitempty"`
	Content         string     `json:"content,omitempty"`
	Source          string     `json:"source"`
	DurationSeconds int        `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// TranscriptRow is the database representation. Content is ciphertext.
type TranscriptRow struct {
	ID              uuid.UUID
	OwnerUserID     uuid.UUID
	Title           string
	Channel         string
	AgentName       string
	Content         string
	Source          string
	DurationSeconds int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

type CreateTranscriptRequest struct {
	Title           string `json:"title" validate:"required,min=1,max=255"`
	Channel         string `json:"channel" validate:"omitempty,oneof=chat voice email"`
	AgentName       string `json:"agent_name" validate:"max=255"`
	Content         string `json:"content" validate:"required,min=1"`
	DurationSeconds int    `json:"duration_seconds" validate:"omitempty,min=0"`
}

type ListTranscriptsParams struct {
	Page     int
	PageSize int
}

func DefaultListParams() ListTranscriptsParams {
	return ListTranscriptsParams{
		Page:     1,
		PageSize: 20,
	}
}
