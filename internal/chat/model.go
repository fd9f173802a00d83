package chat

import (
	"time"

	"github.com/google/uuid"
)

// Session is a roleplay training session. The LLM plays a customer
// described by the scenario while the trainee answers as the agent.
type Session struct {
	ID              uuid.UUID `json:"id"`
	OwnerUserID     uuid.UUID `json:"owner_user_id"`
	Scenario        string    `json:"scenario"`
	CustomerPersona string    `json:"customer_persona,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Entry is one turn of the conversation.
type Entry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type StartSessionRequest struct {
	Scenario        string `json:"scenario" validate:"required,min=1,max=2000"`
	CustomerPersona string `json:"customer_persona" validate:"max=1000"`
}

type SendMessageRequest struct {
	Message string `json:"message" validate:"required,min=1,max=4000"`
}

// SessionView is the full session returned to the client.
type SessionView struct {
	*Session
	History []Entry `json:"history"`
}

// Reply is the response to one trainee message.
type Reply struct {
	SessionID uuid.UUID `json:"session_id"`
	Message   string    `json:"message"`
}
