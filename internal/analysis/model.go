package analysis

import (
	"time"

	"github.com/google/uuid"
)

// CriterionScore is the graded result for one rubric criterion.
type CriterionScore struct {
	Name    string `json:"name"`
	Weight  int    `json:"weight"`
	Score   int    `json:"score"`
	Comment string `json:"comment,omitempty"`
}

type Analysis struct {
	ID              uuid.UUID        `json:"id"`
	TranscriptID    uuid.UUID        `json:"transcript_id"`
	RubricID        uuid.UUID        `json:"rubric_id"`
	OwnerUserID     uuid.UUID        `json:"owner_user_id"`
	OverallScore    int              `json:"overall_score"`
	CriterionScores []CriterionScore `json:"criterion_scores"`
	Summary         string           `json:"summary,omitempty"`
	CoachingNotes   string           `json:"coaching_notes,omitempty"`
	Model           string           `json:"model,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// AnalysisRow is the database representation with scores as raw JSONB.
type AnalysisRow struct {
	ID              uuid.UUID
	TranscriptID    uuid.UUID
	RubricID        uuid.UUID
	OwnerUserID     uuid.UUID
	OverallScore    int
	CriterionScores []byte
	Summary         string
	CoachingNotes   string
	Model           string
	CreatedAt       time.Time
}

type RunAnalysisRequest struct {
	RubricID string `json:"rubric_id" validate:"required,uuid"`
}
