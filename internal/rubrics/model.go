package rubrics

import (
	"time"

	"github.com/google/uuid"
)

// Criterion is one scored dimension of a rubric. Weights across a
// rubric's criteria are expected to sum to 100.
type Criterion struct {
	Name     string `json:"name" validate:"required,min=1,max=255"`
	Weight   int    `json:"weight" validate:"required,min=1,max=100"`
	Guidance string `json:"guidance" validate:"max=2000"`
}

type Rubric struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Criteria    []Criterion `json:"criteria"`
	IsDefault   bool        `json:"is_default"`
	CreatedBy   *uuid.UUID  `json:"created_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// RubricRow is the database representation with criteria as raw JSONB.
type RubricRow struct {
	ID          uuid.UUID
	Name        string
	Description string
	Criteria    []byte
	IsDefault   bool
	CreatedBy   *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateRubricRequest struct {
	Name        string      `json:"name" validate:"required,min=1,max=255"`
	Description string      `json:"description" validate:"max=1000"`
	Criteria    []Criterion `json:"criteria" validate:"required,min=1,dive"`
}

type UpdateRubricRequest struct {
	Name        *string      `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string      `json:"description" validate:"omitempty,max=1000"`
	Criteria    *[]Criterion `json:"criteria" validate:"omitempty,min=1,dive"`
}
