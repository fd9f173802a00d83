package rubrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDefaultImmutable guards the seeded rubric against deletion.
	ErrDefaultImmutable = errors.New("default rubric cannot be deleted")
	// ErrInvalidWeights means criterion weights do not sum to 100.
	ErrInvalidWeights = errors.New("criterion weights must sum to 100")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, createdBy uuid.UUID, req *CreateRubricRequest) (*Rubric, error) {
	if err := validateWeights(req.Criteria); err != nil {
		return nil, err
	}

	criteriaJSON, err := json.Marshal(req.Criteria)
	if err != nil {
		return nil, fmt.Errorf("marshaling criteria: %w", err)
	}

	now := time.Now()
	row := &RubricRow{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Criteria:    criteriaJSON,
		CreatedBy:   &createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, row); err != nil {
		return nil, err
	}

	return rowToRubric(row)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Rubric, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return rowToRubric(row)
}

func (s *Service) List(ctx context.Context) ([]*Rubric, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*Rubric, 0, len(rows))
	for _, row := range rows {
		r, err := rowToRubric(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, rubric *Rubric, req *UpdateRubricRequest) (*Rubric, error) {
	name := rubric.Name
	if req.Name != nil {
		name = *req.Name
	}
	description := rubric.Description
	if req.Description != nil {
		description = *req.Description
	}
	criteria := rubric.Criteria
	if req.Criteria != nil {
		criteria = *req.Criteria
		if err := validateWeights(criteria); err != nil {
			return nil, err
		}
	}

	criteriaJSON, err := json.Marshal(criteria)
	if err != nil {
		return nil, fmt.Errorf("marshaling criteria: %w", err)
	}

	row := &RubricRow{
		ID:          rubric.ID,
		Name:        name,
		Description: description,
		Criteria:    criteriaJSON,
		IsDefault:   rubric.IsDefault,
		CreatedBy:   rubric.CreatedBy,
		CreatedAt:   rubric.CreatedAt,
		UpdatedAt:   time.Now(),
	}

	if err := s.repo.Update(ctx, row); err != nil {
		return nil, err
	}

	return rowToRubric(row)
}

func (s *Service) Delete(ctx context.Context, rubric *Rubric) error {
	if rubric.IsDefault {
		return ErrDefaultImmutable
	}
	return s.repo.Delete(ctx, rubric.ID)
}

func validateWeights(criteria []Criterion) error {
	total := 0
	for _, c := range criteria {
		total += c.Weight
	}
	if total != 100 {
		return fmt.Errorf("%w, got %d", ErrInvalidWeights, total)
	}
	return nil
}

func rowToRubric(row *RubricRow) (*Rubric, error) {
	var criteria []Criterion
	if err := json.Unmarshal(row.Criteria, &criteria); err != nil {
		return nil, fmt.Errorf("unmarshaling criteria: %w", err)
	}

	return &Rubric{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Criteria:    criteria,
		IsDefault:   row.IsDefault,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}
