package rubrics

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	rows map[uuid.UUID]*RubricRow
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[uuid.UUID]*RubricRow)}
}

func (f *fakeRepo) Create(_ context.Context, row *RubricRow) error {
	cp := *row
	f.rows[row.ID] = &cp
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*RubricRow, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeRepo) List(_ context.Context) ([]*RubricRow, error) {
	var out []*RubricRow
	for _, row := range f.rows {
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeRepo) Update(_ context.Context, row *RubricRow) error {
	cp := *row
	f.rows[row.ID] = &cp
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.rows, id)
	return nil
}

func validCriteria() []Criterion {
	return []Criterion{
		{Name: "Empathy", Weight: 40, Guidance: "Acknowledges the customer's frustration"},
		{Name: "Resolution", Weight: 40, Guidance: "Solves the stated problem"},
		{Name: "Professionalism", Weight: 20},
	}
}

func TestCreate_RoundTripsCriteria(t *testing.T) {
	svc := NewService(newFakeRepo())
	creator := uuid.New()

	rubric, err := svc.Create(context.Background(), creator, &CreateRubricRequest{
		Name:     "Support Call QA",
		Criteria: validCriteria(),
	})
	require.NoError(t, err)
	require.Len(t, rubric.Criteria, 3)
	assert.Equal(t, "Empathy", rubric.Criteria[0].Name)
	assert.Equal(t, 40, rubric.Criteria[0].Weight)
	require.NotNil(t, rubric.CreatedBy)
	assert.Equal(t, creator, *rubric.CreatedBy)

	fetched, err := svc.GetByID(context.Background(), rubric.ID)
	require.NoError(t, err)
	assert.Equal(t, rubric.Criteria, fetched.Criteria)
}

func TestCreate_RejectsBadWeights(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Create(context.Background(), uuid.New(), &CreateRubricRequest{
		Name: "Broken",
		Criteria: []Criterion{
			{Name: "Empathy", Weight: 50},
			{Name: "Resolution", Weight: 30},
		},
	})
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestUpdate_PartialFieldsPreserved(t *testing.T) {
	svc := NewService(newFakeRepo())

	rubric, err := svc.Create(context.Background(), uuid.New(), &CreateRubricRequest{
		Name:        "Support Call QA",
		Description: "Baseline",
		Criteria:    validCriteria(),
	})
	require.NoError(t, err)

	newName := "Support Call QA v2"
	updated, err := svc.Update(context.Background(), rubric, &UpdateRubricRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "Support Call QA v2", updated.Name)
	assert.Equal(t, "Baseline", updated.Description)
	assert.Equal(t, rubric.Criteria, updated.Criteria)
}

func TestDelete_DefaultRubricProtected(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	rubric := &Rubric{ID: uuid.New(), Name: "Standard QA Scorecard", IsDefault: true}
	err := svc.Delete(context.Background(), rubric)
	assert.ErrorIs(t, err, ErrDefaultImmutable)

	custom, err := svc.Create(context.Background(), uuid.New(), &CreateRubricRequest{
		Name:     "Custom",
		Criteria: validCriteria(),
	})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), custom))
	assert.Empty(t, repo.rows)
}
