package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new user. Everyone starts as an agent; promotion is an
// admin operation.
func (s *Service) Create(ctx context.Context, email, passwordHash, displayName string) (*User, error) {
	now := time.Now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Role:         RoleAgent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, email)
}

func (s *Service) List(ctx context.Context, params ListParams) ([]*User, int64, error) {
	offset := (params.Page - 1) * params.PageSize
	return s.repo.List(ctx, params.PageSize, offset)
}

// SetRole changes a user's role. The new role takes effect in tokens issued
// after the change; outstanding access tokens keep the old role until expiry.
func (s *Service) SetRole(ctx context.Context, id uuid.UUID, role Role) (*User, error) {
	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s vanished after role update", id)
	}
	return user, nil
}
