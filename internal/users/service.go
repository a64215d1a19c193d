package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownPlan rejects plan names outside the known set.
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrUserNotFound reports a write against a missing user row.
	ErrUserNotFound = errors.New("user not found")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, email, passwordHash string) (*User, error) {
	now := time.Now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Plan:         PlanFree,
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

// ChangePlan moves the user onto another subscription plan and returns
// the updated row. Quota limits follow the plan claim in the access
// token, so the new limits take effect when the token is next refreshed.
func (s *Service) ChangePlan(ctx context.Context, id uuid.UUID, plan string) (*User, error) {
	if !ValidPlan(plan) {
		return nil, ErrUnknownPlan
	}
	if err := s.repo.UpdatePlan(ctx, id, plan); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}
