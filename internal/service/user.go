package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/aidar/taskhub/internal/domain"
	"github.com/aidar/taskhub/internal/repository"
)

const (
	defaultUserLimit = 50
	maxUserLimit     = 200
)

// UserService handles business logic for users
type UserService struct {
	userRepo repository.UserRepository
	authz    *Authorizer
}

// NewUserService creates a new UserService
func NewUserService(userRepo repository.UserRepository, authz *Authorizer) *UserService {
	return &UserService{
		userRepo: userRepo,
		authz:    authz,
	}
}

// List returns all users. Admin only
func (s *UserService) List(ctx context.Context, actor *domain.User, page domain.Page) ([]*domain.User, error) {
	if err := s.authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.userRepo.List(ctx, page.Normalize(defaultUserLimit, maxUserLimit))
}

// SetRole changes a user's role. Admin only
func (s *UserService) SetRole(ctx context.Context, actor *domain.User, userID uuid.UUID, role domain.Role) (*domain.User, error) {
	if err := s.authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, domain.NewValidationError("role must be one of: admin, member")
	}

	if err := s.userRepo.SetRole(ctx, userID, role); err != nil {
		return nil, err
	}

	return s.userRepo.GetByID(ctx, userID)
}

// GetByID retrieves a user by ID
func (s *UserService) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}
