package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sorincom/analize-new/internal/domain/entities"
	"github.com/sorincom/analize-new/internal/domain/repositories"
	apperrors "github.com/sorincom/analize-new/pkg/errors"
)

// UserService handles user profile management
type UserService struct {
	userRepo repositories.UserRepository
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// Create registers a new user profile
func (s *UserService) Create(ctx context.Context, name, sex string, dateOfBirth time.Time) (*entities.User, error) {
	if name == "" {
		return nil, apperrors.NewValidationError("user name is required")
	}
	switch sex {
	case "M", "F", "O":
	default:
		return nil, apperrors.NewValidationError("sex must be M, F or O")
	}
	if dateOfBirth.IsZero() {
		return nil, apperrors.NewValidationError("date of birth is required")
	}

	user := &entities.User{
		ID:          uuid.NewString(),
		Name:        name,
		Sex:         sex,
		DateOfBirth: dateOfBirth,
		CreatedAt:   time.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (s *UserService) GetByID(ctx context.Context, id string) (*entities.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// List retrieves all users
func (s *UserService) List(ctx context.Context) ([]*entities.User, error) {
	return s.userRepo.List(ctx)
}
