package repositories

import (
	"context"

	"github.com/sorincom/analize-new/internal/domain/entities"
)

// UserRepository defines the interface for user profile storage
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// List retrieves all users ordered by name
	List(ctx context.Context) ([]*entities.User, error)
}
