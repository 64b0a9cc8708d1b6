package repositories

import (
	"context"

	"github.com/sorincom/analize-new/internal/domain/entities"
)

// LabRepository defines the interface for canonical lab storage
type LabRepository interface {
	// Create creates a new lab
	Create(ctx context.Context, lab *entities.Lab) error

	// GetByID retrieves a lab by ID
	GetByID(ctx context.Context, id string) (*entities.Lab, error)

	// List retrieves all labs ordered by name
	List(ctx context.Context) ([]*entities.Lab, error)

	// FillMissingFields sets the descriptor's contact fields on the lab row
	// only where the stored column is currently NULL. Non-null fields are
	// never overwritten, which keeps enrichment monotonic.
	FillMissingFields(ctx context.Context, id string, descriptor entities.LabDescriptor) error
}
