package repositories

import (
	"context"

	"github.com/sorincom/analize-new/internal/domain/entities"
)

// TestTypeRepository defines the interface for canonical test type storage
type TestTypeRepository interface {
	// Create creates a new test type
	Create(ctx context.Context, testType *entities.TestType) error

	// GetByID retrieves a test type by ID
	GetByID(ctx context.Context, id string) (*entities.TestType, error)

	// List retrieves all test types ordered by standard name
	List(ctx context.Context) ([]*entities.TestType, error)

	// EnsureAlias inserts the (test type, lab, lab test name) triple if it is
	// not already recorded; recording the same triple again is a no-op.
	EnsureAlias(ctx context.Context, alias *entities.LabTestAlias) error

	// ListAliasesByTestType retrieves the recorded naming variants of a test type
	ListAliasesByTestType(ctx context.Context, testTypeID string) ([]*entities.LabTestAlias, error)

	// ListAliases retrieves all recorded aliases
	ListAliases(ctx context.Context) ([]*entities.LabTestAlias, error)
}
