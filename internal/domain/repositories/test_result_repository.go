package repositories

import (
	"context"

	"github.com/sorincom/analize-new/internal/domain/entities"
)

// TestResultRepository defines the interface for test result storage
type TestResultRepository interface {
	// GetByNaturalKey retrieves the single result stored for the key, or a
	// not-found error
	GetByNaturalKey(ctx context.Context, key entities.ResultKey) (*entities.TestResult, error)

	// Insert stores a new result. A natural-key collision with a concurrently
	// inserted row surfaces as a conflict error so the caller can re-run its
	// check-then-write sequence.
	Insert(ctx context.Context, result *entities.TestResult) error

	// Update rewrites the mutable fields of an existing result
	Update(ctx context.Context, result *entities.TestResult) error

	// ListByUser retrieves all results for a user in timeline order
	// (test_date, then source document id for a stable tiebreak)
	ListByUser(ctx context.Context, userID string) ([]*entities.TestResult, error)

	// ListByUserAndTestType retrieves one test type's history for a user in
	// timeline order
	ListByUserAndTestType(ctx context.Context, userID, testTypeID string) ([]*entities.TestResult, error)
}
