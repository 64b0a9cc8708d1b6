package services

import (
	"context"

	"github.com/sorincom/analize-new/internal/domain/entities"
	"github.com/sorincom/analize-new/internal/domain/repositories"
)

// TimelineService exposes a user's longitudinal history, ordered by test
// date with the source document id as a stable tiebreak.
type TimelineService struct {
	resultRepo repositories.TestResultRepository
}

// NewTimelineService creates a new timeline service
func NewTimelineService(resultRepo repositories.TestResultRepository) *TimelineService {
	return &TimelineService{resultRepo: resultRepo}
}

// ListByUser retrieves all results for a user in timeline order
func (s *TimelineService) ListByUser(ctx context.Context, userID string) ([]*entities.TestResult, error) {
	return s.resultRepo.ListByUser(ctx, userID)
}

// ListByUserAndTestType retrieves one test type's history for a user
func (s *TimelineService) ListByUserAndTestType(ctx context.Context, userID, testTypeID string) ([]*entities.TestResult, error) {
	return s.resultRepo.ListByUserAndTestType(ctx, userID, testTypeID)
}
