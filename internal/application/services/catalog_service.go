package services

import (
	"context"

	"github.com/sorincom/analize-new/internal/domain/entities"
	"github.com/sorincom/analize-new/internal/domain/repositories"
)

// CatalogService exposes read access to the resolved canonical entities for
// audit and review collaborators.
type CatalogService struct {
	labRepo      repositories.LabRepository
	testTypeRepo repositories.TestTypeRepository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(labRepo repositories.LabRepository, testTypeRepo repositories.TestTypeRepository) *CatalogService {
	return &CatalogService{
		labRepo:      labRepo,
		testTypeRepo: testTypeRepo,
	}
}

// ListLabs retrieves all canonical labs
func (s *CatalogService) ListLabs(ctx context.Context) ([]*entities.Lab, error) {
	return s.labRepo.List(ctx)
}

// GetLab retrieves one lab
func (s *CatalogService) GetLab(ctx context.Context, id string) (*entities.Lab, error) {
	return s.labRepo.GetByID(ctx, id)
}

// ListTestTypes retrieves all canonical test types
func (s *CatalogService) ListTestTypes(ctx context.Context) ([]*entities.TestType, error) {
	return s.testTypeRepo.List(ctx)
}

// GetTestType retrieves one test type
func (s *CatalogService) GetTestType(ctx context.Context, id string) (*entities.TestType, error) {
	return s.testTypeRepo.GetByID(ctx, id)
}

// ListAliases retrieves the recorded naming variants of a test type
func (s *CatalogService) ListAliases(ctx context.Context, testTypeID string) ([]*entities.LabTestAlias, error) {
	return s.testTypeRepo.ListAliasesByTestType(ctx, testTypeID)
}
