package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sorincom/analize-new/internal/domain/entities"
	"github.com/sorincom/analize-new/internal/domain/providers"
	apperrors "github.com/sorincom/analize-new/pkg/errors"
	"github.com/stretchr/testify/mock"
)

type mockMatcher struct {
	mock.Mock
}

func (m *mockMatcher) Resolve(ctx context.Context, descriptor string, shortlist []providers.MatchCandidate) (providers.MatchVerdict, error) {
	args := m.Called(ctx, descriptor, shortlist)
	return args.Get(0).(providers.MatchVerdict), args.Error(1)
}

// memLabRepo is an in-memory LabRepository with the same enrichment
// semantics as the postgres adapter.
type memLabRepo struct {
	mu   sync.Mutex
	labs []*entities.Lab
}

func (r *memLabRepo) Create(ctx context.Context, lab *entities.Lab) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *lab
	r.labs = append(r.labs, &clone)
	return nil
}

func (r *memLabRepo) GetByID(ctx context.Context, id string) (*entities.Lab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lab := range r.labs {
		if lab.ID == id {
			clone := *lab
			return &clone, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("lab with id %s not found", id))
}

func (r *memLabRepo) List(ctx context.Context) ([]*entities.Lab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.Lab, 0, len(r.labs))
	for _, lab := range r.labs {
		clone := *lab
		out = append(out, &clone)
	}
	return out, nil
}

func (r *memLabRepo) FillMissingFields(ctx context.Context, id string, descriptor entities.LabDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lab := range r.labs {
		if lab.ID != id {
			continue
		}
		if lab.Address == nil {
			lab.Address = descriptor.Address
		}
		if lab.Phone == nil {
			lab.Phone = descriptor.Phone
		}
		if lab.Email == nil {
			lab.Email = descriptor.Email
		}
		if lab.Accreditation == nil {
			lab.Accreditation = descriptor.Accreditation
		}
		return nil
	}
	return apperrors.NewNotFoundError(fmt.Sprintf("lab with id %s not found", id))
}

// memTestTypeRepo is an in-memory TestTypeRepository with idempotent alias
// recording.
type memTestTypeRepo struct {
	mu      sync.Mutex
	types   []*entities.TestType
	aliases []*entities.LabTestAlias
}

func (r *memTestTypeRepo) Create(ctx context.Context, testType *entities.TestType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *testType
	r.types = append(r.types, &clone)
	return nil
}

func (r *memTestTypeRepo) GetByID(ctx context.Context, id string) (*entities.TestType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, testType := range r.types {
		if testType.ID == id {
			clone := *testType
			return &clone, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("test type with id %s not found", id))
}

func (r *memTestTypeRepo) List(ctx context.Context) ([]*entities.TestType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.TestType, 0, len(r.types))
	for _, testType := range r.types {
		clone := *testType
		out = append(out, &clone)
	}
	return out, nil
}

func (r *memTestTypeRepo) EnsureAlias(ctx context.Context, alias *entities.LabTestAlias) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.aliases {
		if existing.TestTypeID == alias.TestTypeID &&
			existing.LabID == alias.LabID &&
			existing.LabTestName == alias.LabTestName {
			return nil
		}
	}
	clone := *alias
	r.aliases = append(r.aliases, &clone)
	return nil
}

func (r *memTestTypeRepo) ListAliasesByTestType(ctx context.Context, testTypeID string) ([]*entities.LabTestAlias, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.LabTestAlias
	for _, alias := range r.aliases {
		if alias.TestTypeID == testTypeID {
			clone := *alias
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memTestTypeRepo) ListAliases(ctx context.Context) ([]*entities.LabTestAlias, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.LabTestAlias, 0, len(r.aliases))
	for _, alias := range r.aliases {
		clone := *alias
		out = append(out, &clone)
	}
	return out, nil
}

// memResultRepo is an in-memory TestResultRepository that enforces the
// natural-key unique constraint the way postgres does.
type memResultRepo struct {
	mu      sync.Mutex
	results map[string]*entities.TestResult

	// failInsertsOnce makes the next Insert fail with a conflict even after
	// installing the row, mimicking a concurrent writer landing first.
	failInsertsOnce bool
}

func newMemResultRepo() *memResultRepo {
	return &memResultRepo{results: map[string]*entities.TestResult{}}
}

func (r *memResultRepo) GetByNaturalKey(ctx context.Context, key entities.ResultKey) (*entities.TestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if result, ok := r.results[key.String()]; ok {
		clone := *result
		return &clone, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("test result for key %s not found", key))
}

func (r *memResultRepo) Insert(ctx context.Context, result *entities.TestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := result.Key().String()
	if _, exists := r.results[key]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("test result for key %s already exists", result.Key()))
	}
	if r.failInsertsOnce {
		r.failInsertsOnce = false
		clone := *result
		clone.ID = "concurrent-" + clone.ID
		r.results[key] = &clone
		return apperrors.NewConflictError(fmt.Sprintf("test result for key %s already exists", result.Key()))
	}
	clone := *result
	r.results[key] = &clone
	return nil
}

func (r *memResultRepo) Update(ctx context.Context, result *entities.TestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, existing := range r.results {
		if existing.ID == result.ID {
			clone := *result
			r.results[key] = &clone
			return nil
		}
	}
	return apperrors.NewNotFoundError(fmt.Sprintf("test result with id %s not found", result.ID))
}

func (r *memResultRepo) ListByUser(ctx context.Context, userID string) ([]*entities.TestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.TestResult
	for _, result := range r.results {
		if result.UserID == userID {
			clone := *result
			out = append(out, &clone)
		}
	}
	sortResults(out)
	return out, nil
}

func (r *memResultRepo) ListByUserAndTestType(ctx context.Context, userID, testTypeID string) ([]*entities.TestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.TestResult
	for _, result := range r.results {
		if result.UserID == userID && result.TestTypeID == testTypeID {
			clone := *result
			out = append(out, &clone)
		}
	}
	sortResults(out)
	return out, nil
}

func sortResults(results []*entities.TestResult) {
	sort.Slice(results, func(i, j int) bool {
		if !results[i].TestDate.Equal(results[j].TestDate) {
			return results[i].TestDate.Before(results[j].TestDate)
		}
		return results[i].SourceDocumentID < results[j].SourceDocumentID
	})
}

// memDocumentRepo records bookkeeping calls made during ingestion.
type memDocumentRepo struct {
	mu         sync.Mutex
	documents  map[string]*entities.Document
	labSet     map[string]string
	processed  map[string]bool
	tokenUsage map[string]string
}

func newMemDocumentRepo() *memDocumentRepo {
	return &memDocumentRepo{
		documents:  map[string]*entities.Document{},
		labSet:     map[string]string{},
		processed:  map[string]bool{},
		tokenUsage: map[string]string{},
	}
}

func (r *memDocumentRepo) Create(ctx context.Context, document *entities.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *document
	r.documents[document.ID] = &clone
	return nil
}

func (r *memDocumentRepo) GetByID(ctx context.Context, id string) (*entities.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if document, ok := r.documents[id]; ok {
		clone := *document
		return &clone, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("document with id %s not found", id))
}

func (r *memDocumentRepo) GetByContentHash(ctx context.Context, contentHash string) (*entities.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, document := range r.documents {
		if document.ContentHash == contentHash {
			clone := *document
			return &clone, nil
		}
	}
	return nil, apperrors.NewNotFoundError("no document with this content hash")
}

func (r *memDocumentRepo) SetLab(ctx context.Context, documentID, labID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labSet[documentID] = labID
	return nil
}

func (r *memDocumentRepo) MarkProcessed(ctx context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed[documentID] = true
	return nil
}

func (r *memDocumentRepo) SetTokenUsage(ctx context.Context, documentID, tokenUsageJSON string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokenUsage[documentID] = tokenUsageJSON
	return nil
}

func (r *memDocumentRepo) ListByUser(ctx context.Context, userID string) ([]*entities.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Document
	for _, document := range r.documents {
		if document.UserID == userID {
			clone := *document
			out = append(out, &clone)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
