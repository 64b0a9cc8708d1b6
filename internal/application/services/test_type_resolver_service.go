package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sorincom/analize-new/internal/domain/entities"
	"github.com/sorincom/analize-new/internal/domain/providers"
	"github.com/sorincom/analize-new/internal/domain/repositories"
	"github.com/sorincom/analize-new/internal/infrastructure/observability"
	apperrors "github.com/sorincom/analize-new/pkg/errors"
	"github.com/sorincom/analize-new/pkg/textmatch"
)

// TestTypeResolverService resolves a lab's test name to one canonical test
// type, widening the matcher shortlist with every alias any lab has ever
// used. Its failure posture is softer than the lab resolver's: one
// unresolvable test never takes the rest of the document down with it.
type TestTypeResolverService struct {
	testTypeRepo   repositories.TestTypeRepository
	matcher        providers.SimilarityMatcher
	locks          *EntityLocks
	shortlistLimit int
}

// NewTestTypeResolverService creates a new test type resolver service
func NewTestTypeResolverService(
	testTypeRepo repositories.TestTypeRepository,
	matcher providers.SimilarityMatcher,
	locks *EntityLocks,
	shortlistLimit int,
) *TestTypeResolverService {
	if shortlistLimit <= 0 {
		shortlistLimit = 20
	}
	return &TestTypeResolverService{
		testTypeRepo:   testTypeRepo,
		matcher:        matcher,
		locks:          locks,
		shortlistLimit: shortlistLimit,
	}
}

// Resolve returns the canonical test type for one extracted result and
// records the (test type, lab, lab test name) alias triple. The created flag
// reports whether a new test type had to be minted.
func (s *TestTypeResolverService) Resolve(ctx context.Context, labID string, result entities.ExtractedResult) (*entities.TestType, bool, error) {
	if result.LabTestName == "" {
		return nil, false, apperrors.NewValidationError("extracted result has no lab test name")
	}

	logger := observability.LoggerFromContext(ctx)
	lockKey := "test_type:" + textmatch.Key(result.StandardName())

	asked := map[string]bool{}

	for round := 0; round < maxResolveRounds; round++ {
		unlock := s.locks.Lock(lockKey)

		shortlist, typesByID, err := s.buildShortlist(ctx, result)
		if err != nil {
			unlock()
			return nil, false, err
		}

		newCandidates := false
		for _, candidate := range shortlist {
			if !asked[candidate.ID] {
				newCandidates = true
				break
			}
		}

		if len(shortlist) == 0 || (round > 0 && !newCandidates) {
			testType, err := s.createTestType(ctx, labID, result)
			unlock()
			if err != nil {
				return nil, false, err
			}
			logger.Info().
				Str("test_type_id", testType.ID).
				Str("standard_name", testType.StandardName).
				Msg("created new test type")
			return testType, true, nil
		}

		unlock()

		for _, candidate := range shortlist {
			asked[candidate.ID] = true
		}

		verdict, err := s.matcher.Resolve(ctx, result.LabTestName, shortlist)
		if err != nil {
			if errors.Is(err, providers.ErrMatcherUnavailable) {
				// Candidates existed and the oracle could not rule on them.
				// Creating here would duplicate a test type the moment the
				// matcher comes back, so only this one test is given up.
				return nil, false, apperrors.NewUnavailableError("test type matcher unavailable", err)
			}
			if errors.Is(err, providers.ErrAmbiguousVerdict) {
				// An unusable verdict about a test type is recoverable: a
				// duplicate test type is an annoyance, not key corruption.
				// Treated as no-match.
				logger.Warn().
					Err(err).
					Str("lab_test_name", result.LabTestName).
					Msg("ambiguous test type verdict, treating as no-match")
				verdict = providers.MatchVerdict{}
			} else {
				return nil, false, err
			}
		}

		if verdict.Matched {
			testType := typesByID[verdict.MatchedID]
			if testType == nil {
				return nil, false, apperrors.NewExternalError("test type match verdict references unknown test type", nil)
			}
			if err := s.ensureAlias(ctx, testType.ID, labID, result.LabTestName); err != nil {
				return nil, false, err
			}
			logger.Debug().
				Str("test_type_id", testType.ID).
				Str("lab_test_name", result.LabTestName).
				Msg("matched lab test name to existing test type")
			return testType, false, nil
		}
	}

	unlock := s.locks.Lock(lockKey)
	defer unlock()
	testType, err := s.createTestType(ctx, labID, result)
	if err != nil {
		return nil, false, err
	}
	return testType, true, nil
}

// buildShortlist collects test types whose standard name or any recorded
// alias lexically overlaps the incoming name. Aliases widen recall: "Glicemie"
// finds "Blood Glucose" once any lab's alias for it was recorded.
func (s *TestTypeResolverService) buildShortlist(ctx context.Context, result entities.ExtractedResult) ([]providers.MatchCandidate, map[string]*entities.TestType, error) {
	testTypes, err := s.testTypeRepo.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	aliases, err := s.testTypeRepo.ListAliases(ctx)
	if err != nil {
		return nil, nil, err
	}

	aliasNames := map[string][]string{}
	for _, alias := range aliases {
		aliasNames[alias.TestTypeID] = append(aliasNames[alias.TestTypeID], alias.LabTestName)
	}

	var shortlist []providers.MatchCandidate
	byID := map[string]*entities.TestType{}
	for _, testType := range testTypes {
		if !s.overlaps(result, testType, aliasNames[testType.ID]) {
			continue
		}
		shortlist = append(shortlist, providers.MatchCandidate{
			ID:         testType.ID,
			Descriptor: candidateDescriptor(testType, aliasNames[testType.ID]),
		})
		byID[testType.ID] = testType
		if len(shortlist) >= s.shortlistLimit {
			break
		}
	}

	return shortlist, byID, nil
}

func (s *TestTypeResolverService) overlaps(result entities.ExtractedResult, testType *entities.TestType, aliases []string) bool {
	if textmatch.AnyOverlap(result.LabTestName, testType.StandardName) ||
		textmatch.AnyOverlap(result.StandardName(), testType.StandardName) {
		return true
	}
	for _, alias := range aliases {
		if textmatch.AnyOverlap(result.LabTestName, alias) {
			return true
		}
	}
	return false
}

func candidateDescriptor(testType *entities.TestType, aliases []string) string {
	descriptor := "Standard name: " + testType.StandardName
	for _, alias := range aliases {
		descriptor += ", also known as: " + alias
	}
	return descriptor
}

func (s *TestTypeResolverService) createTestType(ctx context.Context, labID string, result entities.ExtractedResult) (*entities.TestType, error) {
	testType := &entities.TestType{
		ID:           uuid.NewString(),
		StandardName: result.StandardName(),
		CreatedAt:    time.Now(),
	}
	if err := s.testTypeRepo.Create(ctx, testType); err != nil {
		return nil, err
	}
	if err := s.ensureAlias(ctx, testType.ID, labID, result.LabTestName); err != nil {
		return nil, err
	}
	return testType, nil
}

func (s *TestTypeResolverService) ensureAlias(ctx context.Context, testTypeID, labID, labTestName string) error {
	return s.testTypeRepo.EnsureAlias(ctx, &entities.LabTestAlias{
		TestTypeID:  testTypeID,
		LabID:       labID,
		LabTestName: labTestName,
		CreatedAt:   time.Now(),
	})
}
