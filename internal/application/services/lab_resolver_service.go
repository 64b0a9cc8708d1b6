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

// maxResolveRounds bounds the oracle re-ask loop when concurrent writers keep
// growing the candidate set between our verdict and our write.
const maxResolveRounds = 3

// LabResolverService resolves a document's lab descriptor to exactly one
// canonical lab, creating it when it genuinely is new. A matcher outage is
// fatal for the whole document: guessing wrong about lab identity would
// corrupt every result key derived from it.
type LabResolverService struct {
	labRepo        repositories.LabRepository
	matcher        providers.SimilarityMatcher
	locks          *EntityLocks
	shortlistLimit int
}

// NewLabResolverService creates a new lab resolver service
func NewLabResolverService(
	labRepo repositories.LabRepository,
	matcher providers.SimilarityMatcher,
	locks *EntityLocks,
	shortlistLimit int,
) *LabResolverService {
	if shortlistLimit <= 0 {
		shortlistLimit = 20
	}
	return &LabResolverService{
		labRepo:        labRepo,
		matcher:        matcher,
		locks:          locks,
		shortlistLimit: shortlistLimit,
	}
}

// Resolve returns the canonical lab for the descriptor. The returned status
// says whether the lab was created or matched to an existing row.
func (s *LabResolverService) Resolve(ctx context.Context, descriptor entities.LabDescriptor) (*entities.Lab, entities.LabStatus, error) {
	if descriptor.Name == "" {
		return nil, "", apperrors.NewValidationError("lab descriptor has no name")
	}

	logger := observability.LoggerFromContext(ctx)
	lockKey := "lab:" + textmatch.Key(descriptor.Name)

	// asked remembers every candidate the oracle has already seen for this
	// descriptor, so the re-check loop only goes back when new rows appeared.
	asked := map[string]bool{}

	for round := 0; round < maxResolveRounds; round++ {
		unlock := s.locks.Lock(lockKey)

		shortlist, labsByID, err := s.buildShortlist(ctx, descriptor)
		if err != nil {
			unlock()
			return nil, "", err
		}

		newCandidates := false
		for _, candidate := range shortlist {
			if !asked[candidate.ID] {
				newCandidates = true
				break
			}
		}

		if len(shortlist) == 0 || (round > 0 && !newCandidates) {
			// Nothing plausible exists (or nothing new appeared since the
			// oracle said no-match), so this is a genuinely new lab.
			lab, err := s.createLab(ctx, descriptor)
			unlock()
			if err != nil {
				return nil, "", err
			}
			logger.Info().
				Str("lab_id", lab.ID).
				Str("lab_name", lab.Name).
				Msg("created new lab")
			return lab, entities.LabCreated, nil
		}

		// The oracle call happens without the lock so a slow model never
		// stalls unrelated documents naming the same lab key.
		unlock()

		for _, candidate := range shortlist {
			asked[candidate.ID] = true
		}

		verdict, err := s.matcher.Resolve(ctx, descriptor.Text(), shortlist)
		if err != nil {
			if errors.Is(err, providers.ErrMatcherUnavailable) {
				return nil, "", apperrors.NewUnavailableError("lab matcher unavailable", err)
			}
			if errors.Is(err, providers.ErrAmbiguousVerdict) {
				// An unusable verdict about lab identity cannot be papered
				// over with a create: that is how duplicate labs are born.
				return nil, "", apperrors.NewExternalError("ambiguous lab match verdict", err)
			}
			return nil, "", err
		}

		if verdict.Matched {
			lab := labsByID[verdict.MatchedID]
			if lab == nil {
				return nil, "", apperrors.NewExternalError("lab match verdict references unknown lab", nil)
			}
			if err := s.labRepo.FillMissingFields(ctx, lab.ID, descriptor); err != nil {
				return nil, "", err
			}
			enriched, err := s.labRepo.GetByID(ctx, lab.ID)
			if err != nil {
				return nil, "", err
			}
			logger.Debug().
				Str("lab_id", enriched.ID).
				Str("descriptor", descriptor.Name).
				Msg("matched lab descriptor to existing lab")
			return enriched, entities.LabMatched, nil
		}

		// No match: loop re-acquires the lock and re-checks before writing,
		// in case another document created this lab while the oracle thought.
	}

	unlock := s.locks.Lock(lockKey)
	defer unlock()
	lab, err := s.createLab(ctx, descriptor)
	if err != nil {
		return nil, "", err
	}
	return lab, entities.LabCreated, nil
}

func (s *LabResolverService) buildShortlist(ctx context.Context, descriptor entities.LabDescriptor) ([]providers.MatchCandidate, map[string]*entities.Lab, error) {
	labs, err := s.labRepo.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	var shortlist []providers.MatchCandidate
	byID := map[string]*entities.Lab{}
	for _, lab := range labs {
		if !textmatch.AnyOverlap(descriptor.Name, lab.Name) {
			continue
		}
		shortlist = append(shortlist, providers.MatchCandidate{
			ID:         lab.ID,
			Descriptor: lab.DescriptorText(),
		})
		byID[lab.ID] = lab
		if len(shortlist) >= s.shortlistLimit {
			break
		}
	}

	return shortlist, byID, nil
}

func (s *LabResolverService) createLab(ctx context.Context, descriptor entities.LabDescriptor) (*entities.Lab, error) {
	lab := &entities.Lab{
		ID:            uuid.NewString(),
		Name:          descriptor.Name,
		Address:       descriptor.Address,
		Phone:         descriptor.Phone,
		Email:         descriptor.Email,
		Accreditation: descriptor.Accreditation,
		CreatedAt:     time.Now(),
	}
	if err := s.labRepo.Create(ctx, lab); err != nil {
		return nil, err
	}
	return lab, nil
}
