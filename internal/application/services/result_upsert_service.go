package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sorincom/analize-new/internal/domain/entities"
	"github.com/sorincom/analize-new/internal/domain/repositories"
	"github.com/sorincom/analize-new/internal/infrastructure/observability"
	apperrors "github.com/sorincom/analize-new/pkg/errors"
)

// ResultUpsertService folds one extracted measurement into the stored
// history. At most one row exists per (user, test type, date, lab); the
// service decides per call whether that row is created, merged into, or left
// alone, and flags genuine disagreements instead of erroring on them.
type ResultUpsertService struct {
	resultRepo repositories.TestResultRepository
	locks      *EntityLocks
}

// NewResultUpsertService creates a new result upsert service
func NewResultUpsertService(resultRepo repositories.TestResultRepository, locks *EntityLocks) *ResultUpsertService {
	return &ResultUpsertService{
		resultRepo: resultRepo,
		locks:      locks,
	}
}

// Upsert stores or merges the extracted result under its natural key. A
// natural-key collision from a concurrent writer triggers exactly one retry
// of the whole check-then-write sequence; the second pass finds the row and
// merges into it.
func (s *ResultUpsertService) Upsert(ctx context.Context, userID string, testType *entities.TestType, labID, documentID string, extracted entities.ExtractedResult) (entities.ResultOutcome, error) {
	key := entities.ResultKey{
		UserID:     userID,
		TestTypeID: testType.ID,
		TestDate:   extracted.TestDate,
		LabID:      labID,
	}

	outcome, err := s.upsertOnce(ctx, key, documentID, extracted)
	if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
		observability.LoggerFromContext(ctx).Debug().
			Str("result_key", key.String()).
			Msg("natural key collision, retrying upsert once")
		outcome, err = s.upsertOnce(ctx, key, documentID, extracted)
	}
	if err != nil {
		return entities.ResultOutcome{}, err
	}

	outcome.LabTestName = extracted.LabTestName
	outcome.TestTypeID = testType.ID
	return outcome, nil
}

func (s *ResultUpsertService) upsertOnce(ctx context.Context, key entities.ResultKey, documentID string, extracted entities.ExtractedResult) (entities.ResultOutcome, error) {
	unlock := s.locks.Lock("result:" + key.String())
	defer unlock()

	stored, err := s.resultRepo.GetByNaturalKey(ctx, key)
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		result := newTestResult(key, documentID, extracted)
		if err := s.resultRepo.Insert(ctx, result); err != nil {
			return entities.ResultOutcome{}, err
		}
		return entities.ResultOutcome{Status: entities.ResultCreated}, nil
	}
	if err != nil {
		return entities.ResultOutcome{}, err
	}

	changed, conflict := mergeResult(stored, extracted)
	if !changed {
		return entities.ResultOutcome{Status: entities.ResultUnchanged}, nil
	}

	stored.SourceDocumentID = documentID
	if err := s.resultRepo.Update(ctx, stored); err != nil {
		return entities.ResultOutcome{}, err
	}

	return entities.ResultOutcome{Status: entities.ResultMerged, Conflict: conflict}, nil
}

func newTestResult(key entities.ResultKey, documentID string, extracted entities.ExtractedResult) *entities.TestResult {
	now := time.Now()
	return &entities.TestResult{
		ID:               uuid.NewString(),
		UserID:           key.UserID,
		TestTypeID:       key.TestTypeID,
		LabID:            key.LabID,
		TestDate:         key.TestDate,
		LabTestName:      extracted.LabTestName,
		Value:            extracted.Value,
		ValueText:        extracted.ValueText,
		ValueNormalized:  extracted.ValueNormalized,
		Unit:             extracted.Unit,
		LowerLimit:       extracted.LowerLimit,
		UpperLimit:       extracted.UpperLimit,
		Interpretation:   extracted.Interpretation,
		Documentation:    extracted.Documentation,
		SourceDocumentID: documentID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// mergeResult folds the extracted fields into the stored row. It reports
// whether anything changed and whether the change was a disagreement between
// two non-null values (a conflict, resolved last-write-wins) rather than a
// null being filled in.
func mergeResult(stored *entities.TestResult, extracted entities.ExtractedResult) (changed, conflict bool) {
	primaryChanged, primaryConflict := mergePrimaryValue(stored, extracted)
	changed = primaryChanged
	conflict = primaryConflict

	if fillString(&stored.Unit, extracted.Unit) {
		changed = true
	}
	if fillFloat(&stored.LowerLimit, extracted.LowerLimit) {
		changed = true
	}
	if fillFloat(&stored.UpperLimit, extracted.UpperLimit) {
		changed = true
	}
	if fillString(&stored.Interpretation, extracted.Interpretation) {
		changed = true
	}
	if fillString(&stored.Documentation, extracted.Documentation) {
		changed = true
	}

	// lab_test_name tracks the most recently seen spelling.
	if extracted.LabTestName != "" && extracted.LabTestName != stored.LabTestName {
		stored.LabTestName = extracted.LabTestName
		changed = true
	}

	return changed, conflict
}

// mergePrimaryValue reconciles the measurement itself. A result is either
// quantitative (value) or qualitative (value_text / value_normalized), never
// both. When documents disagree, the newer one wins and the outcome is
// flagged; when they disagree even about which kind of value this is, the
// superseded representation is cleared so the row stays one or the other.
func mergePrimaryValue(stored *entities.TestResult, extracted entities.ExtractedResult) (changed, conflict bool) {
	incomingQuantitative := extracted.Value != nil
	incomingQualitative := extracted.ValueText != nil || extracted.ValueNormalized != nil
	storedQuantitative := stored.Value != nil
	storedQualitative := stored.ValueText != nil || stored.ValueNormalized != nil

	switch {
	case !incomingQuantitative && !incomingQualitative:
		return false, false

	case incomingQuantitative && storedQualitative,
		incomingQualitative && storedQuantitative:
		// Representation mismatch: adopt the newer document's kind.
		stored.Value = extracted.Value
		stored.ValueText = extracted.ValueText
		stored.ValueNormalized = extracted.ValueNormalized
		return true, true

	case incomingQuantitative:
		if !storedQuantitative {
			stored.Value = extracted.Value
			return true, false
		}
		if *stored.Value != *extracted.Value {
			stored.Value = extracted.Value
			return true, true
		}
		return false, false

	default: // qualitative on both sides
		if !storedQualitative {
			stored.ValueText = extracted.ValueText
			stored.ValueNormalized = extracted.ValueNormalized
			return true, false
		}

		if qualitativeEqual(stored, extracted) {
			// Same verdict; still fill in whichever rendering was missing.
			if stored.ValueText == nil && extracted.ValueText != nil {
				stored.ValueText = extracted.ValueText
				changed = true
			}
			if stored.ValueNormalized == nil && extracted.ValueNormalized != nil {
				stored.ValueNormalized = extracted.ValueNormalized
				changed = true
			}
			return changed, false
		}

		stored.ValueText = extracted.ValueText
		stored.ValueNormalized = extracted.ValueNormalized
		return true, true
	}
}

// qualitativeEqual compares on the normalized tag when both sides carry one,
// falling back to the raw text otherwise.
func qualitativeEqual(stored *entities.TestResult, extracted entities.ExtractedResult) bool {
	if stored.ValueNormalized != nil && extracted.ValueNormalized != nil {
		return *stored.ValueNormalized == *extracted.ValueNormalized
	}
	if stored.ValueText != nil && extracted.ValueText != nil {
		return *stored.ValueText == *extracted.ValueText
	}
	// One side only has the rendering the other lacks; treat as agreement.
	return true
}

func fillString(target **string, incoming *string) bool {
	if *target == nil && incoming != nil {
		*target = incoming
		return true
	}
	return false
}

func fillFloat(target **float64, incoming *float64) bool {
	if *target == nil && incoming != nil {
		*target = incoming
		return true
	}
	return false
}
