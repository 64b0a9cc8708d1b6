package services

import (
	"context"

	"github.com/sorincom/analize-new/internal/domain/entities"
	"github.com/sorincom/analize-new/internal/domain/providers"
	"github.com/sorincom/analize-new/internal/domain/repositories"
	"github.com/sorincom/analize-new/internal/infrastructure/observability"
	apperrors "github.com/sorincom/analize-new/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// IngestionService orchestrates one document's journey into the longitudinal
// record: resolve the lab once, then resolve and upsert each extracted test,
// collecting a per-document outcome report. One bad test never aborts its
// siblings; an unresolvable lab aborts everything, because every result key
// depends on it.
type IngestionService struct {
	labResolver      *LabResolverService
	testTypeResolver *TestTypeResolverService
	resultUpsert     *ResultUpsertService
	documentRepo     repositories.DocumentRepository
	metrics          *observability.Metrics
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	labResolver *LabResolverService,
	testTypeResolver *TestTypeResolverService,
	resultUpsert *ResultUpsertService,
	documentRepo repositories.DocumentRepository,
	metrics *observability.Metrics,
) *IngestionService {
	return &IngestionService{
		labResolver:      labResolver,
		testTypeResolver: testTypeResolver,
		resultUpsert:     resultUpsert,
		documentRepo:     documentRepo,
		metrics:          metrics,
	}
}

// Process ingests one extraction payload. Degraded outcomes (matcher down,
// per-test failures) are reported inside the returned DocumentReport; an
// error return means infrastructure failed and nothing useful can be said.
func (s *IngestionService) Process(ctx context.Context, payload entities.DocumentPayload) (*entities.DocumentReport, error) {
	if payload.DocumentID == "" {
		return nil, apperrors.NewValidationError("payload has no document id")
	}
	if payload.UserID == "" {
		return nil, apperrors.NewValidationError("payload has no user id")
	}

	ctx, span := observability.StartSpan(ctx, "ingestion.process_document")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("document.id", payload.DocumentID),
		attribute.Int("document.result_count", len(payload.Results)),
	)

	// Every matcher call made on behalf of this document reports its token
	// spend into this recorder.
	usage := providers.NewUsageRecorder()
	ctx = providers.WithUsageRecorder(ctx, usage)

	logger := observability.LoggerFromContext(ctx)
	report := &entities.DocumentReport{DocumentID: payload.DocumentID}

	lab, labStatus, err := s.labResolver.Resolve(ctx, payload.Lab)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeUnavailable) ||
			apperrors.IsType(err, apperrors.ErrorTypeExternal) ||
			apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			logger.Warn().
				Err(err).
				Str("document_id", payload.DocumentID).
				Msg("document aborted, lab could not be resolved")
			report.FatalError = err.Error()
			observability.RecordError(span, err)
			s.finish(ctx, report, usage, false)
			return report, nil
		}
		observability.RecordError(span, err)
		return nil, err
	}

	report.LabID = lab.ID
	report.LabStatus = labStatus

	if err := s.documentRepo.SetLab(ctx, payload.DocumentID, lab.ID); err != nil {
		logger.Warn().
			Err(err).
			Str("document_id", payload.DocumentID).
			Msg("failed to record document lab association")
	}

	for _, extracted := range payload.Results {
		report.Record(s.processResult(ctx, payload, lab.ID, extracted))
	}

	s.finish(ctx, report, usage, true)

	logger.Info().
		Str("document_id", payload.DocumentID).
		Str("lab_id", lab.ID).
		Int("created", report.Summary.Created).
		Int("merged", report.Summary.Merged).
		Int("unchanged", report.Summary.Unchanged).
		Int("conflicts", report.Summary.Conflicts).
		Int("unresolved", report.Summary.Unresolved).
		Msg("document processed")

	return report, nil
}

// processResult resolves and upserts one extracted test. Failures stay local:
// the outcome says what happened and processing moves to the next test.
func (s *IngestionService) processResult(ctx context.Context, payload entities.DocumentPayload, labID string, extracted entities.ExtractedResult) entities.ResultOutcome {
	logger := observability.LoggerFromContext(ctx)

	testType, _, err := s.testTypeResolver.Resolve(ctx, labID, extracted)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("document_id", payload.DocumentID).
			Str("lab_test_name", extracted.LabTestName).
			Msg("test left unresolved")
		return entities.ResultOutcome{
			LabTestName: extracted.LabTestName,
			Status:      entities.ResultUnresolved,
			Error:       err.Error(),
		}
	}

	outcome, err := s.resultUpsert.Upsert(ctx, payload.UserID, testType, labID, payload.DocumentID, extracted)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("document_id", payload.DocumentID).
			Str("lab_test_name", extracted.LabTestName).
			Msg("result could not be stored")
		return entities.ResultOutcome{
			LabTestName: extracted.LabTestName,
			TestTypeID:  testType.ID,
			Status:      entities.ResultUnresolved,
			Error:       err.Error(),
		}
	}

	return outcome
}

// finish stamps the document and records metrics. Bookkeeping failures are
// logged, never propagated: the medical data is already committed.
func (s *IngestionService) finish(ctx context.Context, report *entities.DocumentReport, usage *providers.UsageRecorder, processed bool) {
	logger := observability.LoggerFromContext(ctx)

	if processed {
		if err := s.documentRepo.MarkProcessed(ctx, report.DocumentID); err != nil {
			logger.Warn().
				Err(err).
				Str("document_id", report.DocumentID).
				Msg("failed to mark document processed")
		}
	}

	if !usage.Empty() {
		if usageJSON, err := usage.JSON(); err == nil {
			if err := s.documentRepo.SetTokenUsage(ctx, report.DocumentID, usageJSON); err != nil {
				logger.Warn().
					Err(err).
					Str("document_id", report.DocumentID).
					Msg("failed to store document token usage")
			}
		}
	}

	if s.metrics != nil {
		status := "processed"
		if report.FatalError != "" {
			status = "aborted"
		}
		observability.RecordDocumentProcessed(ctx, s.metrics, status)
		observability.RecordResultConflicts(ctx, s.metrics, report.Summary.Conflicts)
		observability.RecordResultsUnresolved(ctx, s.metrics, report.Summary.Unresolved)
	}
}
