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

// DocumentService manages the source document registry. Registration is
// deduplicated on content hash: uploading the same file twice returns the
// original registration instead of a second document id.
type DocumentService struct {
	documentRepo repositories.DocumentRepository
}

// NewDocumentService creates a new document service
func NewDocumentService(documentRepo repositories.DocumentRepository) *DocumentService {
	return &DocumentService{documentRepo: documentRepo}
}

// Register records an uploaded document. The returned flag is true when the
// content hash was already known and the existing registration is returned.
func (s *DocumentService) Register(ctx context.Context, userID, filePath, contentHash string) (*entities.Document, bool, error) {
	if userID == "" {
		return nil, false, apperrors.NewValidationError("user id is required")
	}
	if filePath == "" {
		return nil, false, apperrors.NewValidationError("file path is required")
	}
	if contentHash == "" {
		return nil, false, apperrors.NewValidationError("content hash is required")
	}

	existing, err := s.documentRepo.GetByContentHash(ctx, contentHash)
	if err == nil {
		observability.LoggerFromContext(ctx).Info().
			Str("document_id", existing.ID).
			Str("content_hash", contentHash).
			Msg("duplicate document upload, returning existing registration")
		return existing, true, nil
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, false, err
	}

	document := &entities.Document{
		ID:          uuid.NewString(),
		UserID:      userID,
		FilePath:    filePath,
		ContentHash: contentHash,
		UploadedAt:  time.Now(),
	}
	if err := s.documentRepo.Create(ctx, document); err != nil {
		return nil, false, err
	}
	return document, false, nil
}

// GetByID retrieves a document by ID
func (s *DocumentService) GetByID(ctx context.Context, id string) (*entities.Document, error) {
	return s.documentRepo.GetByID(ctx, id)
}

// ListByUser retrieves a user's documents
func (s *DocumentService) ListByUser(ctx context.Context, userID string) ([]*entities.Document, error) {
	return s.documentRepo.ListByUser(ctx, userID)
}
