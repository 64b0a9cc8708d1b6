package repositories

import (
	"context"

	"github.com/sorincom/analize-new/internal/domain/entities"
)

// DocumentRepository defines the interface for the source document registry
type DocumentRepository interface {
	// Create registers a new document
	Create(ctx context.Context, document *entities.Document) error

	// GetByID retrieves a document by ID
	GetByID(ctx context.Context, id string) (*entities.Document, error)

	// GetByContentHash finds a previously uploaded document with the same
	// content, for upload-time deduplication
	GetByContentHash(ctx context.Context, contentHash string) (*entities.Document, error)

	// SetLab associates the resolved lab with the document
	SetLab(ctx context.Context, documentID, labID string) error

	// MarkProcessed stamps the document as processed
	MarkProcessed(ctx context.Context, documentID string) error

	// SetTokenUsage stores per-model LLM token counts spent on the document
	SetTokenUsage(ctx context.Context, documentID, tokenUsageJSON string) error

	// ListByUser retrieves a user's documents, most recent upload first
	ListByUser(ctx context.Context, userID string) ([]*entities.Document, error)
}
