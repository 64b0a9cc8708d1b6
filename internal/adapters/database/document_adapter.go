package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/sorincom/analize-new/internal/domain/entities"
	"github.com/sorincom/analize-new/internal/domain/repositories"
	"github.com/sorincom/analize-new/internal/infrastructure/clients/postgres"
	apperrors "github.com/sorincom/analize-new/pkg/errors"
)

var documentColumns = []interface{}{
	"id", "user_id", "lab_id", "file_path", "content_hash",
	"uploaded_at", "processed_at", "tokens", "cost",
}

// DocumentAdapter implements DocumentRepository
type DocumentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDocumentAdapter creates a new document adapter
func NewDocumentAdapter(client *postgres.Client) repositories.DocumentRepository {
	return &DocumentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create registers a new document
func (a *DocumentAdapter) Create(ctx context.Context, document *entities.Document) error {
	record := goqu.Record{
		"id":           document.ID,
		"user_id":      document.UserID,
		"lab_id":       nullString(document.LabID),
		"file_path":    document.FilePath,
		"content_hash": document.ContentHash,
		"uploaded_at":  document.UploadedAt,
		"tokens":       nullString(document.TokenUsage),
		"cost":         nullFloat(document.Cost),
	}

	query, args, err := a.db.Insert("documents").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create document", err)
	}

	return nil
}

// GetByID retrieves a document by ID
func (a *DocumentAdapter) GetByID(ctx context.Context, id string) (*entities.Document, error) {
	query, args, err := a.db.Select(documentColumns...).
		From("documents").
		Where(goqu.Ex{"id": id}).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	document, err := scanDocument(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("document with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get document", err)
	}

	return document, nil
}

// GetByContentHash finds a previously uploaded document with the same content
func (a *DocumentAdapter) GetByContentHash(ctx context.Context, contentHash string) (*entities.Document, error) {
	query, args, err := a.db.Select(documentColumns...).
		From("documents").
		Where(goqu.Ex{"content_hash": contentHash}).
		Limit(1).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	document, err := scanDocument(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("no document with this content hash")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get document by content hash", err)
	}

	return document, nil
}

// SetLab associates the resolved lab with the document
func (a *DocumentAdapter) SetLab(ctx context.Context, documentID, labID string) error {
	return a.update(ctx, documentID, goqu.Record{"lab_id": labID})
}

// MarkProcessed stamps the document as processed
func (a *DocumentAdapter) MarkProcessed(ctx context.Context, documentID string) error {
	return a.update(ctx, documentID, goqu.Record{"processed_at": time.Now()})
}

// SetTokenUsage stores per-model LLM token counts spent on the document
func (a *DocumentAdapter) SetTokenUsage(ctx context.Context, documentID, tokenUsageJSON string) error {
	return a.update(ctx, documentID, goqu.Record{"tokens": tokenUsageJSON})
}

// ListByUser retrieves a user's documents, most recent upload first
func (a *DocumentAdapter) ListByUser(ctx context.Context, userID string) ([]*entities.Document, error) {
	query, args, err := a.db.Select(documentColumns...).
		From("documents").
		Where(goqu.Ex{"user_id": userID}).
		Order(goqu.I("uploaded_at").Desc()).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list documents", err)
	}
	defer rows.Close()

	var documents []*entities.Document
	for rows.Next() {
		document, err := scanDocument(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan document", err)
		}
		documents = append(documents, document)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating documents", err)
	}

	return documents, nil
}

func (a *DocumentAdapter) update(ctx context.Context, documentID string, record goqu.Record) error {
	query, args, err := a.db.Update("documents").
		Set(record).
		Where(goqu.Ex{"id": documentID}).
		ToSQL()

	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update document", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("document with id %s not found", documentID))
	}

	return nil
}

func scanDocument(row rowScanner) (*entities.Document, error) {
	document := &entities.Document{}
	var labID, tokens sql.NullString
	var processedAt sql.NullTime
	var cost sql.NullFloat64

	err := row.Scan(
		&document.ID,
		&document.UserID,
		&labID,
		&document.FilePath,
		&document.ContentHash,
		&document.UploadedAt,
		&processedAt,
		&tokens,
		&cost,
	)
	if err != nil {
		return nil, err
	}

	document.LabID = stringPtr(labID)
	document.TokenUsage = stringPtr(tokens)
	document.Cost = floatPtr(cost)
	if processedAt.Valid {
		t := processedAt.Time
		document.ProcessedAt = &t
	}

	return document, nil
}
