package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/sorincom/analize-new/internal/domain/entities"
	"github.com/sorincom/analize-new/internal/domain/repositories"
	"github.com/sorincom/analize-new/internal/infrastructure/clients/postgres"
	apperrors "github.com/sorincom/analize-new/pkg/errors"
)

// pq error code for unique_violation
const pqUniqueViolation = "23505"

var testResultColumns = []interface{}{
	"id", "user_id", "test_type_id", "lab_id", "test_date", "lab_test_name",
	"value", "value_text", "value_normalized", "unit", "lower_limit",
	"upper_limit", "interpretation", "documentation", "source_document_id",
	"created_at", "updated_at",
}

// TestResultAdapter implements TestResultRepository
type TestResultAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewTestResultAdapter creates a new test result adapter
func NewTestResultAdapter(client *postgres.Client) repositories.TestResultRepository {
	return &TestResultAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByNaturalKey retrieves the single result stored for the key
func (a *TestResultAdapter) GetByNaturalKey(ctx context.Context, key entities.ResultKey) (*entities.TestResult, error) {
	query, args, err := a.db.Select(testResultColumns...).
		From("test_results").
		Where(goqu.Ex{
			"user_id":      key.UserID,
			"test_type_id": key.TestTypeID,
			"test_date":    key.TestDate.Format("2006-01-02"),
			"lab_id":       key.LabID,
		}).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	result, err := scanTestResult(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("test result for key %s not found", key))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get test result", err)
	}

	return result, nil
}

// Insert stores a new result. A unique violation on the natural key means
// another writer inserted the same key between our read and this write; it
// surfaces as a conflict error so the caller can retry its check-then-write
// sequence against the now-existing row.
func (a *TestResultAdapter) Insert(ctx context.Context, result *entities.TestResult) error {
	record := goqu.Record{
		"id":                 result.ID,
		"user_id":            result.UserID,
		"test_type_id":       result.TestTypeID,
		"lab_id":             result.LabID,
		"test_date":          result.TestDate.Format("2006-01-02"),
		"lab_test_name":      result.LabTestName,
		"value":              nullFloat(result.Value),
		"value_text":         nullString(result.ValueText),
		"value_normalized":   nullQualitative(result.ValueNormalized),
		"unit":               nullString(result.Unit),
		"lower_limit":        nullFloat(result.LowerLimit),
		"upper_limit":        nullFloat(result.UpperLimit),
		"interpretation":     nullString(result.Interpretation),
		"documentation":      nullString(result.Documentation),
		"source_document_id": result.SourceDocumentID,
		"created_at":         result.CreatedAt,
		"updated_at":         result.UpdatedAt,
	}

	query, args, err := a.db.Insert("test_results").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation {
			return apperrors.NewConflictError(fmt.Sprintf("test result for key %s already exists", result.Key()))
		}
		return apperrors.NewInternalError("failed to insert test result", err)
	}

	return nil
}

// Update rewrites the mutable fields of an existing result. Identity columns
// never change; a merge that would move a result to a different key is a bug
// upstream, not something this layer supports.
func (a *TestResultAdapter) Update(ctx context.Context, result *entities.TestResult) error {
	result.UpdatedAt = time.Now()

	record := goqu.Record{
		"lab_test_name":      result.LabTestName,
		"value":              nullFloat(result.Value),
		"value_text":         nullString(result.ValueText),
		"value_normalized":   nullQualitative(result.ValueNormalized),
		"unit":               nullString(result.Unit),
		"lower_limit":        nullFloat(result.LowerLimit),
		"upper_limit":        nullFloat(result.UpperLimit),
		"interpretation":     nullString(result.Interpretation),
		"documentation":      nullString(result.Documentation),
		"source_document_id": result.SourceDocumentID,
		"updated_at":         result.UpdatedAt,
	}

	query, args, err := a.db.Update("test_results").
		Set(record).
		Where(goqu.Ex{"id": result.ID}).
		ToSQL()

	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	res, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update test result", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("test result with id %s not found", result.ID))
	}

	return nil
}

// ListByUser retrieves all results for a user in timeline order
func (a *TestResultAdapter) ListByUser(ctx context.Context, userID string) ([]*entities.TestResult, error) {
	return a.list(ctx, goqu.Ex{"user_id": userID})
}

// ListByUserAndTestType retrieves one test type's history for a user in
// timeline order
func (a *TestResultAdapter) ListByUserAndTestType(ctx context.Context, userID, testTypeID string) ([]*entities.TestResult, error) {
	return a.list(ctx, goqu.Ex{"user_id": userID, "test_type_id": testTypeID})
}

func (a *TestResultAdapter) list(ctx context.Context, where goqu.Ex) ([]*entities.TestResult, error) {
	// source_document_id is the tiebreak so two same-day results from
	// different labs render in a stable order.
	query, args, err := a.db.Select(testResultColumns...).
		From("test_results").
		Where(where).
		Order(goqu.I("test_date").Asc(), goqu.I("source_document_id").Asc()).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list test results", err)
	}
	defer rows.Close()

	var results []*entities.TestResult
	for rows.Next() {
		result, err := scanTestResult(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan test result", err)
		}
		results = append(results, result)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating test results", err)
	}

	return results, nil
}

func scanTestResult(row rowScanner) (*entities.TestResult, error) {
	result := &entities.TestResult{}
	var valueText, valueNormalized, unit, interpretation, documentation sql.NullString
	var value, lowerLimit, upperLimit sql.NullFloat64

	err := row.Scan(
		&result.ID,
		&result.UserID,
		&result.TestTypeID,
		&result.LabID,
		&result.TestDate,
		&result.LabTestName,
		&value,
		&valueText,
		&valueNormalized,
		&unit,
		&lowerLimit,
		&upperLimit,
		&interpretation,
		&documentation,
		&result.SourceDocumentID,
		&result.CreatedAt,
		&result.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	result.Value = floatPtr(value)
	result.ValueText = stringPtr(valueText)
	result.Unit = stringPtr(unit)
	result.LowerLimit = floatPtr(lowerLimit)
	result.UpperLimit = floatPtr(upperLimit)
	result.Interpretation = stringPtr(interpretation)
	result.Documentation = stringPtr(documentation)
	if valueNormalized.Valid {
		q := entities.QualitativeValue(valueNormalized.String)
		result.ValueNormalized = &q
	}

	return result, nil
}

func nullQualitative(q *entities.QualitativeValue) sql.NullString {
	if q == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*q), Valid: true}
}
