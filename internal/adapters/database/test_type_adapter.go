package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/sorincom/analize-new/internal/domain/entities"
	"github.com/sorincom/analize-new/internal/domain/repositories"
	"github.com/sorincom/analize-new/internal/infrastructure/clients/postgres"
	apperrors "github.com/sorincom/analize-new/pkg/errors"
)

// TestTypeAdapter implements TestTypeRepository
type TestTypeAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewTestTypeAdapter creates a new test type adapter
func NewTestTypeAdapter(client *postgres.Client) repositories.TestTypeRepository {
	return &TestTypeAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new test type
func (a *TestTypeAdapter) Create(ctx context.Context, testType *entities.TestType) error {
	record := goqu.Record{
		"id":            testType.ID,
		"standard_name": testType.StandardName,
		"category":      nullString(testType.Category),
		"description":   nullString(testType.Description),
		"created_at":    testType.CreatedAt,
	}

	query, args, err := a.db.Insert("test_types").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create test type", err)
	}

	return nil
}

// GetByID retrieves a test type by ID
func (a *TestTypeAdapter) GetByID(ctx context.Context, id string) (*entities.TestType, error) {
	query, args, err := a.db.Select(
		"id", "standard_name", "category", "description", "created_at",
	).From("test_types").
		Where(goqu.Ex{"id": id}).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	testType, err := scanTestType(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("test type with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get test type", err)
	}

	return testType, nil
}

// List retrieves all test types ordered by standard name
func (a *TestTypeAdapter) List(ctx context.Context) ([]*entities.TestType, error) {
	query, args, err := a.db.Select(
		"id", "standard_name", "category", "description", "created_at",
	).From("test_types").
		Order(goqu.I("standard_name").Asc()).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list test types", err)
	}
	defer rows.Close()

	var testTypes []*entities.TestType
	for rows.Next() {
		testType, err := scanTestType(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan test type", err)
		}
		testTypes = append(testTypes, testType)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating test types", err)
	}

	return testTypes, nil
}

// EnsureAlias inserts the alias triple unless it is already recorded. The
// primary key on (test_type_id, lab_id, lab_test_name) plus ON CONFLICT DO
// NOTHING makes concurrent recording of the same triple idempotent.
func (a *TestTypeAdapter) EnsureAlias(ctx context.Context, alias *entities.LabTestAlias) error {
	record := goqu.Record{
		"test_type_id":  alias.TestTypeID,
		"lab_id":        alias.LabID,
		"lab_test_name": alias.LabTestName,
		"created_at":    alias.CreatedAt,
	}

	query, args, err := a.db.Insert("lab_test_aliases").
		Rows(record).
		OnConflict(goqu.DoNothing()).
		ToSQL()

	if err != nil {
		return apperrors.NewInternalError("failed to build alias insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to record alias", err)
	}

	return nil
}

// ListAliasesByTestType retrieves the recorded naming variants of a test type
func (a *TestTypeAdapter) ListAliasesByTestType(ctx context.Context, testTypeID string) ([]*entities.LabTestAlias, error) {
	return a.listAliases(ctx, goqu.Ex{"test_type_id": testTypeID})
}

// ListAliases retrieves all recorded aliases
func (a *TestTypeAdapter) ListAliases(ctx context.Context) ([]*entities.LabTestAlias, error) {
	return a.listAliases(ctx, nil)
}

func (a *TestTypeAdapter) listAliases(ctx context.Context, where goqu.Ex) ([]*entities.LabTestAlias, error) {
	ds := a.db.Select(
		"test_type_id", "lab_id", "lab_test_name", "created_at",
	).From("lab_test_aliases")

	if where != nil {
		ds = ds.Where(where)
	}

	ds = ds.Order(goqu.I("created_at").Asc())

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build alias list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list aliases", err)
	}
	defer rows.Close()

	var aliases []*entities.LabTestAlias
	for rows.Next() {
		alias := &entities.LabTestAlias{}
		err := rows.Scan(
			&alias.TestTypeID,
			&alias.LabID,
			&alias.LabTestName,
			&alias.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan alias", err)
		}
		aliases = append(aliases, alias)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating aliases", err)
	}

	return aliases, nil
}

func scanTestType(row rowScanner) (*entities.TestType, error) {
	testType := &entities.TestType{}
	var category, description sql.NullString

	err := row.Scan(
		&testType.ID,
		&testType.StandardName,
		&category,
		&description,
		&testType.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	testType.Category = stringPtr(category)
	testType.Description = stringPtr(description)

	return testType, nil
}
