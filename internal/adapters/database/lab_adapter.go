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

// LabAdapter implements LabRepository
type LabAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewLabAdapter creates a new lab adapter
func NewLabAdapter(client *postgres.Client) repositories.LabRepository {
	return &LabAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new lab
func (a *LabAdapter) Create(ctx context.Context, lab *entities.Lab) error {
	record := goqu.Record{
		"id":            lab.ID,
		"name":          lab.Name,
		"address":       nullString(lab.Address),
		"phone":         nullString(lab.Phone),
		"email":         nullString(lab.Email),
		"accreditation": nullString(lab.Accreditation),
		"created_at":    lab.CreatedAt,
	}

	query, args, err := a.db.Insert("labs").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create lab", err)
	}

	return nil
}

// GetByID retrieves a lab by ID
func (a *LabAdapter) GetByID(ctx context.Context, id string) (*entities.Lab, error) {
	query, args, err := a.db.Select(
		"id", "name", "address", "phone", "email", "accreditation", "created_at",
	).From("labs").
		Where(goqu.Ex{"id": id}).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	lab, err := scanLab(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("lab with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get lab", err)
	}

	return lab, nil
}

// List retrieves all labs ordered by name
func (a *LabAdapter) List(ctx context.Context) ([]*entities.Lab, error) {
	query, args, err := a.db.Select(
		"id", "name", "address", "phone", "email", "accreditation", "created_at",
	).From("labs").
		Order(goqu.I("name").Asc()).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list labs", err)
	}
	defer rows.Close()

	var labs []*entities.Lab
	for rows.Next() {
		lab, err := scanLab(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan lab", err)
		}
		labs = append(labs, lab)
	}
	if err = rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating labs", err)
	}

	return labs, nil
}

// FillMissingFields sets contact fields from the descriptor only where the
// stored column is NULL. Existing values win, so repeated documents can only
// add information, never flip it.
func (a *LabAdapter) FillMissingFields(ctx context.Context, id string, descriptor entities.LabDescriptor) error {
	record := goqu.Record{
		"address":       goqu.COALESCE(goqu.I("address"), nullString(descriptor.Address)),
		"phone":         goqu.COALESCE(goqu.I("phone"), nullString(descriptor.Phone)),
		"email":         goqu.COALESCE(goqu.I("email"), nullString(descriptor.Email)),
		"accreditation": goqu.COALESCE(goqu.I("accreditation"), nullString(descriptor.Accreditation)),
	}

	query, args, err := a.db.Update("labs").
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()

	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to enrich lab", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("lab with id %s not found", id))
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLab(row rowScanner) (*entities.Lab, error) {
	lab := &entities.Lab{}
	var address, phone, email, accreditation sql.NullString

	err := row.Scan(
		&lab.ID,
		&lab.Name,
		&address,
		&phone,
		&email,
		&accreditation,
		&lab.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	lab.Address = stringPtr(address)
	lab.Phone = stringPtr(phone)
	lab.Email = stringPtr(email)
	lab.Accreditation = stringPtr(accreditation)

	return lab, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
