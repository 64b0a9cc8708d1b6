package entities

import (
	"time"
)

// TestType represents one canonical medical measurement concept across all
// labs' naming variants. StandardName is fixed at creation and never renamed
// by the resolution engine.
type TestType struct {
	ID           string    `json:"id" db:"id"`
	StandardName string    `json:"standard_name" db:"standard_name"`
	Category     *string   `json:"category,omitempty" db:"category"`
	Description  *string   `json:"description,omitempty" db:"description"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// LabTestAlias records that a given lab uses a given name for a canonical
// test type. It is an audit trail for unification decisions, not an identity
// source: resolution never reads aliases except to widen matcher shortlists.
type LabTestAlias struct {
	TestTypeID  string    `json:"test_type_id" db:"test_type_id"`
	LabID       string    `json:"lab_id" db:"lab_id"`
	LabTestName string    `json:"lab_test_name" db:"lab_test_name"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
