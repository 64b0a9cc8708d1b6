package entities

import (
	"fmt"
	"time"
)

// QualitativeValue is the normalized tag for non-numeric results.
type QualitativeValue string

const (
	QualitativePositive    QualitativeValue = "POSITIVE"
	QualitativeNegative    QualitativeValue = "NEGATIVE"
	QualitativeNormal      QualitativeValue = "NORMAL"
	QualitativeAbnormal    QualitativeValue = "ABNORMAL"
	QualitativeDetected    QualitativeValue = "DETECTED"
	QualitativeNotDetected QualitativeValue = "NOT_DETECTED"
)

// Valid reports whether the tag is one of the supported normalized values.
func (q QualitativeValue) Valid() bool {
	switch q {
	case QualitativePositive, QualitativeNegative, QualitativeNormal,
		QualitativeAbnormal, QualitativeDetected, QualitativeNotDetected:
		return true
	}
	return false
}

// ResultKey is the natural key of a test result: the medical fact "this user
// had this test, on this date, at this lab". The source document is
// deliberately excluded - it identifies provenance, not identity.
type ResultKey struct {
	UserID     string
	TestTypeID string
	TestDate   time.Time
	LabID      string
}

// String renders the key for lock names and log fields.
func (k ResultKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.UserID, k.TestTypeID, k.TestDate.Format("2006-01-02"), k.LabID)
}

// TestResult is the atomic unit of medical history. At most one row exists
// per ResultKey; re-statements of the same result in later documents merge
// into it instead of duplicating it.
type TestResult struct {
	ID               string            `json:"id" db:"id"`
	UserID           string            `json:"user_id" db:"user_id"`
	TestTypeID       string            `json:"test_type_id" db:"test_type_id"`
	LabID            string            `json:"lab_id" db:"lab_id"`
	TestDate         time.Time         `json:"test_date" db:"test_date"`
	LabTestName      string            `json:"lab_test_name" db:"lab_test_name"`
	Value            *float64          `json:"value,omitempty" db:"value"`
	ValueText        *string           `json:"value_text,omitempty" db:"value_text"`
	ValueNormalized  *QualitativeValue `json:"value_normalized,omitempty" db:"value_normalized"`
	Unit             *string           `json:"unit,omitempty" db:"unit"`
	LowerLimit       *float64          `json:"lower_limit,omitempty" db:"lower_limit"`
	UpperLimit       *float64          `json:"upper_limit,omitempty" db:"upper_limit"`
	Interpretation   *string           `json:"interpretation,omitempty" db:"interpretation"`
	Documentation    *string           `json:"documentation,omitempty" db:"documentation"`
	SourceDocumentID string            `json:"source_document_id" db:"source_document_id"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// Key returns the result's natural key.
func (r *TestResult) Key() ResultKey {
	return ResultKey{
		UserID:     r.UserID,
		TestTypeID: r.TestTypeID,
		TestDate:   r.TestDate,
		LabID:      r.LabID,
	}
}
