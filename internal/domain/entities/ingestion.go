package entities

import (
	"fmt"
	"strings"
	"time"
)

// LabDescriptor is the lab information extracted from one document.
type LabDescriptor struct {
	Name          string  `json:"name"`
	Address       *string `json:"address,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Email         *string `json:"email,omitempty"`
	Accreditation *string `json:"accreditation,omitempty"`
}

// Text renders the descriptor for the similarity matcher, mirroring
// Lab.DescriptorText so both sides of a comparison read the same way.
func (d LabDescriptor) Text() string {
	parts := []string{fmt.Sprintf("Name: %s", d.Name)}
	if d.Address != nil && *d.Address != "" {
		parts = append(parts, fmt.Sprintf("Address: %s", *d.Address))
	}
	if d.Phone != nil && *d.Phone != "" {
		parts = append(parts, fmt.Sprintf("Phone: %s", *d.Phone))
	}
	return strings.Join(parts, ", ")
}

// ExtractedResult is one test measurement extracted from a document, before
// resolution. SuggestedStandardName comes from the extraction step and is
// used verbatim when a brand-new test type has to be created.
type ExtractedResult struct {
	LabTestName           string            `json:"lab_test_name"`
	SuggestedStandardName string            `json:"suggested_standard_name,omitempty"`
	TestDate              time.Time         `json:"test_date"`
	Value                 *float64          `json:"value,omitempty"`
	ValueText             *string           `json:"value_text,omitempty"`
	ValueNormalized       *QualitativeValue `json:"value_normalized,omitempty"`
	Unit                  *string           `json:"unit,omitempty"`
	LowerLimit            *float64          `json:"lower_limit,omitempty"`
	UpperLimit            *float64          `json:"upper_limit,omitempty"`
	Interpretation        *string           `json:"interpretation,omitempty"`
	Documentation         *string           `json:"documentation,omitempty"`
}

// StandardName returns the name a new test type should be created with.
func (r ExtractedResult) StandardName() string {
	if strings.TrimSpace(r.SuggestedStandardName) != "" {
		return r.SuggestedStandardName
	}
	return r.LabTestName
}

// DocumentPayload is everything the extraction collaborator hands over for
// one document.
type DocumentPayload struct {
	DocumentID string            `json:"document_id"`
	UserID     string            `json:"user_id"`
	Lab        LabDescriptor     `json:"lab"`
	Results    []ExtractedResult `json:"results"`
}

// LabStatus describes how the document's lab descriptor was resolved.
type LabStatus string

const (
	LabCreated LabStatus = "created"
	LabMatched LabStatus = "matched"
)

// ResultStatus describes the outcome of upserting one extracted result.
type ResultStatus string

const (
	ResultCreated    ResultStatus = "created"
	ResultMerged     ResultStatus = "merged"
	ResultUnchanged  ResultStatus = "unchanged"
	ResultUnresolved ResultStatus = "unresolved"
)

// ResultOutcome is the per-result line of a document report.
type ResultOutcome struct {
	LabTestName string       `json:"lab_test_name"`
	TestTypeID  string       `json:"test_type_id,omitempty"`
	Status      ResultStatus `json:"status"`
	// Conflict is set when the stored result and the incoming payload
	// disagreed on a non-null value and last-write-wins was applied. It is a
	// data-quality signal for manual review, never an error.
	Conflict bool   `json:"conflict,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ReportSummary aggregates outcome counts for one document.
type ReportSummary struct {
	Created    int `json:"created"`
	Merged     int `json:"merged"`
	Unchanged  int `json:"unchanged"`
	Conflicts  int `json:"conflicts"`
	Unresolved int `json:"unresolved"`
}

// DocumentReport is the full outcome of processing one document payload.
type DocumentReport struct {
	DocumentID string          `json:"document_id"`
	LabID      string          `json:"lab_id,omitempty"`
	LabStatus  LabStatus       `json:"lab_status,omitempty"`
	Results    []ResultOutcome `json:"results"`
	Summary    ReportSummary   `json:"summary"`
	FatalError string          `json:"fatal_error,omitempty"`
}

// Record tallies one result outcome into the report.
func (r *DocumentReport) Record(outcome ResultOutcome) {
	r.Results = append(r.Results, outcome)
	switch outcome.Status {
	case ResultCreated:
		r.Summary.Created++
	case ResultMerged:
		r.Summary.Merged++
	case ResultUnchanged:
		r.Summary.Unchanged++
	case ResultUnresolved:
		r.Summary.Unresolved++
	}
	if outcome.Conflict {
		r.Summary.Conflicts++
	}
}
