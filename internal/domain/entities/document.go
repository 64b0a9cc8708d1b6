package entities

import (
	"time"
)

// Document is the registry record for one uploaded source file. Content-hash
// deduplication happens at upload time, so a document id is stable across
// re-processing runs.
type Document struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	LabID       *string    `json:"lab_id,omitempty" db:"lab_id"`
	FilePath    string     `json:"file_path" db:"file_path"`
	ContentHash string     `json:"content_hash" db:"content_hash"`
	UploadedAt  time.Time  `json:"uploaded_at" db:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	// TokenUsage holds the raw JSON of per-model LLM token counts spent on
	// this document, for billing audit.
	TokenUsage *string  `json:"token_usage,omitempty" db:"tokens"`
	Cost       *float64 `json:"cost,omitempty" db:"cost"`
}
