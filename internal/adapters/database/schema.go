package database

import (
	"context"
	"fmt"

	"github.com/sorincom/analize-new/internal/infrastructure/clients/postgres"
)

// schemaStatements creates every table and constraint the ingestion engine
// relies on. The UNIQUE constraints are the concurrency backstop: the keyed
// locks serialize same-entity writers inside one process, the constraints
// catch everything else.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		sex TEXT NOT NULL CHECK (sex IN ('M', 'F', 'O')),
		date_of_birth DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS labs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		phone TEXT,
		email TEXT,
		accreditation TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		lab_id TEXT REFERENCES labs(id),
		file_path TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		processed_at TIMESTAMPTZ,
		tokens TEXT,
		cost DOUBLE PRECISION,
		CONSTRAINT documents_user_content_hash_key UNIQUE (user_id, content_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS test_types (
		id TEXT PRIMARY KEY,
		standard_name TEXT NOT NULL,
		category TEXT,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS lab_test_aliases (
		test_type_id TEXT NOT NULL REFERENCES test_types(id),
		lab_id TEXT NOT NULL REFERENCES labs(id),
		lab_test_name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT lab_test_aliases_key PRIMARY KEY (test_type_id, lab_id, lab_test_name)
	)`,
	`CREATE TABLE IF NOT EXISTS test_results (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		test_type_id TEXT NOT NULL REFERENCES test_types(id),
		lab_id TEXT NOT NULL REFERENCES labs(id),
		test_date DATE NOT NULL,
		lab_test_name TEXT NOT NULL,
		value DOUBLE PRECISION,
		value_text TEXT,
		value_normalized TEXT,
		unit TEXT,
		lower_limit DOUBLE PRECISION,
		upper_limit DOUBLE PRECISION,
		interpretation TEXT,
		documentation TEXT,
		source_document_id TEXT NOT NULL REFERENCES documents(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT test_results_natural_key UNIQUE (user_id, test_type_id, test_date, lab_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_test_results_user_date ON test_results (user_id, test_date)`,
	`CREATE INDEX IF NOT EXISTS idx_test_results_user_type_date ON test_results (user_id, test_type_id, test_date)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_user ON documents (user_id, uploaded_at)`,
	`CREATE INDEX IF NOT EXISTS idx_lab_test_aliases_test_type ON lab_test_aliases (test_type_id)`,
}

// EnsureSchema creates the schema if it does not exist yet.
func EnsureSchema(ctx context.Context, client *postgres.Client) error {
	for _, stmt := range schemaStatements {
		if _, err := client.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
