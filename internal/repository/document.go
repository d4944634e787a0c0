package repository

import (
	"context"

	"casedocs/internal/model"
)

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here — strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record and returns the stored row.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID, or sql.ErrNoRows.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// ListByCase returns every document owned by the given case, newest first.
	ListByCase(ctx context.Context, caseID string) ([]model.Document, error)

	// Delete removes a document by ID. It returns sql.ErrNoRows when no row
	// matched, so callers can report idempotent deletes as Not Found.
	Delete(ctx context.Context, id string) error
}
