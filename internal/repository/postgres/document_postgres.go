package postgres

import (
	"context"
	"database/sql"

	"casedocs/internal/model"
	"casedocs/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, case_id, uploaded_by, original_name, stored_path, media_type, size, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, case_id, uploaded_by, original_name, stored_path, media_type, size, uploaded_at
	`
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.CaseID,
		doc.UploadedBy,
		doc.OriginalName,
		doc.StoredPath,
		doc.MediaType,
		doc.Size,
		doc.UploadedAt,
	)
	var out model.Document
	if err := scanDocument(row, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `
		SELECT id, case_id, uploaded_by, original_name, stored_path, media_type, size, uploaded_at
		FROM documents
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, q, id)
	var d model.Document
	if err := scanDocument(row, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByCase returns the documents owned by a case, newest first.
func (r *DocumentPostgres) ListByCase(ctx context.Context, caseID string) ([]model.Document, error) {
	const q = `
		SELECT id, case_id, uploaded_by, original_name, stored_path, media_type, size, uploaded_at
		FROM documents
		WHERE case_id = $1
		ORDER BY uploaded_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, q, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(
			&d.ID,
			&d.CaseID,
			&d.UploadedBy,
			&d.OriginalName,
			&d.StoredPath,
			&d.MediaType,
			&d.Size,
			&d.UploadedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a document by ID, reporting sql.ErrNoRows when nothing matched.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, d *model.Document) error {
	return row.Scan(
		&d.ID,
		&d.CaseID,
		&d.UploadedBy,
		&d.OriginalName,
		&d.StoredPath,
		&d.MediaType,
		&d.Size,
		&d.UploadedAt,
	)
}
