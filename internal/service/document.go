package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"casedocs/internal/compress"
	"casedocs/internal/filetype"
	"casedocs/internal/model"
	"casedocs/internal/repository"
	"casedocs/internal/storage"
)

var (
	ErrCaseIDRequired      = errors.New("case id is required")
	ErrUploaderRequired    = errors.New("uploader id is required")
	ErrIDRequired          = errors.New("id is required")
	ErrReaderNil           = errors.New("reader is nil")
	ErrNotFound            = errors.New("document not found")
	ErrFileTooLarge        = errors.New("file exceeds the size ceiling")
	ErrUnsupportedType     = errors.New("file type not allowed")
	ErrPreviewNotSupported = errors.New("preview not supported for this file type")
)

// UploadInput carries one incoming file plus the opaque foreign keys the
// external collaborators supply. Authorization has already happened by the
// time an UploadInput reaches this package.
type UploadInput struct {
	CaseID       string
	UploadedBy   string
	OriginalName string
	MediaType    string
	Size         int64
	Reader       io.Reader
}

// Compressor shrinks accepted uploads by kind. Satisfied by
// *compress.Dispatcher.
type Compressor interface {
	Compress(ctx context.Context, kind filetype.Kind, data []byte) ([]byte, error)
}

// DocumentService defines the use cases of the document pipeline.
type DocumentService interface {
	// Upload classifies, compresses and persists one file, rolling back the
	// stored artifact if the metadata insert fails.
	Upload(ctx context.Context, in UploadInput) (*model.Document, error)

	// ListByCase returns metadata for every document owned by a case.
	ListByCase(ctx context.Context, caseID string) ([]model.Document, error)

	// Stage resolves a document and prepares its bytes in a per-request
	// workspace for streaming. The caller must Close the result on every
	// exit path.
	Stage(ctx context.Context, id string, mode RetrievalMode) (*StagedDocument, error)

	// ExportCase enumerates a case's documents eagerly and returns a
	// streaming archive over them. An empty case yields ErrNotFound.
	ExportCase(ctx context.Context, caseID string) (*CaseArchive, error)

	// Delete removes the artifact and then the metadata row. Unknown ids
	// yield ErrNotFound, so retries are harmless.
	Delete(ctx context.Context, id string) error
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store      storage.Storage
	repo       repository.DocumentRepository
	compressor Compressor
	maxSize    int64
	log        *zap.Logger
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, compressor Compressor, maxSize int64, log *zap.Logger) DocumentService {
	return &documentService{
		store:      store,
		repo:       repo,
		compressor: compressor,
		maxSize:    maxSize,
		log:        log,
	}
}

func (s *documentService) Upload(ctx context.Context, in UploadInput) (*model.Document, error) {
	if in.CaseID == "" || strings.ContainsAny(in.CaseID, "/\\") {
		return nil, ErrCaseIDRequired
	}
	if in.UploadedBy == "" {
		return nil, ErrUploaderRequired
	}
	if in.Reader == nil {
		return nil, ErrReaderNil
	}
	if in.Size > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes declared, ceiling %d", ErrFileTooLarge, in.Size, s.maxSize)
	}

	// Classification happens before any bytes are read or persisted.
	kind, err := filetype.Classify(in.MediaType, in.OriginalName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}

	// The ceiling is enforced on actual bytes too; declared sizes can lie.
	data, err := io.ReadAll(io.LimitReader(in.Reader, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: ceiling %d", ErrFileTooLarge, s.maxSize)
	}

	compressed, err := s.compressor.Compress(ctx, kind, data)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", in.OriginalName, err)
	}

	// Stored path is generated, collision-free and never derived from the
	// uploader-controlled original name.
	key := fmt.Sprintf("cases/%s/%s%s", in.CaseID, uuid.New().String(), kind.Ext())

	_, err = s.store.Put(ctx, key, bytes.NewReader(compressed), storage.PutObjectOptions{
		Size:        int64(len(compressed)),
		ContentType: kind.MediaType(),
		Metadata: map[string]string{
			"original-filename": in.OriginalName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	doc := &model.Document{
		ID:           uuid.New().String(),
		CaseID:       in.CaseID,
		UploadedBy:   in.UploadedBy,
		OriginalName: in.OriginalName,
		StoredPath:   key,
		MediaType:    kind.MediaType(),
		Size:         int64(len(compressed)),
		UploadedAt:   time.Now().UTC(),
	}
	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		// Rollback: no orphan artifacts without a metadata row.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

// ListByCase returns a case's documents without exposing repository types.
func (s *documentService) ListByCase(ctx context.Context, caseID string) ([]model.Document, error) {
	if caseID == "" {
		return nil, ErrCaseIDRequired
	}
	return s.repo.ListByCase(ctx, caseID)
}

// Delete removes a document's artifact, then its record.
func (s *documentService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	// Artifact first, then row: a failed store delete keeps the row so the
	// caller can retry. Object removal is idempotent in S3 semantics, so a
	// missing artifact has to be detected up front to be reported at all.
	if _, err := s.store.Stat(ctx, doc.StoredPath); err != nil {
		if !storage.IsNotExist(err) {
			return fmt.Errorf("stat storage: %w", err)
		}
		s.log.Warn("artifact already missing at delete time",
			zap.String("document_id", id),
			zap.String("stored_path", doc.StoredPath),
		)
	} else if err := s.store.Delete(ctx, doc.StoredPath); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost a race with a concurrent delete; the row is gone either way.
			return ErrNotFound
		}
		return err
	}
	return nil
}

var _ Compressor = (*compress.Dispatcher)(nil)
