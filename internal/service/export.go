package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"casedocs/internal/archive"
	"casedocs/internal/filetype"
	"casedocs/internal/model"
	"casedocs/internal/storage"
)

// CaseArchive is a bulk export prepared for streaming. Enumeration happens
// eagerly in ExportCase so an empty case can be reported before any response
// bytes are written; member content is pulled from the content store only
// while Stream runs.
type CaseArchive struct {
	CaseID string

	docs  []model.Document
	store storage.Storage
	log   *zap.Logger
}

// NewCaseArchive builds a streaming archive over an already-enumerated set
// of documents.
func NewCaseArchive(caseID string, docs []model.Document, store storage.Storage, log *zap.Logger) *CaseArchive {
	return &CaseArchive{CaseID: caseID, docs: docs, store: store, log: log}
}

// Filename is the archive name offered to the client.
func (a *CaseArchive) Filename() string {
	return fmt.Sprintf("case-%s-documents.zip", a.CaseID)
}

// Stream writes the archive to w, appending each document whose artifact is
// still present under its original name. Missing artifacts are skipped and
// logged; any other failure abandons the stream so a truncated archive is
// never finalized as complete.
func (a *CaseArchive) Stream(ctx context.Context, w io.Writer) error {
	aw := archive.NewWriter(w)
	seen := make(map[string]struct{}, len(a.docs))

	for _, doc := range a.docs {
		rc, _, err := a.store.Get(ctx, doc.StoredPath)
		if err != nil {
			if storage.IsNotExist(err) {
				a.log.Warn("artifact missing, skipping export member",
					zap.String("case_id", a.CaseID),
					zap.String("document_id", doc.ID),
					zap.String("stored_path", doc.StoredPath),
				)
				continue
			}
			return fmt.Errorf("fetch %s: %w", doc.ID, err)
		}

		err = aw.Add(memberName(doc, seen), rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("append %s: %w", doc.ID, err)
		}
	}

	return aw.Close()
}

// ExportCase enumerates a case's documents; a case without documents is Not
// Found rather than an empty archive.
func (s *documentService) ExportCase(ctx context.Context, caseID string) (*CaseArchive, error) {
	if caseID == "" {
		return nil, ErrCaseIDRequired
	}
	docs, err := s.repo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return NewCaseArchive(caseID, docs, s.store, s.log), nil
}

// memberName picks the archive entry name for a document: the original base
// name, disambiguated with the document id when two documents in one case
// share a name.
func memberName(doc model.Document, seen map[string]struct{}) string {
	name := filepath.Base(doc.OriginalName)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = doc.ID + filetype.FromMediaType(doc.MediaType).Ext()
	}
	if _, dup := seen[name]; dup {
		prefix := doc.ID
		if len(prefix) > 8 {
			prefix = prefix[:8]
		}
		name = prefix + "-" + name
	}
	seen[name] = struct{}{}
	return name
}
