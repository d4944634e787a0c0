package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"casedocs/internal/filetype"
	"casedocs/internal/storage"
)

// RetrievalMode selects the framing a staged document will be served with.
type RetrievalMode int

const (
	// ModeDownload serves the bytes as an attachment under the original name.
	ModeDownload RetrievalMode = iota
	// ModePreview streams the bytes inline; only preview-safe kinds qualify.
	ModePreview
)

// StagedDocument is a document prepared for streaming inside a per-request
// workspace. Close removes the workspace and must run on every exit path —
// completion, error or client disconnect. Concurrent retrievals of the same
// document never share a workspace.
type StagedDocument struct {
	// Path is the staged file inside the workspace.
	Path string
	// Name is the filename offered to the client (download framing), always
	// derived from the original name, never from the stored path.
	Name string
	// MediaType is the media type classified at ingestion time.
	MediaType string
	// Size is the staged byte count, for response framing.
	Size int64

	workspace string
}

// Close removes the workspace. Safe to call on a zero value and more than once.
func (s *StagedDocument) Close() error {
	if s == nil || s.workspace == "" {
		return nil
	}
	ws := s.workspace
	s.workspace = ""
	return os.RemoveAll(ws)
}

// Stage runs the retrieval pipeline up to the point where bytes can be
// streamed: resolve the row, check preview eligibility, copy the artifact
// from the content store into a fresh workspace.
func (s *documentService) Stage(ctx context.Context, id string, mode RetrievalMode) (*StagedDocument, error) {
	if id == "" {
		return nil, ErrIDRequired
	}

	// Resolving.
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	kind := filetype.FromMediaType(doc.MediaType)
	if mode == ModePreview && !kind.PreviewSafe() {
		return nil, fmt.Errorf("%w: %s", ErrPreviewNotSupported, doc.MediaType)
	}

	// Staging. MkdirTemp yields a workspace unique to this request.
	ws, err := os.MkdirTemp("", "casedocs-stage-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	staged, err := s.stageInto(ctx, ws, doc.StoredPath, clientName(doc.OriginalName, kind))
	if err != nil {
		os.RemoveAll(ws)
		if storage.IsNotExist(err) {
			// Lost a race with a concurrent delete: clean Not Found, not an
			// I/O fault.
			return nil, ErrNotFound
		}
		return nil, err
	}

	staged.MediaType = doc.MediaType
	return staged, nil
}

// stageInto copies the artifact into the workspace under name.
func (s *documentService) stageInto(ctx context.Context, ws, storedPath, name string) (*StagedDocument, error) {
	rc, _, err := s.store.Get(ctx, storedPath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	dst := filepath.Join(ws, name)
	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}

	n, err := io.Copy(f, rc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// A vanished object can surface here too, mid-read.
		return nil, fmt.Errorf("stage artifact: %w", err)
	}

	return &StagedDocument{
		Path:      dst,
		Name:      name,
		Size:      n,
		workspace: ws,
	}, nil
}

// clientName reduces the uploader-supplied original name to a bare filename.
// Original names are display data; they must never resolve paths.
func clientName(original string, kind filetype.Kind) string {
	name := filepath.Base(original)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "document" + kind.Ext()
	}
	return name
}
