// Package model contains domain models/data structures.
package model

import "time"

// Document is the metadata row for one stored file.
// CaseID and UploadedBy are opaque foreign keys owned by external systems.
// StoredPath locates the compressed artifact on the content store and is
// system-generated; OriginalName is display/download naming only and is
// never used for path resolution.
type Document struct {
	ID           string    `json:"id"`
	CaseID       string    `json:"case_id"`
	UploadedBy   string    `json:"uploaded_by"`
	OriginalName string    `json:"original_name"`
	StoredPath   string    `json:"stored_path"`
	MediaType    string    `json:"media_type"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploaded_at"`
}
