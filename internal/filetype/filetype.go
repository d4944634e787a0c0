// Package filetype classifies incoming uploads against the fixed media-type
// allow-list. Classification happens before any bytes are persisted or
// compressed; everything downstream dispatches on Kind, not on MIME strings.
package filetype

import (
	"errors"
	"fmt"
	"mime"
	"strings"
)

// Kind is one accepted document type.
type Kind int

const (
	KindUnknown Kind = iota
	KindPDF
	KindJPEG
	KindPNG
	KindDoc
	KindDocx
)

// ErrUnsupported is returned for media types outside the allow-list.
var ErrUnsupported = errors.New("unsupported media type")

var byMediaType = map[string]Kind{
	"application/pdf": KindPDF,
	"image/jpeg":      KindJPEG,
	"image/png":       KindPNG,
	"application/msword": KindDoc,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": KindDocx,
}

// Classify accepts or rejects an upload based on its declared media type.
// The filename is only consulted to report a helpful error; it never
// overrides the declared type.
func Classify(mediaType, filename string) (Kind, error) {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mediaType))
	}
	if k, ok := byMediaType[mt]; ok {
		return k, nil
	}
	return KindUnknown, fmt.Errorf("%w: %q (%s)", ErrUnsupported, mediaType, filename)
}

// FromMediaType resolves a persisted media type back to its Kind.
// Persisted values are always allow-list members, so KindUnknown here
// indicates a corrupted row.
func FromMediaType(mediaType string) Kind {
	return byMediaType[mediaType]
}

// MediaType returns the canonical media type persisted for this kind.
func (k Kind) MediaType() string {
	switch k {
	case KindPDF:
		return "application/pdf"
	case KindJPEG:
		return "image/jpeg"
	case KindPNG:
		return "image/png"
	case KindDoc:
		return "application/msword"
	case KindDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return ""
	}
}

// Ext returns the sanitized extension used when generating stored paths.
func (k Kind) Ext() string {
	switch k {
	case KindPDF:
		return ".pdf"
	case KindJPEG:
		return ".jpg"
	case KindPNG:
		return ".png"
	case KindDoc:
		return ".doc"
	case KindDocx:
		return ".docx"
	default:
		return ""
	}
}

// PreviewSafe reports whether the kind may be streamed inline to a browser.
func (k Kind) PreviewSafe() bool {
	switch k {
	case KindPDF, KindJPEG, KindPNG:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindJPEG:
		return "jpeg"
	case KindPNG:
		return "png"
	case KindDoc:
		return "doc"
	case KindDocx:
		return "docx"
	default:
		return "unknown"
	}
}
