// Package archive assembles bulk-export containers. Members are streamed
// straight into the destination writer; the full archive never resides in
// memory or on disk.
package archive

import (
	"archive/zip"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// Writer wraps a zip writer that streams members to an underlying
// io.Writer. Not safe for concurrent use; one Writer per export.
type Writer struct {
	zw *zip.Writer
}

// NewWriter creates a streaming archive writer over w. Deflate is handled by
// klauspost/compress at its best-compression level.
func NewWriter(w io.Writer) *Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	return &Writer{zw: zw}
}

// Add appends one member under the given name, copying from r until EOF.
func (w *Writer) Add(name string, r io.Reader) error {
	member, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("create member %q: %w", name, err)
	}
	if _, err := io.Copy(member, r); err != nil {
		return fmt.Errorf("write member %q: %w", name, err)
	}
	return nil
}

// Close finalizes the central directory. The archive is not valid until
// Close returns nil.
func (w *Writer) Close() error {
	return w.zw.Close()
}
