package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	members := map[string]string{
		"contract.pdf": strings.Repeat("pdf bytes ", 100),
		"scan.jpg":     "jpeg bytes",
		"notes.docx":   "docx bytes",
	}
	for name, content := range members {
		require.NoError(t, w.Add(name, strings.NewReader(content)))
	}
	require.NoError(t, w.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, len(members))

	for _, f := range zr.File {
		want, ok := members[f.Name]
		require.True(t, ok, "unexpected member %q", f.Name)

		rc, err := f.Open()
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		assert.Equal(t, want, string(got))
	}
}

func TestWriterCompresses(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	payload := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 500)
	require.NoError(t, w.Add("repetitive.txt", strings.NewReader(payload)))
	require.NoError(t, w.Close())

	assert.Less(t, buf.Len(), len(payload))
}

func TestWriterEmptyArchive(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Empty(t, zr.File)
}
