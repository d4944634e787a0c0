package compress

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"casedocs/internal/config"
	"casedocs/internal/filetype"
)

func TestPDFCodecToolMissing(t *testing.T) {
	cfg := testConfig()
	cfg.PDFTool = filepath.Join(t.TempDir(), "no-such-optimizer")
	d := NewDispatcher(cfg, zap.NewNop())

	_, err := d.Compress(context.Background(), filetype.KindPDF, []byte("%PDF-1.4 stub"))
	assert.ErrorIs(t, err, ErrCodec)
}

func TestPDFCodecToolFails(t *testing.T) {
	// A "tool" that always exits non-zero must abort ingestion.
	tool := writeScript(t, "#!/bin/sh\nexit 3\n")
	cfg := testConfig()
	cfg.PDFTool = tool
	d := NewDispatcher(cfg, zap.NewNop())

	_, err := d.Compress(context.Background(), filetype.KindPDF, []byte("%PDF-1.4 stub"))
	assert.ErrorIs(t, err, ErrCodec)
}

func TestPDFCodecSuccess(t *testing.T) {
	// Fake optimizer: writes a fixed smaller payload to the -sOutputFile arg.
	tool := writeScript(t, `#!/bin/sh
for arg in "$@"; do
  case "$arg" in
    -sOutputFile=*) out="${arg#-sOutputFile=}" ;;
  esac
done
printf 'tiny' > "$out"
`)
	cfg := testConfig()
	cfg.PDFTool = tool
	d := NewDispatcher(cfg, zap.NewNop())

	out, err := d.Compress(context.Background(), filetype.KindPDF, []byte("%PDF-1.4 a much larger original body"))
	require.NoError(t, err)
	assert.Equal(t, []byte("tiny"), out)
}

func TestPDFCodecLargerOutputKeepsOriginal(t *testing.T) {
	tool := writeScript(t, `#!/bin/sh
for arg in "$@"; do
  case "$arg" in
    -sOutputFile=*) out="${arg#-sOutputFile=}" ;;
  esac
done
head -c 4096 /dev/zero > "$out"
`)
	cfg := testConfig()
	cfg.PDFTool = tool
	d := NewDispatcher(cfg, zap.NewNop())

	in := []byte("%PDF-1.4 short")
	out, err := d.Compress(context.Background(), filetype.KindPDF, in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestPDFCodecTimeout(t *testing.T) {
	tool := writeScript(t, "#!/bin/sh\nsleep 5\n")
	cfg := testConfig()
	cfg.PDFTool = tool
	cfg.PDFToolTimeoutSec = 1
	d := NewDispatcher(cfg, zap.NewNop())

	_, err := d.Compress(context.Background(), filetype.KindPDF, []byte("%PDF-1.4"))
	assert.ErrorIs(t, err, ErrCodec)
	assert.Contains(t, err.Error(), "timed out")
}

func TestPDFCodecInvocationShape(t *testing.T) {
	var gotName string
	var gotArgs []string
	orig := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotName = name
		gotArgs = args
		// Substitute a command that satisfies the codec contract.
		out := ""
		for _, a := range args {
			if len(a) > len("-sOutputFile=") && a[:len("-sOutputFile=")] == "-sOutputFile=" {
				out = a[len("-sOutputFile="):]
			}
		}
		return exec.CommandContext(ctx, "/bin/sh", "-c", "printf x > "+out)
	}
	defer func() { commandContext = orig }()

	c := newPDFCodec(config.CompressionConfig{PDFTool: "gs", PDFToolTimeoutSec: 5})
	_, err := c.Compress(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)

	assert.Equal(t, "gs", gotName)
	assert.Contains(t, gotArgs, "-sDEVICE=pdfwrite")
	assert.Contains(t, gotArgs, "-dPDFSETTINGS=/ebook")
	assert.Contains(t, gotArgs, "-dBATCH")
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "optimizer.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}
