package compress

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"casedocs/internal/config"
)

var commandContext = exec.CommandContext

// pdfCodec rewrites a PDF through an external Ghostscript-compatible
// optimizer. The invocation is bounded by a timeout so an unresponsive tool
// surfaces as a codec failure instead of hanging the request. If the tool is
// missing or exits non-zero the whole ingestion fails; there is no silent
// fallback to storing the uncompressed original.
type pdfCodec struct {
	tool    string
	timeout time.Duration
}

func newPDFCodec(cfg config.CompressionConfig) *pdfCodec {
	timeout := time.Duration(cfg.PDFToolTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &pdfCodec{tool: cfg.PDFTool, timeout: timeout}
}

func (c *pdfCodec) Compress(ctx context.Context, data []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "pdfopt-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	out := filepath.Join(dir, "out.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := commandContext(ctx, c.tool,
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=/ebook",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-sOutputFile="+out,
		in,
	)
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("optimizer timed out after %s", c.timeout)
		}
		return nil, fmt.Errorf("run %s: %w", c.tool, err)
	}

	optimized, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	if len(optimized) == 0 {
		return nil, fmt.Errorf("%s produced empty output", c.tool)
	}
	return optimized, nil
}
