// Package compress shrinks accepted uploads before they reach the content
// store. One codec per filetype.Kind, selected through a lookup table;
// kinds without a safe compressor pass through unchanged.
package compress

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"casedocs/internal/config"
	"casedocs/internal/filetype"
)

// ErrCodec marks a codec invocation failure (missing external tool, corrupt
// input, timeout). Ingestion as a whole must be aborted when it is returned.
var ErrCodec = errors.New("compression failed")

// Codec compresses a single artifact of a known kind.
type Codec interface {
	Compress(ctx context.Context, data []byte) ([]byte, error)
}

// Dispatcher routes artifacts to codecs by kind. A nil table entry means
// pass-through. The dispatcher never returns output larger than its input:
// a codec result that fails to shrink is discarded in favor of the original
// bytes.
type Dispatcher struct {
	codecs map[filetype.Kind]Codec
	log    *zap.Logger
}

// NewDispatcher builds the production codec table from configuration.
func NewDispatcher(cfg config.CompressionConfig, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		codecs: map[filetype.Kind]Codec{
			filetype.KindJPEG: &imageCodec{kind: filetype.KindJPEG, quality: cfg.JPEGQuality, maxDim: cfg.MaxImageDim},
			filetype.KindPNG:  &imageCodec{kind: filetype.KindPNG, quality: cfg.JPEGQuality, maxDim: cfg.MaxImageDim},
			filetype.KindPDF:  newPDFCodec(cfg),
			// KindDoc / KindDocx: no safe compressor, pass through.
		},
		log: log,
	}
}

// Compress returns the bytes to persist for the given artifact.
func (d *Dispatcher) Compress(ctx context.Context, kind filetype.Kind, data []byte) ([]byte, error) {
	codec, ok := d.codecs[kind]
	if !ok || codec == nil {
		return data, nil
	}

	out, err := codec.Compress(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCodec, kind, err)
	}
	if len(out) >= len(data) {
		d.log.Debug("codec output not smaller, keeping original",
			zap.String("kind", kind.String()),
			zap.Int("original_bytes", len(data)),
			zap.Int("codec_bytes", len(out)),
		)
		return data, nil
	}
	return out, nil
}
