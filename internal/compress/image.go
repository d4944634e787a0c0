package compress

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"

	"casedocs/internal/filetype"
)

// imageCodec re-encodes raster images at a reduced quality target and
// optionally downscales oversized scans first. The container format is
// preserved so the persisted media type stays truthful.
type imageCodec struct {
	kind    filetype.Kind
	quality int
	maxDim  int
}

func (c *imageCodec) Compress(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.kind, err)
	}

	img = c.downscale(img)

	var buf bytes.Buffer
	switch c.kind {
	case filetype.KindJPEG:
		q := c.quality
		if q <= 0 || q > 100 {
			q = jpeg.DefaultQuality
		}
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: q})
	case filetype.KindPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(&buf, img)
	default:
		return nil, fmt.Errorf("no image encoder for kind %s", c.kind)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.kind, err)
	}
	return buf.Bytes(), nil
}

// downscale caps the longer edge at maxDim, preserving aspect ratio.
func (c *imageCodec) downscale(img image.Image) image.Image {
	if c.maxDim <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longer := w
	if h > w {
		longer = h
	}
	if longer <= c.maxDim {
		return img
	}

	scale := float64(c.maxDim) / float64(longer)
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
