// Package imaging provides the single compression + thumbnail step applied
// to image uploads. It is a pure function over the input buffer: no I/O, no
// state. Video and audio thumbnailing is not implemented; callers receive no
// thumbnail for those types.
package imaging

import (
	"bytes"
	"image"
	"image/gif"
	"image/png"

	"github.com/disintegration/imaging"
)

// Transformer re-encodes images at a reduced quality and derives a
// bounded-size thumbnail
type Transformer struct {
	quality        int
	thumbMaxWidth  int
	thumbMaxHeight int
}

// Option configures a Transformer
type Option func(*Transformer)

// WithQuality sets the JPEG re-encode quality (1-100)
func WithQuality(q int) Option {
	return func(t *Transformer) { t.quality = q }
}

// WithThumbnailBounds sets the bounding box thumbnails are fitted into
func WithThumbnailBounds(w, h int) Option {
	return func(t *Transformer) { t.thumbMaxWidth, t.thumbMaxHeight = w, h }
}

// New creates a Transformer with sensible defaults (quality 80, 320x320
// thumbnail bounds)
func New(opts ...Option) *Transformer {
	t := &Transformer{
		quality:        80,
		thumbMaxWidth:  320,
		thumbMaxHeight: 320,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Process compresses the image and derives a JPEG thumbnail fitted into the
// configured bounds. Formats the process cannot decode (e.g. WebP) pass
// through unchanged with a nil thumbnail; the caller treats a nil thumbnail
// as "no thumbnail available", never as an error.
func (t *Transformer) Process(buffer []byte) (compressed []byte, thumbnail []byte, err error) {
	img, format, err := image.Decode(bytes.NewReader(buffer))
	if err != nil {
		return buffer, nil, nil
	}

	compressed, err = t.compress(img, format, buffer)
	if err != nil {
		return nil, nil, err
	}

	thumbnail, err = t.thumbnailFor(img)
	if err != nil {
		return nil, nil, err
	}

	return compressed, thumbnail, nil
}

// compress re-encodes in the source format where re-encoding actually
// shrinks; animated or already-compact formats pass through
func (t *Transformer) compress(img image.Image, format string, original []byte) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case "jpeg":
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(t.quality)); err != nil {
			return nil, err
		}
	case "png":
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return nil, err
		}
	case "gif":
		// re-encoding would drop animation frames; keep the original unless
		// it is a single-frame image
		if isAnimatedGIF(original) {
			return original, nil
		}
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, err
		}
	default:
		return original, nil
	}

	// re-encoding can inflate small or already-optimized files
	if buf.Len() >= len(original) {
		return original, nil
	}

	return buf.Bytes(), nil
}

// thumbnailFor fits the image into the configured bounds, preserving aspect
// ratio, and encodes it as JPEG
func (t *Transformer) thumbnailFor(img image.Image) ([]byte, error) {
	thumb := imaging.Fit(img, t.thumbMaxWidth, t.thumbMaxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(t.quality)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func isAnimatedGIF(buffer []byte) bool {
	g, err := gif.DecodeAll(bytes.NewReader(buffer))
	if err != nil {
		return false
	}
	return len(g.Image) > 1
}
