package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeTestImage(t *testing.T, format string, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100})
	case "png":
		err = png.Encode(&buf, img)
	default:
		t.Fatalf("unsupported test format %q", format)
	}
	if err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}

	return buf.Bytes()
}

func TestProcessJPEG(t *testing.T) {
	tr := New()
	original := encodeTestImage(t, "jpeg", 800, 600)

	compressed, thumb, err := tr.Process(original)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(compressed) == 0 {
		t.Fatal("compressed output is empty")
	}
	if len(thumb) == 0 {
		t.Fatal("thumbnail is empty")
	}

	// thumbnail must decode as JPEG and fit the default 320x320 bounds
	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail does not decode: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("thumbnail format = %q, want jpeg", format)
	}
	if cfg.Width > 320 || cfg.Height > 320 {
		t.Fatalf("thumbnail %dx%d exceeds 320x320 bounds", cfg.Width, cfg.Height)
	}
}

func TestProcessPNG(t *testing.T) {
	tr := New()
	original := encodeTestImage(t, "png", 400, 400)

	compressed, thumb, err := tr.Process(original)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, format, err := image.DecodeConfig(bytes.NewReader(compressed)); err != nil || format != "png" {
		t.Fatalf("compressed output not decodable png: format=%q err=%v", format, err)
	}
	if len(thumb) == 0 {
		t.Fatal("thumbnail is empty")
	}
}

func TestProcessUndecodableBytesPassThrough(t *testing.T) {
	tr := New()
	buffer := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0xDE, 0xAD} // truncated PNG

	compressed, thumb, err := tr.Process(buffer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(compressed, buffer) {
		t.Fatal("undecodable input must pass through unchanged")
	}
	if thumb != nil {
		t.Fatal("undecodable input must not produce a thumbnail")
	}
}

func TestThumbnailPreservesAspectRatio(t *testing.T) {
	tr := New(WithThumbnailBounds(100, 100))
	original := encodeTestImage(t, "jpeg", 1000, 500)

	_, thumb, err := tr.Process(original)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail does not decode: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Fatalf("thumbnail = %dx%d, want 100x50", cfg.Width, cfg.Height)
	}
}
