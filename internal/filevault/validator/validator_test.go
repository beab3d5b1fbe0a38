package validator

import (
	"errors"
	"testing"

	"github.com/lk2023060901/filevault/internal/filevault/types"
)

var (
	pngHeader  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	pdfHeader  = []byte("%PDF-1.7 fake content")
	mp3Header  = append([]byte("ID3"), make([]byte, 16)...)
)

func TestValidate(t *testing.T) {
	v := New()

	t.Run("png accepted", func(t *testing.T) {
		res, err := v.Validate(pngHeader, "a.png", "image/png", int64(len(pngHeader)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.FileType != types.FileTypeImage {
			t.Fatalf("FileType = %q, want image", res.FileType)
		}
	})

	t.Run("jpeg accepted by extension alone", func(t *testing.T) {
		res, err := v.Validate(jpegHeader, "photo.JPG", "application/octet-stream", int64(len(jpegHeader)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.FileType != types.FileTypeImage {
			t.Fatalf("FileType = %q, want image", res.FileType)
		}
	})

	t.Run("jpeg bytes named png are rejected", func(t *testing.T) {
		// filename and declared MIME agree with each other but not with the
		// actual content
		_, err := v.Validate(jpegHeader, "a.png", "image/png", int64(len(jpegHeader)))
		if !errors.Is(err, types.ErrUnsupportedType) {
			t.Fatalf("err = %v, want ErrUnsupportedType", err)
		}
	})

	t.Run("script disguised as image is rejected", func(t *testing.T) {
		buf := []byte("#!/bin/sh\necho pwned\n")
		_, err := v.Validate(buf, "a.png", "image/png", int64(len(buf)))
		if !errors.Is(err, types.ErrUnsupportedType) {
			t.Fatalf("err = %v, want ErrUnsupportedType", err)
		}
	})

	t.Run("pdf disguised as image is rejected", func(t *testing.T) {
		_, err := v.Validate(pdfHeader, "report.png", "image/png", int64(len(pdfHeader)))
		if !errors.Is(err, types.ErrUnsupportedType) {
			t.Fatalf("err = %v, want ErrUnsupportedType", err)
		}
	})

	t.Run("pdf accepted as document", func(t *testing.T) {
		res, err := v.Validate(pdfHeader, "report.pdf", "application/pdf", int64(len(pdfHeader)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.FileType != types.FileTypeDocument {
			t.Fatalf("FileType = %q, want document", res.FileType)
		}
	})

	t.Run("mp3 accepted as audio", func(t *testing.T) {
		res, err := v.Validate(mp3Header, "song.mp3", "audio/mpeg", int64(len(mp3Header)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.FileType != types.FileTypeAudio {
			t.Fatalf("FileType = %q, want audio", res.FileType)
		}
	})

	t.Run("empty file rejected", func(t *testing.T) {
		_, err := v.Validate(nil, "a.png", "image/png", 0)
		if !errors.Is(err, types.ErrEmptyFile) {
			t.Fatalf("err = %v, want ErrEmptyFile", err)
		}
	})

	t.Run("oversized image rejected with ceiling", func(t *testing.T) {
		_, err := v.Validate(pngHeader, "big.png", "image/png", 11<<20)
		var tooLarge *types.FileTooLargeError
		if !errors.As(err, &tooLarge) {
			t.Fatalf("err = %v, want FileTooLargeError", err)
		}
		if tooLarge.MaxSize != 10<<20 {
			t.Fatalf("MaxSize = %d, want %d", tooLarge.MaxSize, int64(10<<20))
		}
		if tooLarge.FileType != types.FileTypeImage {
			t.Fatalf("FileType = %q, want image", tooLarge.FileType)
		}
	})

	t.Run("unknown extension and mime rejected", func(t *testing.T) {
		buf := []byte{0x00, 0x01, 0x02, 0x03}
		_, err := v.Validate(buf, "a.xyz", "application/x-unknown", int64(len(buf)))
		if !errors.Is(err, types.ErrUnsupportedType) {
			t.Fatalf("err = %v, want ErrUnsupportedType", err)
		}
	})

	t.Run("webp multi-segment signature", func(t *testing.T) {
		buf := []byte{'R', 'I', 'F', 'F', 0x24, 0x00, 0x00, 0x00, 'W', 'E', 'B', 'P', 'V', 'P', '8', ' '}
		res, err := v.Validate(buf, "a.webp", "image/webp", int64(len(buf)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.FileType != types.FileTypeImage {
			t.Fatalf("FileType = %q, want image", res.FileType)
		}
	})

	t.Run("wav riff container not confused with webp", func(t *testing.T) {
		buf := []byte{'R', 'I', 'F', 'F', 0x24, 0x00, 0x00, 0x00, 'W', 'A', 'V', 'E', 'f', 'm', 't', ' '}
		res, err := v.Validate(buf, "a.wav", "audio/wav", int64(len(buf)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.FileType != types.FileTypeAudio {
			t.Fatalf("FileType = %q, want audio", res.FileType)
		}
	})

	t.Run("mime parameters stripped", func(t *testing.T) {
		res, err := v.Validate(pdfHeader, "report.bin", "application/pdf; charset=binary", int64(len(pdfHeader)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.FileType != types.FileTypeDocument {
			t.Fatalf("FileType = %q, want document", res.FileType)
		}
	})
}

func TestDetectFromMetadata(t *testing.T) {
	v := New()

	tests := []struct {
		name     string
		fileName string
		mimeType string
		want     types.FileType
		wantErr  bool
	}{
		{"png by mime", "whatever", "image/png", types.FileTypeImage, false},
		{"mp4 by extension", "clip.mp4", "", types.FileTypeVideo, false},
		{"pdf", "doc.pdf", "application/pdf", types.FileTypeDocument, false},
		{"flac by extension", "track.flac", "", types.FileTypeAudio, false},
		{"unknown", "data.bin", "application/octet-stream", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.DetectFromMetadata(tt.fileName, tt.mimeType)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("DetectFromMetadata() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMaxSizeFor(t *testing.T) {
	v := New()
	if got := v.MaxSizeFor(types.FileTypeVideo); got != 100<<20 {
		t.Fatalf("MaxSizeFor(video) = %d, want %d", got, int64(100<<20))
	}
	if got := v.MaxSizeFor(types.FileType("bogus")); got != 0 {
		t.Fatalf("MaxSizeFor(bogus) = %d, want 0", got)
	}
}
