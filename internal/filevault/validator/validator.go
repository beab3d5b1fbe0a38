package validator

import (
	"path/filepath"
	"strings"

	"github.com/lk2023060901/filevault/internal/filevault/types"
)

// Validator classifies and authenticates upload buffers against a fixed
// registry of type configurations. A file is accepted only when its declared
// MIME type or extension nominates a format AND the leading bytes match one
// of that exact format's magic signatures. The three-way cross-check
// (extension, MIME type, actual bytes) rejects content disguised with a
// friendly name: JPEG bytes uploaded as "a.png" fail the PNG signature even
// though both are images.
type Validator struct {
	registry []typeConfig
}

// New creates a validator over the built-in type registry
func New() *Validator {
	return &Validator{registry: registry}
}

// Result carries the authenticated classification of a buffer
type Result struct {
	FileType types.FileType
}

// Validate authenticates buffer against the declared metadata.
//
// The declared size is rejected outright when zero. Registry entries are
// evaluated in fixed order; a format is a candidate when the declared MIME
// type or the file extension belongs to it, and the first candidate whose
// magic bytes match the buffer wins. A winning type whose size ceiling is
// below declaredSize is rejected with the ceiling named.
func (v *Validator) Validate(buffer []byte, fileName, mimeType string, declaredSize int64) (*Result, error) {
	if declaredSize == 0 || len(buffer) == 0 {
		return nil, types.ErrEmptyFile
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	mime := normalizeMime(mimeType)

	for _, cfg := range v.registry {
		for _, format := range cfg.formats {
			if !format.isCandidate(mime, ext) {
				continue
			}

			if !format.matchesMagic(buffer) {
				continue
			}

			if declaredSize > cfg.maxSize {
				return nil, &types.FileTooLargeError{
					FileType: cfg.fileType,
					MaxSize:  cfg.maxSize,
					Size:     declaredSize,
				}
			}

			return &Result{FileType: cfg.fileType}, nil
		}
	}

	return nil, types.ErrUnsupportedType
}

// DetectFromMetadata classifies by declared metadata only, for use before
// any bytes exist (direct-upload URL issuance). The result is advisory: no
// magic-byte confirmation has happened and callers must not treat it as
// authoritative.
func (v *Validator) DetectFromMetadata(fileName, mimeType string) (types.FileType, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	mime := normalizeMime(mimeType)

	for _, cfg := range v.registry {
		for _, format := range cfg.formats {
			if format.isCandidate(mime, ext) {
				return cfg.fileType, nil
			}
		}
	}

	return "", types.ErrUnsupportedType
}

// MaxSizeFor returns the size ceiling for the given type, or 0 when unknown
func (v *Validator) MaxSizeFor(ft types.FileType) int64 {
	for _, cfg := range v.registry {
		if cfg.fileType == ft {
			return cfg.maxSize
		}
	}
	return 0
}

func (f *formatConfig) isCandidate(mime, ext string) bool {
	for _, m := range f.mimeTypes {
		if m == mime {
			return true
		}
	}
	for _, e := range f.extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (f *formatConfig) matchesMagic(buffer []byte) bool {
	for _, s := range f.signatures {
		if s.matches(buffer) {
			return true
		}
	}
	return false
}

// normalizeMime strips parameters such as "; charset=utf-8" and lowercases
func normalizeMime(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
