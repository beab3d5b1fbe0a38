package types

import (
	"errors"
	"fmt"
)

// Validation rejections. All of them occur before anything is written.
var (
	// ErrEmptyFile indicates a zero-length upload
	ErrEmptyFile = errors.New("filevault: file is empty")

	// ErrUnsupportedType indicates that no registered type accepted the file,
	// or that the declared metadata and the actual content disagree
	ErrUnsupportedType = errors.New("filevault: unsupported or mismatched file type")

	// ErrStorageUnavailable indicates a backend I/O failure during upload
	ErrStorageUnavailable = errors.New("filevault: storage backend unavailable")
)

// FileTooLargeError is returned when the declared size exceeds the ceiling
// of the validated type
type FileTooLargeError struct {
	FileType FileType
	MaxSize  int64
	Size     int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("filevault: %s file of %d bytes exceeds the %d byte limit",
		e.FileType, e.Size, e.MaxSize)
}

// IsRejection reports whether err is a validation rejection rather than an
// operational failure
func IsRejection(err error) bool {
	if errors.Is(err, ErrEmptyFile) || errors.Is(err, ErrUnsupportedType) {
		return true
	}
	var tooLarge *FileTooLargeError
	return errors.As(err, &tooLarge)
}
