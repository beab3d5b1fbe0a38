package types

import "time"

// FileType classifies a stored blob by its authenticated content category
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeVideo    FileType = "video"
	FileTypeDocument FileType = "document"
	FileTypeAudio    FileType = "audio"
)

// Valid reports whether ft is one of the known file types
func (ft FileType) Valid() bool {
	switch ft {
	case FileTypeImage, FileTypeVideo, FileTypeDocument, FileTypeAudio:
		return true
	}
	return false
}

// UploadRequest carries a buffered upload through the engine
type UploadRequest struct {
	Buffer       []byte
	FileName     string
	MimeType     string
	FileSize     int64
	OwnerService string
	// FileTypeHint is advisory; the validated type always wins
	FileTypeHint FileType
}

// UploadResult describes the stored (or reused) blob
type UploadResult struct {
	ObjectName          string   `json:"object_name"`
	FileHash            string   `json:"file_hash"`
	FileType            FileType `json:"file_type"`
	AccessURL           string   `json:"access_url"`
	ThumbnailObjectName string   `json:"thumbnail_object_name,omitempty"`
	ThumbnailAccessURL  string   `json:"thumbnail_access_url,omitempty"`
	// IsNew is false when the upload deduplicated against existing content
	IsNew bool `json:"is_new"`
}

// UploadURLRequest asks for a presigned direct-upload URL.
// No metadata is written for this path; content is unknown until the
// client performs the PUT, so it can never deduplicate.
type UploadURLRequest struct {
	FileName     string
	MimeType     string
	OwnerService string
	FileTypeHint FileType
	ExpiresIn    time.Duration
}

// UploadURLResult carries the presigned upload URL and the object name it targets
type UploadURLResult struct {
	UploadURL  string `json:"upload_url"`
	ObjectName string `json:"object_name"`
	AccessURL  string `json:"access_url"`
}
