package models

import (
	"encoding/json"
	"time"
)

// FileMetadata is the single row kept per distinct content hash. The hash is
// the identity of the blob: a unique key enforced by the primary key
// constraint. Descriptive fields (FileName, MimeType, FileSize) come from the
// first uploader and are never updated by later references.
type FileMetadata struct {
	FileHash            string `gorm:"column:file_hash;primaryKey;size:64" json:"file_hash"`
	ObjectName          string `gorm:"column:object_name;size:512;not null;index:idx_file_metadata_object_name,unique" json:"object_name"`
	ThumbnailObjectName string `gorm:"column:thumbnail_object_name;size:512" json:"thumbnail_object_name,omitempty"`
	FileType            string `gorm:"column:file_type;size:20;not null" json:"file_type"`
	FileName            string `gorm:"column:file_name;size:255;not null" json:"file_name"`
	MimeType            string `gorm:"column:mime_type;size:100;not null" json:"mime_type"`
	FileSize            int64  `gorm:"column:file_size;not null" json:"file_size"`

	// ReferenceCount is the number of outstanding logical references. A row
	// never rests at zero: the decrement that reaches zero deletes the row
	// in the same operation.
	ReferenceCount int `gorm:"column:reference_count;not null;default:1" json:"reference_count"`

	// ServiceContexts holds per-owner reference subcounts as a JSON object
	// {"posts": 2, "messages": 1}. Keeping a count per owner (rather than a
	// plain set) means a service holding two independent references is not
	// dropped from the set by releasing just one of them.
	ServiceContexts string `gorm:"column:service_contexts;type:jsonb;not null;default:'{}'" json:"service_contexts"`

	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName specifies the table name
func (FileMetadata) TableName() string {
	return "file_metadata"
}

// OwnerCounts decodes the per-owner reference subcounts
func (m *FileMetadata) OwnerCounts() (map[string]int, error) {
	counts := make(map[string]int)
	if m.ServiceContexts == "" {
		return counts, nil
	}
	if err := json.Unmarshal([]byte(m.ServiceContexts), &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// SetOwnerCounts encodes the per-owner reference subcounts
func (m *FileMetadata) SetOwnerCounts(counts map[string]int) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	m.ServiceContexts = string(data)
	return nil
}

// Owners returns the set view of the service contexts: every owner with at
// least one outstanding reference
func (m *FileMetadata) Owners() ([]string, error) {
	counts, err := m.OwnerCounts()
	if err != nil {
		return nil, err
	}
	owners := make([]string, 0, len(counts))
	for owner := range counts {
		owners = append(owners, owner)
	}
	return owners, nil
}
