package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/filevault/internal/filevault/models"
	"github.com/lk2023060901/filevault/internal/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DecrementResult reports the outcome of releasing one reference
type DecrementResult struct {
	// ShouldDelete is true when the released reference was the last one and
	// the metadata row has been removed; the caller must purge the blob(s)
	ShouldDelete bool

	// Last known backend locations, populated only when ShouldDelete is true
	ObjectName          string
	ThumbnailObjectName string
}

// MetadataRepository is the deduplication store: the exclusive owner of
// FileMetadata rows. All mutating operations are individually atomic against
// concurrent calls for the same hash.
type MetadataRepository interface {
	// FindByHash returns the row for the given content hash, or nil when absent
	FindByHash(ctx context.Context, fileHash string) (*models.FileMetadata, error)

	// FindByObjectName is the reverse lookup used by delete-by-name
	FindByObjectName(ctx context.Context, objectName string) (*models.FileMetadata, error)

	// Create registers previously-unseen content with referenceCount = 1 for
	// ownerService. A unique-constraint collision (a concurrent create of the
	// same content) is converted into an Increment against the row that won
	// the race; the caller cannot and need not distinguish the two outcomes
	// beyond the created flag.
	Create(ctx context.Context, meta *models.FileMetadata, ownerService string) (result *models.FileMetadata, created bool, err error)

	// Increment adds one reference for ownerService
	Increment(ctx context.Context, fileHash, ownerService string) (*models.FileMetadata, error)

	// Decrement releases one reference for ownerService. Decrementing a hash
	// with no row, or on behalf of a service holding no reference, is a
	// no-op, never an error. When the count reaches zero the row is deleted
	// within the same operation and the last known object names are returned
	// for the caller to purge.
	Decrement(ctx context.Context, fileHash, ownerService string) (*DecrementResult, error)
}

// metadataRepository implements MetadataRepository on GORM/Postgres
type metadataRepository struct {
	db *database.DB
}

// New creates the Postgres-backed deduplication store
func New(db *database.DB) MetadataRepository {
	return &metadataRepository{db: db}
}

func (r *metadataRepository) FindByHash(ctx context.Context, fileHash string) (*models.FileMetadata, error) {
	var meta models.FileMetadata
	err := r.db.WithContext(ctx).Where("file_hash = ?", fileHash).First(&meta).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find file metadata by hash: %w", err)
	}
	return &meta, nil
}

func (r *metadataRepository) FindByObjectName(ctx context.Context, objectName string) (*models.FileMetadata, error) {
	var meta models.FileMetadata
	err := r.db.WithContext(ctx).Where("object_name = ?", objectName).First(&meta).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find file metadata by object name: %w", err)
	}
	return &meta, nil
}

func (r *metadataRepository) Create(ctx context.Context, meta *models.FileMetadata, ownerService string) (*models.FileMetadata, bool, error) {
	now := time.Now().UTC()
	meta.ReferenceCount = 1
	meta.CreatedAt = now
	meta.UpdatedAt = now
	if err := meta.SetOwnerCounts(map[string]int{ownerService: 1}); err != nil {
		return nil, false, fmt.Errorf("failed to encode service contexts: %w", err)
	}

	err := r.db.WithContext(ctx).Create(meta).Error
	if err == nil {
		return meta, true, nil
	}

	if !database.IsDuplicateKeyError(err) {
		return nil, false, fmt.Errorf("failed to create file metadata: %w", err)
	}

	// Lost the race against a concurrent first-upload of identical content.
	// The winning row is authoritative; our create becomes an increment.
	winner, incErr := r.Increment(ctx, meta.FileHash, ownerService)
	if incErr != nil {
		return nil, false, fmt.Errorf("failed to recover from duplicate create: %w", incErr)
	}
	return winner, false, nil
}

func (r *metadataRepository) Increment(ctx context.Context, fileHash, ownerService string) (*models.FileMetadata, error) {
	var meta models.FileMetadata

	err := r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("file_hash = ?", fileHash).
			First(&meta).Error; err != nil {
			return err
		}

		counts, err := meta.OwnerCounts()
		if err != nil {
			return fmt.Errorf("failed to decode service contexts: %w", err)
		}
		counts[ownerService]++
		if err := meta.SetOwnerCounts(counts); err != nil {
			return fmt.Errorf("failed to encode service contexts: %w", err)
		}

		meta.ReferenceCount++
		meta.UpdatedAt = time.Now().UTC()

		return tx.Model(&models.FileMetadata{}).
			Where("file_hash = ?", fileHash).
			Updates(map[string]interface{}{
				"reference_count":  meta.ReferenceCount,
				"service_contexts": meta.ServiceContexts,
				"updated_at":       meta.UpdatedAt,
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to increment reference: %w", err)
	}

	return &meta, nil
}

func (r *metadataRepository) Decrement(ctx context.Context, fileHash, ownerService string) (*DecrementResult, error) {
	result := &DecrementResult{}

	err := r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		var meta models.FileMetadata
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("file_hash = ?", fileHash).
			First(&meta).Error; err != nil {
			if database.IsRecordNotFoundError(err) {
				// no row: decrement is a documented no-op
				return nil
			}
			return err
		}

		counts, err := meta.OwnerCounts()
		if err != nil {
			return fmt.Errorf("failed to decode service contexts: %w", err)
		}
		if counts[ownerService] <= 0 {
			// releasing a reference the service never held must not drain
			// counts held by other services
			return nil
		}
		counts[ownerService]--
		if counts[ownerService] <= 0 {
			delete(counts, ownerService)
		}

		meta.ReferenceCount--

		if meta.ReferenceCount <= 0 {
			// the row must not survive at zero; delete it in this same
			// transaction and hand the locations back for blob cleanup
			if err := tx.Where("file_hash = ?", fileHash).
				Delete(&models.FileMetadata{}).Error; err != nil {
				return err
			}
			result.ShouldDelete = true
			result.ObjectName = meta.ObjectName
			result.ThumbnailObjectName = meta.ThumbnailObjectName
			return nil
		}

		if err := meta.SetOwnerCounts(counts); err != nil {
			return fmt.Errorf("failed to encode service contexts: %w", err)
		}

		return tx.Model(&models.FileMetadata{}).
			Where("file_hash = ?", fileHash).
			Updates(map[string]interface{}{
				"reference_count":  meta.ReferenceCount,
				"service_contexts": meta.ServiceContexts,
				"updated_at":       time.Now().UTC(),
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrement reference: %w", err)
	}

	return result, nil
}
