// Package biz contains the storage engine: the orchestrator tying together
// validation, hashing, deduplication and the physical backend. It is the only
// layer allowed to touch more than one of those.
package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/filevault/internal/filevault/adapter"
	"github.com/lk2023060901/filevault/internal/filevault/hasher"
	"github.com/lk2023060901/filevault/internal/filevault/imaging"
	"github.com/lk2023060901/filevault/internal/filevault/models"
	"github.com/lk2023060901/filevault/internal/filevault/repository"
	"github.com/lk2023060901/filevault/internal/filevault/types"
	"github.com/lk2023060901/filevault/internal/filevault/validator"
	"github.com/lk2023060901/filevault/internal/pkg/database"
	"github.com/lk2023060901/filevault/internal/pkg/logger"
	"go.uber.org/zap"
)

// Engine is the content-addressed storage engine. Every public operation is
// safe for concurrent use; per-hash atomicity lives in the repository.
type Engine struct {
	validator     *validator.Validator
	repo          repository.MetadataRepository
	storage       adapter.StorageAdapter
	transformer   *imaging.Transformer
	logger        *logger.Logger
	defaultExpiry time.Duration
	now           func() time.Time
}

// NewEngine wires the storage engine together
func NewEngine(
	v *validator.Validator,
	repo repository.MetadataRepository,
	storage adapter.StorageAdapter,
	transformer *imaging.Transformer,
	log *logger.Logger,
	defaultExpiry time.Duration,
) *Engine {
	return &Engine{
		validator:     v,
		repo:          repo,
		storage:       storage,
		transformer:   transformer,
		logger:        log.Named("engine"),
		defaultExpiry: defaultExpiry,
		now:           time.Now,
	}
}

// Upload validates, deduplicates and stores a buffered upload.
//
// Identity is the SHA-256 of the uploaded bytes. When the hash is already
// known the blob is not written again; the caller gets the existing object
// with one more reference held for its service. Validation failures reject
// the upload before anything is written.
func (e *Engine) Upload(ctx context.Context, req *types.UploadRequest) (*types.UploadResult, error) {
	res, err := e.validator.Validate(req.Buffer, req.FileName, req.MimeType, req.FileSize)
	if err != nil {
		return nil, err
	}

	fileHash := hasher.Digest(req.Buffer)

	existing, err := e.repo.FindByHash(ctx, fileHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		meta, err := e.repo.Increment(ctx, fileHash, req.OwnerService)
		if err == nil {
			e.logger.Info("upload deduplicated",
				zap.String("file_hash", fileHash),
				zap.String("owner_service", req.OwnerService),
				zap.Int("reference_count", meta.ReferenceCount))
			return e.buildUploadResult(ctx, meta, false)
		}
		if !database.IsRecordNotFoundError(err) {
			return nil, err
		}
		// the row vanished between lookup and increment (last reference
		// released concurrently); store as new content
	}

	return e.storeNew(ctx, req, res.FileType, fileHash)
}

// storeNew writes the blob (and thumbnail, for images) and registers the
// metadata row
func (e *Engine) storeNew(ctx context.Context, req *types.UploadRequest, fileType types.FileType, fileHash string) (*types.UploadResult, error) {
	buffer := req.Buffer
	var thumbnail []byte

	if fileType == types.FileTypeImage {
		compressed, thumb, err := e.transformer.Process(buffer)
		if err != nil {
			return nil, fmt.Errorf("failed to process image: %w", err)
		}
		buffer = compressed
		thumbnail = thumb
	}

	objectName := buildObjectName(req.OwnerService, fileType, fileHash, req.FileName, e.now())

	if err := e.storage.UploadFile(ctx, objectName, buffer, req.MimeType); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
	}

	thumbnailObjectName := ""
	if thumbnail != nil {
		name := thumbnailName(objectName)
		if err := e.storage.UploadFile(ctx, name, thumbnail, "image/jpeg"); err != nil {
			// a missing thumbnail degrades the result, not the upload
			e.logger.Warn("failed to upload thumbnail",
				zap.String("object_name", name),
				zap.Error(err))
		} else {
			thumbnailObjectName = name
		}
	}

	meta := &models.FileMetadata{
		FileHash:            fileHash,
		ObjectName:          objectName,
		ThumbnailObjectName: thumbnailObjectName,
		FileType:            string(fileType),
		FileName:            req.FileName,
		MimeType:            req.MimeType,
		FileSize:            req.FileSize,
	}

	stored, created, err := e.repo.Create(ctx, meta, req.OwnerService)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost a concurrent first-upload race: the winner's blob is
		// authoritative. Deterministic naming means the names usually
		// collide with the winner's; deleting those would destroy the live
		// blob, so only names the winning row does not reference go away.
		var stale []string
		if objectName != stored.ObjectName {
			stale = append(stale, objectName)
		}
		if thumbnailObjectName != "" && thumbnailObjectName != stored.ThumbnailObjectName {
			stale = append(stale, thumbnailObjectName)
		}
		e.deleteBlobNames(ctx, stale)
	} else {
		e.logger.Info("file stored",
			zap.String("file_hash", fileHash),
			zap.String("object_name", objectName),
			zap.String("file_type", string(fileType)),
			zap.String("owner_service", req.OwnerService),
			zap.Int64("size", req.FileSize))
	}

	return e.buildUploadResult(ctx, stored, created)
}

func (e *Engine) buildUploadResult(ctx context.Context, meta *models.FileMetadata, isNew bool) (*types.UploadResult, error) {
	accessURL, err := e.storage.GetAccessURL(ctx, meta.ObjectName, e.defaultExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to build access url: %w", err)
	}

	result := &types.UploadResult{
		ObjectName:          meta.ObjectName,
		FileHash:            meta.FileHash,
		FileType:            types.FileType(meta.FileType),
		AccessURL:           accessURL,
		ThumbnailObjectName: meta.ThumbnailObjectName,
		IsNew:               isNew,
	}

	if meta.ThumbnailObjectName != "" {
		thumbURL, err := e.storage.GetAccessURL(ctx, meta.ThumbnailObjectName, e.defaultExpiry)
		if err != nil {
			e.logger.Warn("failed to build thumbnail access url",
				zap.String("object_name", meta.ThumbnailObjectName),
				zap.Error(err))
		} else {
			result.ThumbnailAccessURL = thumbURL
		}
	}

	return result, nil
}

// GetUploadURL issues a direct-upload URL for a reserved object name. No
// metadata row is written: the content does not exist yet, so this path never
// deduplicates and direct uploads stay outside reference tracking until
// re-registered through Upload.
func (e *Engine) GetUploadURL(ctx context.Context, req *types.UploadURLRequest) (*types.UploadURLResult, error) {
	fileType := req.FileTypeHint
	if !fileType.Valid() {
		detected, err := e.validator.DetectFromMetadata(req.FileName, req.MimeType)
		if err != nil {
			return nil, err
		}
		fileType = detected
	}

	expires := req.ExpiresIn
	if expires <= 0 {
		expires = e.defaultExpiry
	}

	objectName := placeholderObjectName(req.OwnerService, fileType, req.FileName, e.now())

	uploadURL, err := e.storage.GetUploadURL(ctx, objectName, req.MimeType, expires)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
	}
	accessURL, err := e.storage.GetAccessURL(ctx, objectName, expires)
	if err != nil {
		return nil, fmt.Errorf("failed to build access url: %w", err)
	}

	return &types.UploadURLResult{
		UploadURL:  uploadURL,
		ObjectName: objectName,
		AccessURL:  accessURL,
	}, nil
}

// GetAccessURL returns a fetch URL for a stored object. A non-positive
// expires falls back to the configured default.
func (e *Engine) GetAccessURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = e.defaultExpiry
	}
	return e.storage.GetAccessURL(ctx, objectName, expires)
}

// FileExists reports whether the object is present in the backend
func (e *Engine) FileExists(ctx context.Context, objectName string) (bool, error) {
	return e.storage.FileExists(ctx, objectName)
}

// DeleteFile releases one reference held by ownerService on the object. The
// blob is physically removed only when the released reference was the last
// one across all services. Objects without a metadata row (direct uploads)
// are deleted from the backend unconditionally.
func (e *Engine) DeleteFile(ctx context.Context, objectName, ownerService string) error {
	meta, err := e.repo.FindByObjectName(ctx, objectName)
	if err != nil {
		return err
	}
	if meta == nil {
		return e.storage.DeleteFile(ctx, objectName)
	}
	return e.release(ctx, meta.FileHash, ownerService)
}

// DeleteFileByHash releases one reference by content hash. A hash with no
// metadata row is a no-op.
func (e *Engine) DeleteFileByHash(ctx context.Context, fileHash, ownerService string) error {
	return e.release(ctx, fileHash, ownerService)
}

// DeleteFiles releases one reference on each named object. Every entry is
// attempted even when some fail; the returned error aggregates the failures.
func (e *Engine) DeleteFiles(ctx context.Context, objectNames []string, ownerService string) error {
	var failed []string
	for _, name := range objectNames {
		if err := e.DeleteFile(ctx, name, ownerService); err != nil {
			e.logger.Warn("failed to delete file in batch",
				zap.String("object_name", name),
				zap.Error(err))
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to delete %d of %d files: %v", len(failed), len(objectNames), failed)
	}
	return nil
}

func (e *Engine) release(ctx context.Context, fileHash, ownerService string) error {
	res, err := e.repo.Decrement(ctx, fileHash, ownerService)
	if err != nil {
		return err
	}
	if res.ShouldDelete {
		// metadata is already gone; a blob-delete failure here leaves an
		// orphan blob, never a dangling metadata row
		e.cleanupBlobs(ctx, res.ObjectName, res.ThumbnailObjectName)
	}
	return nil
}

func (e *Engine) cleanupBlobs(ctx context.Context, objectName, thumbnailObjectName string) {
	names := []string{objectName}
	if thumbnailObjectName != "" {
		names = append(names, thumbnailObjectName)
	}
	e.deleteBlobNames(ctx, names)
}

func (e *Engine) deleteBlobNames(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}
	if err := e.storage.DeleteFiles(ctx, names); err != nil {
		e.logger.Warn("failed to delete blobs; orphaned in backend",
			zap.Strings("object_names", names),
			zap.Error(err))
	}
}
