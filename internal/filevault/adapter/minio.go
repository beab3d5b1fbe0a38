package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lk2023060901/filevault/internal/conf"
	"github.com/lk2023060901/filevault/internal/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOAdapter stores blobs in a single MinIO (or any S3-compatible) bucket
type MinIOAdapter struct {
	client *minio.Client
	bucket string
	region string
	logger *logger.Logger
}

// NewMinIOAdapter creates a MinIO-backed storage adapter
func NewMinIOAdapter(cfg *conf.MinIOConfig, log *logger.Logger) (*MinIOAdapter, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("minio: bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIOAdapter{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		logger: log.Named("minio"),
	}, nil
}

func (a *MinIOAdapter) UploadFile(ctx context.Context, objectName string, buffer []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, a.bucket, objectName,
		bytes.NewReader(buffer), int64(len(buffer)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", objectName, err)
	}

	a.logger.Debug("object uploaded",
		zap.String("object_name", objectName),
		zap.Int("size", len(buffer)))
	return nil
}

func (a *MinIOAdapter) GetUploadURL(ctx context.Context, objectName, contentType string, expires time.Duration) (string, error) {
	if contentType == "" {
		u, err := a.client.PresignedPutObject(ctx, a.bucket, objectName, expires)
		if err != nil {
			return "", fmt.Errorf("failed to presign upload for %s: %w", objectName, err)
		}
		return u.String(), nil
	}

	// signing the Content-Type header makes the PUT fail if the client
	// declares anything else
	u, err := a.client.PresignHeader(ctx, http.MethodPut, a.bucket, objectName, expires,
		url.Values{}, http.Header{"Content-Type": []string{contentType}})
	if err != nil {
		return "", fmt.Errorf("failed to presign upload for %s: %w", objectName, err)
	}
	return u.String(), nil
}

func (a *MinIOAdapter) GetAccessURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	u, err := a.client.PresignedGetObject(ctx, a.bucket, objectName, expires, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign access for %s: %w", objectName, err)
	}
	return u.String(), nil
}

func (a *MinIOAdapter) DeleteFile(ctx context.Context, objectName string) error {
	err := a.client.RemoveObject(ctx, a.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", objectName, err)
	}

	a.logger.Debug("object deleted", zap.String("object_name", objectName))
	return nil
}

func (a *MinIOAdapter) DeleteFiles(ctx context.Context, objectNames []string) error {
	if len(objectNames) == 0 {
		return nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(objectNames))
	for _, name := range objectNames {
		objectsCh <- minio.ObjectInfo{Key: name}
	}
	close(objectsCh)

	var failed []string
	for res := range a.client.RemoveObjects(ctx, a.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if res.Err != nil {
			a.logger.Warn("failed to delete object in batch",
				zap.String("object_name", res.ObjectName),
				zap.Error(res.Err))
			failed = append(failed, res.ObjectName)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to delete %d of %d objects: %v", len(failed), len(objectNames), failed)
	}
	return nil
}

func (a *MinIOAdapter) FileExists(ctx context.Context, objectName string) (bool, error) {
	_, err := a.client.StatObject(ctx, a.bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %s: %w", objectName, err)
	}
	return true, nil
}

// ListObjects enumerates object names under a prefix. Not part of the
// StorageAdapter contract; exists so an out-of-band orphan sweep can diff the
// backend against the metadata store.
func (a *MinIOAdapter) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, obj.Err)
		}
		names = append(names, obj.Key)
	}
	return names, nil
}

func (a *MinIOAdapter) EnsureBucketExists(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}

	err = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region})
	if err != nil {
		// another instance may have created it between the check and here
		exists, checkErr := a.client.BucketExists(ctx, a.bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
	}

	a.logger.Info("bucket created", zap.String("bucket", a.bucket))
	return nil
}
