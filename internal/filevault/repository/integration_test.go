//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/lk2023060901/filevault/internal/filevault/models"
	"github.com/lk2023060901/filevault/internal/pkg/database"
	"github.com/lk2023060901/filevault/internal/pkg/logger"
	"github.com/stretchr/testify/require"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupTestRepo(t *testing.T) (MetadataRepository, *database.DB) {
	t.Helper()

	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "console"})
	require.NoError(t, err)

	cfg := &database.Config{
		Host:        getEnv("TEST_DB_HOST", "localhost"),
		Port:        5432,
		User:        getEnv("TEST_DB_USER", "postgres"),
		Password:    getEnv("TEST_DB_PASSWORD", "postgres"),
		DBName:      getEnv("TEST_DB_NAME", "filevault_test"),
		SSLMode:     "disable",
		AutoMigrate: true,
	}

	db, err := database.New(cfg, log)
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.FileMetadata{}))

	t.Cleanup(func() {
		db.Exec("DELETE FROM file_metadata")
		db.Close()
	})

	return New(db), db
}

func newTestMeta(hash string) *models.FileMetadata {
	return &models.FileMetadata{
		FileHash:   hash,
		ObjectName: "posts/image/2026/09/01/" + hash[:16] + "_a.png",
		FileType:   "image",
		FileName:   "a.png",
		MimeType:   "image/png",
		FileSize:   12,
	}
}

func TestCreateAndFind(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hash := "1111111111111111111111111111111111111111111111111111111111111111"

	meta, created, err := repo.Create(ctx, newTestMeta(hash), "posts")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, 1, meta.ReferenceCount)

	found, err := repo.FindByHash(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, meta.ObjectName, found.ObjectName)

	byName, err := repo.FindByObjectName(ctx, meta.ObjectName)
	require.NoError(t, err)
	require.NotNil(t, byName)
	require.Equal(t, hash, byName.FileHash)
}

func TestCreateDuplicateBecomesIncrement(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hash := "2222222222222222222222222222222222222222222222222222222222222222"

	_, created, err := repo.Create(ctx, newTestMeta(hash), "posts")
	require.NoError(t, err)
	require.True(t, created)

	// second create of the same hash must be converted, not surfaced
	meta, created, err := repo.Create(ctx, newTestMeta(hash), "messages")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, 2, meta.ReferenceCount)

	counts, err := meta.OwnerCounts()
	require.NoError(t, err)
	require.Equal(t, map[string]int{"posts": 1, "messages": 1}, counts)
}

func TestDecrementLifecycle(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hash := "3333333333333333333333333333333333333333333333333333333333333333"
	original := newTestMeta(hash)

	_, _, err := repo.Create(ctx, original, "posts")
	require.NoError(t, err)
	_, err = repo.Increment(ctx, hash, "messages")
	require.NoError(t, err)

	res, err := repo.Decrement(ctx, hash, "posts")
	require.NoError(t, err)
	require.False(t, res.ShouldDelete)

	meta, err := repo.FindByHash(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, 1, meta.ReferenceCount)

	res, err = repo.Decrement(ctx, hash, "messages")
	require.NoError(t, err)
	require.True(t, res.ShouldDelete)
	require.Equal(t, original.ObjectName, res.ObjectName)

	meta, err = repo.FindByHash(ctx, hash)
	require.NoError(t, err)
	require.Nil(t, meta)
}

func TestDecrementByNonOwnerIsNoop(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hash := "5555555555555555555555555555555555555555555555555555555555555555"

	_, _, err := repo.Create(ctx, newTestMeta(hash), "posts")
	require.NoError(t, err)

	// a service with no outstanding reference must not touch the count
	res, err := repo.Decrement(ctx, hash, "messages")
	require.NoError(t, err)
	require.False(t, res.ShouldDelete)

	meta, err := repo.FindByHash(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, meta)
	require.Equal(t, 1, meta.ReferenceCount)
	counts, err := meta.OwnerCounts()
	require.NoError(t, err)
	require.Equal(t, map[string]int{"posts": 1}, counts)
}

func TestDecrementMissingHashIsNoop(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := repo.Decrement(ctx, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef", "posts")
	require.NoError(t, err)
	require.False(t, res.ShouldDelete)
	require.Empty(t, res.ObjectName)
}

func TestMultisetOwnerSemantics(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hash := "4444444444444444444444444444444444444444444444444444444444444444"

	_, _, err := repo.Create(ctx, newTestMeta(hash), "posts")
	require.NoError(t, err)
	_, err = repo.Increment(ctx, hash, "posts")
	require.NoError(t, err)

	// releasing one of two references held by the same service keeps the
	// service in the context set
	res, err := repo.Decrement(ctx, hash, "posts")
	require.NoError(t, err)
	require.False(t, res.ShouldDelete)

	meta, err := repo.FindByHash(ctx, hash)
	require.NoError(t, err)
	counts, err := meta.OwnerCounts()
	require.NoError(t, err)
	require.Equal(t, map[string]int{"posts": 1}, counts)
}
