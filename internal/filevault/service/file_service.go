package service

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/filevault/internal/filevault/biz"
	"github.com/lk2023060901/filevault/internal/filevault/types"
	"go.uber.org/zap"
)

// FileService exposes the storage engine over HTTP
type FileService struct {
	engine *biz.Engine
	logger *zap.Logger
}

func NewFileService(engine *biz.Engine, logger *zap.Logger) *FileService {
	return &FileService{
		engine: engine,
		logger: logger,
	}
}

// RegisterRoutes registers the file endpoints on the given router group
func (s *FileService) RegisterRoutes(r *gin.RouterGroup) {
	files := r.Group("/files")
	{
		files.POST("", s.Upload)
		files.POST("/upload-url", s.GetUploadURL)
		files.GET("/access-url", s.GetAccessURL)
		files.GET("/exists", s.FileExists)
		files.DELETE("", s.Delete)
		files.DELETE("/batch", s.DeleteBatch)
	}
}

type uploadURLRequest struct {
	FileName         string `json:"file_name" binding:"required"`
	MimeType         string `json:"mime_type" binding:"required"`
	OwnerService     string `json:"owner_service" binding:"required"`
	FileType         string `json:"file_type"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

type deleteRequest struct {
	ObjectName   string `json:"object_name"`
	FileHash     string `json:"file_hash"`
	OwnerService string `json:"owner_service" binding:"required"`
}

type deleteBatchRequest struct {
	ObjectNames  []string `json:"object_names" binding:"required"`
	OwnerService string   `json:"owner_service" binding:"required"`
}

// Upload accepts a multipart upload and stores it through the engine
func (s *FileService) Upload(c *gin.Context) {
	ownerService := c.PostForm("owner_service")
	if ownerService == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_service is required"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer file.Close()

	buffer, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return
	}

	req := &types.UploadRequest{
		Buffer:       buffer,
		FileName:     fileHeader.Filename,
		MimeType:     fileHeader.Header.Get("Content-Type"),
		FileSize:     fileHeader.Size,
		OwnerService: ownerService,
		FileTypeHint: types.FileType(c.PostForm("file_type")),
	}

	result, err := s.engine.Upload(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err, "failed to upload file")
		return
	}

	status := http.StatusCreated
	if !result.IsNew {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// GetUploadURL issues a presigned direct-upload URL
func (s *FileService) GetUploadURL(c *gin.Context) {
	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.engine.GetUploadURL(c.Request.Context(), &types.UploadURLRequest{
		FileName:     req.FileName,
		MimeType:     req.MimeType,
		OwnerService: req.OwnerService,
		FileTypeHint: types.FileType(req.FileType),
		ExpiresIn:    time.Duration(req.ExpiresInSeconds) * time.Second,
	})
	if err != nil {
		s.respondError(c, err, "failed to issue upload url")
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAccessURL returns a fetch URL for a stored object
func (s *FileService) GetAccessURL(c *gin.Context) {
	objectName := c.Query("object_name")
	if objectName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object_name is required"})
		return
	}

	expiresSeconds, _ := strconv.ParseInt(c.DefaultQuery("expires_in_seconds", "0"), 10, 64)

	url, err := s.engine.GetAccessURL(c.Request.Context(), objectName,
		time.Duration(expiresSeconds)*time.Second)
	if err != nil {
		s.respondError(c, err, "failed to issue access url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"object_name": objectName, "access_url": url})
}

// FileExists reports whether an object is present in the backend
func (s *FileService) FileExists(c *gin.Context) {
	objectName := c.Query("object_name")
	if objectName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object_name is required"})
		return
	}

	exists, err := s.engine.FileExists(c.Request.Context(), objectName)
	if err != nil {
		s.respondError(c, err, "failed to check file existence")
		return
	}

	c.JSON(http.StatusOK, gin.H{"object_name": objectName, "exists": exists})
}

// Delete releases one reference by object name or content hash
func (s *FileService) Delete(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ObjectName == "" && req.FileHash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object_name or file_hash is required"})
		return
	}

	var err error
	if req.FileHash != "" {
		err = s.engine.DeleteFileByHash(c.Request.Context(), req.FileHash, req.OwnerService)
	} else {
		err = s.engine.DeleteFile(c.Request.Context(), req.ObjectName, req.OwnerService)
	}
	if err != nil {
		s.respondError(c, err, "failed to delete file")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reference released"})
}

// DeleteBatch releases one reference on each named object
func (s *FileService) DeleteBatch(c *gin.Context) {
	var req deleteBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.ObjectNames) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object_names must not be empty"})
		return
	}

	if err := s.engine.DeleteFiles(c.Request.Context(), req.ObjectNames, req.OwnerService); err != nil {
		s.respondError(c, err, "failed to delete some files")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "references released"})
}

// respondError maps engine errors onto HTTP statuses: validation rejections
// are client errors, backend outages are 503, everything else is opaque
func (s *FileService) respondError(c *gin.Context, err error, msg string) {
	var tooLarge *types.FileTooLargeError
	switch {
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": tooLarge.Error()})
	case types.IsRejection(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, types.ErrStorageUnavailable):
		s.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage backend unavailable"})
	default:
		s.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
