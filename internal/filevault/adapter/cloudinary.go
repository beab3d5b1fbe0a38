package adapter

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/lk2023060901/filevault/internal/conf"
	"github.com/lk2023060901/filevault/internal/pkg/logger"
	"go.uber.org/zap"
)

const (
	cloudinaryAPIBase      = "https://api.cloudinary.com/v1_1"
	cloudinaryDeliveryBase = "https://res.cloudinary.com"
)

// CloudinaryAdapter stores blobs in Cloudinary. Object names map onto public
// IDs under a configured folder; the folder gives each deployment its own
// namespace within the cloud.
type CloudinaryAdapter struct {
	cloudName    string
	apiKey       string
	apiSecret    string
	folder       string
	uploadPreset string
	httpClient   *http.Client
	logger       *logger.Logger
	now          func() time.Time
}

// NewCloudinaryAdapter creates a Cloudinary-backed storage adapter
func NewCloudinaryAdapter(cfg *conf.CloudinaryConfig, log *logger.Logger) (*CloudinaryAdapter, error) {
	if cfg.CloudName == "" {
		return nil, errors.New("cloudinary: cloud_name is required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("cloudinary: api_key and api_secret are required")
	}

	return &CloudinaryAdapter{
		cloudName:    cfg.CloudName,
		apiKey:       cfg.APIKey,
		apiSecret:    cfg.APISecret,
		folder:       strings.Trim(cfg.Folder, "/"),
		uploadPreset: cfg.UploadPreset,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		logger:       log.Named("cloudinary"),
		now:          time.Now,
	}, nil
}

type cloudinaryUploadResponse struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

type cloudinaryDestroyResponse struct {
	Result string `json:"result"`
	Error  struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *CloudinaryAdapter) UploadFile(ctx context.Context, objectName string, buffer []byte, contentType string) error {
	resourceType := resourceTypeForContentType(contentType)
	publicID := a.publicID(objectName, resourceType)

	timestamp := fmt.Sprintf("%d", a.now().Unix())
	params := map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
		"overwrite": "true",
	}
	signature := signParams(params, a.apiSecret)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range params {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	if err := writer.WriteField("api_key", a.apiKey); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := writer.WriteField("signature", signature); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	part, err := writer.CreateFormFile("file", path.Base(objectName))
	if err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(buffer); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/upload", cloudinaryAPIBase, a.cloudName, resourceType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload to cloudinary: %w", err)
	}
	defer resp.Body.Close()

	var result cloudinaryUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode cloudinary response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cloudinary upload failed (%d): %s", resp.StatusCode, result.Error.Message)
	}

	a.logger.Debug("object uploaded",
		zap.String("object_name", objectName),
		zap.String("public_id", result.PublicID))
	return nil
}

// GetUploadURL returns the signed upload endpoint with the credential
// parameters encoded in the query. Cloudinary signatures carry their own
// timestamp validity window, so expires is not used. The resource type comes
// from the declared content type when given, binding the upload pipeline to
// it; the object-name segment is the fallback.
func (a *CloudinaryAdapter) GetUploadURL(ctx context.Context, objectName, contentType string, expires time.Duration) (string, error) {
	resourceType := resourceTypeForObjectName(objectName)
	if contentType != "" {
		resourceType = resourceTypeForContentType(contentType)
	}
	publicID := a.publicID(objectName, resourceType)

	timestamp := fmt.Sprintf("%d", a.now().Unix())
	params := map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
	}
	if a.uploadPreset != "" {
		params["upload_preset"] = a.uploadPreset
	}
	signature := signParams(params, a.apiSecret)

	query := url.Values{}
	for key, value := range params {
		query.Set(key, value)
	}
	query.Set("api_key", a.apiKey)
	query.Set("signature", signature)

	endpoint := fmt.Sprintf("%s/%s/%s/upload?%s",
		cloudinaryAPIBase, a.cloudName, resourceType, query.Encode())
	return endpoint, nil
}

// GetAccessURL returns the public delivery URL. Cloudinary delivery URLs do
// not expire, so expires is ignored.
func (a *CloudinaryAdapter) GetAccessURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	resourceType := resourceTypeForObjectName(objectName)
	publicID := a.publicID(objectName, resourceType)
	return fmt.Sprintf("%s/%s/%s/upload/%s",
		cloudinaryDeliveryBase, a.cloudName, resourceType, publicID), nil
}

func (a *CloudinaryAdapter) DeleteFile(ctx context.Context, objectName string) error {
	resourceType := resourceTypeForObjectName(objectName)
	publicID := a.publicID(objectName, resourceType)

	timestamp := fmt.Sprintf("%d", a.now().Unix())
	params := map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
	}
	signature := signParams(params, a.apiSecret)

	form := url.Values{}
	for key, value := range params {
		form.Set(key, value)
	}
	form.Set("api_key", a.apiKey)
	form.Set("signature", signature)

	endpoint := fmt.Sprintf("%s/%s/%s/destroy", cloudinaryAPIBase, a.cloudName, resourceType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete from cloudinary: %w", err)
	}
	defer resp.Body.Close()

	var result cloudinaryDestroyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode cloudinary response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cloudinary destroy failed (%d): %s", resp.StatusCode, result.Error.Message)
	}
	// "not found" means the blob is already gone, which is the desired state
	if result.Result != "ok" && result.Result != "not found" {
		return fmt.Errorf("cloudinary destroy returned %q for %s", result.Result, objectName)
	}

	a.logger.Debug("object deleted", zap.String("object_name", objectName))
	return nil
}

func (a *CloudinaryAdapter) DeleteFiles(ctx context.Context, objectNames []string) error {
	var failed []string
	for _, name := range objectNames {
		if err := a.DeleteFile(ctx, name); err != nil {
			a.logger.Warn("failed to delete object in batch",
				zap.String("object_name", name),
				zap.Error(err))
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to delete %d of %d objects: %v", len(failed), len(objectNames), failed)
	}
	return nil
}

func (a *CloudinaryAdapter) FileExists(ctx context.Context, objectName string) (bool, error) {
	accessURL, err := a.GetAccessURL(ctx, objectName, 0)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, accessURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create head request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to check cloudinary object: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected status %d checking object %s", resp.StatusCode, objectName)
	}
}

// EnsureBucketExists is a no-op: Cloudinary folders come into existence with
// the first upload
func (a *CloudinaryAdapter) EnsureBucketExists(ctx context.Context) error {
	return nil
}

// publicID maps an object name onto the Cloudinary namespace. Image and video
// public IDs drop the extension (Cloudinary derives the delivery format); raw
// resources keep it, since for them the extension is part of the identity.
func (a *CloudinaryAdapter) publicID(objectName, resourceType string) string {
	name := strings.Trim(objectName, "/")
	if resourceType != "raw" {
		if ext := path.Ext(name); ext != "" {
			name = strings.TrimSuffix(name, ext)
		}
	}
	if a.folder != "" {
		return a.folder + "/" + name
	}
	return name
}

// signParams computes the Cloudinary request signature: SHA-1 over the
// sorted key=value pairs joined with & and suffixed with the API secret
func signParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

// resourceTypeForContentType maps a MIME type onto Cloudinary's resource
// types. Audio is served through the video pipeline per the Cloudinary API.
func resourceTypeForContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"), strings.HasPrefix(contentType, "audio/"):
		return "video"
	default:
		return "raw"
	}
}

// resourceTypeForObjectName derives the resource type from the file type
// segment of the object name ({service}/{type}/...). Used on paths where no
// content type travels with the request.
func resourceTypeForObjectName(objectName string) string {
	segments := strings.Split(strings.Trim(objectName, "/"), "/")
	if len(segments) < 2 {
		return "raw"
	}
	switch segments[1] {
	case "image":
		return "image"
	case "video", "audio":
		return "video"
	default:
		return "raw"
	}
}
