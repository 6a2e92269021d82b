// Package upload provides services for generating signed URLs for direct R2 uploads.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/snapquest/api/internal/validate"
)

// Allowed MIME types for proof photo uploads.
const (
	MIMEImageJPEG = validate.MIMEImageJPEG
	MIMEImagePNG  = validate.MIMEImagePNG
	MIMEImageHEIC = validate.MIMEImageHEIC
	MIMEImageWebP = validate.MIMEImageWebP
)

// Validation errors
var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrFileTooLarge    = errors.New("file size exceeds maximum allowed")
	ErrInvalidUserID   = errors.New("invalid user ID")
)

// AllowedMIMETypes maps allowed photo MIME types to their file extensions.
// Only still images are accepted; proof evidence is always a photo.
var AllowedMIMETypes = map[string]string{
	MIMEImageJPEG: ".jpg",
	MIMEImagePNG:  ".png",
	MIMEImageHEIC: ".heic",
	MIMEImageWebP: ".webp",
}

// SignedURLRequest represents a request for a signed upload URL.
type SignedURLRequest struct {
	ContentType string // MIME type of the photo
	SizeBytes   int64  // Size of the photo in bytes
	UserID      string // Uploading user; scopes the object key
}

// SignedURLResponse represents the response containing the signed URL and metadata.
type SignedURLResponse struct {
	URL       string    `json:"url"`        // Pre-signed PUT URL
	Key       string    `json:"key"`        // Object key in R2
	PhotoURL  string    `json:"photo_url"`  // Public URL to reference in the submission
	ExpiresAt time.Time `json:"expires_at"` // URL expiration time
}

// Service handles generating signed URLs for R2 uploads.
type Service struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	publicBaseURL string
	maxSizeBytes  int64
	urlExpiry     time.Duration
	timeNow       func() time.Time // For testability
}

// ServiceConfig holds configuration for the upload service.
type ServiceConfig struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	PublicBaseURL   string
	MaxSizeMB       int
	URLExpiryMinutes int // Default: 5 minutes
}

// NewService creates a new upload service with the given configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	// Default values
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 15
	}
	if cfg.URLExpiryMinutes <= 0 {
		cfg.URLExpiryMinutes = 5
	}

	// Create S3 client with R2-compatible configuration
	s3Client := s3.New(s3.Options{
		Region: "auto", // R2 uses auto region
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // No session token for R2
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true, // R2 requires path-style addressing
	})

	presignClient := s3.NewPresignClient(s3Client)

	return &Service{
		s3Client:      s3Client,
		presignClient: presignClient,
		bucketName:    cfg.BucketName,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		maxSizeBytes:  int64(cfg.MaxSizeMB) * 1024 * 1024,
		urlExpiry:     time.Duration(cfg.URLExpiryMinutes) * time.Minute,
		timeNow:       time.Now,
	}, nil
}

// ValidateContentType checks if the content type is an accepted photo type.
func ValidateContentType(contentType string) error {
	if _, err := validate.MIMEType(contentType, validate.AllowedImageTypes); err != nil {
		return ErrUnsupportedType
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits.
func (s *Service) ValidateFileSize(sizeBytes int64) error {
	err := validate.FileSize(sizeBytes, validate.FileConstraints{
		MaxSizeBytes: s.maxSizeBytes,
		MinSizeBytes: 1,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, validate.ErrFileTooLarge):
		return ErrFileTooLarge
	default:
		return err
	}
}

// GenerateObjectKey creates a unique object key for the upload.
// Pattern: submissions/{userId}/uuid.ext
func GenerateObjectKey(contentType, userID string) (string, error) {
	ext, ok := AllowedMIMETypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", ErrUnsupportedType
	}

	// Sanitize userID: only alphanumeric, hyphens, underscores
	sanitized := sanitizePathComponent(userID)
	if sanitized == "" {
		return "", ErrInvalidUserID
	}

	objectUUID := uuid.New().String()

	key := fmt.Sprintf("submissions/%s/%s%s", sanitized, objectUUID, ext)
	return key, nil
}

// sanitizePathComponent removes potentially dangerous characters from path components.
func sanitizePathComponent(s string) string {
	// Only allow alphanumeric, hyphens, and underscores
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// GenerateSignedURL generates a pre-signed PUT URL for direct upload to R2.
// The returned PhotoURL is what the client should reference when creating
// the submission, so the verification pipeline can fetch the object back.
func (s *Service) GenerateSignedURL(ctx context.Context, req SignedURLRequest) (*SignedURLResponse, error) {
	// Validate content type
	if err := ValidateContentType(req.ContentType); err != nil {
		return nil, err
	}

	// Validate file size
	if err := s.ValidateFileSize(req.SizeBytes); err != nil {
		return nil, err
	}

	// Generate object key
	key, err := GenerateObjectKey(req.ContentType, req.UserID)
	if err != nil {
		return nil, err
	}

	// Create presigned PUT request
	putObjectInput := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		ContentType:   aws.String(req.ContentType),
		ContentLength: aws.Int64(req.SizeBytes),
	}

	presignedReq, err := s.presignClient.PresignPutObject(ctx, putObjectInput, func(opts *s3.PresignOptions) {
		opts.Expires = s.urlExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign request: %w", err)
	}

	expiresAt := s.timeNow().Add(s.urlExpiry)

	photoURL := key
	if s.publicBaseURL != "" {
		photoURL = s.publicBaseURL + "/" + key
	}

	return &SignedURLResponse{
		URL:       presignedReq.URL,
		Key:       key,
		PhotoURL:  photoURL,
		ExpiresAt: expiresAt,
	}, nil
}
