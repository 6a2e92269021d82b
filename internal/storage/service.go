// Package storage provides object-store access for submission photos:
// fetching image bytes for verification and best-effort deletion of a
// rejected submission's files.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// maxPhotoBytes caps how much image data is read from either the object
// store or a remote URL. Photos beyond this are truncated-fail rather than
// buffered unbounded.
const maxPhotoBytes = 20 << 20

// fetchTimeout bounds remote photo downloads.
const fetchTimeout = 15 * time.Second

// Service errors.
var (
	ErrMissingBucket    = errors.New("bucket name is required")
	ErrMissingAccessKey = errors.New("access key ID is required")
	ErrMissingSecretKey = errors.New("secret access key is required")
	ErrMissingEndpoint  = errors.New("endpoint is required")
	ErrPhotoTooLarge    = errors.New("photo exceeds maximum size")
)

// Service wraps an S3-compatible object store (R2 in production) plus a
// plain HTTP client for photos hosted elsewhere.
type Service struct {
	s3Client      *s3.Client
	bucketName    string
	publicBaseURL string
	httpClient    *http.Client
	logger        *slog.Logger
}

// ServiceConfig holds configuration for the storage service.
type ServiceConfig struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string

	// PublicBaseURL is the prefix under which bucket objects are served
	// publicly, e.g. "https://media.example.com". Used to map a stored
	// public URL back to its object key for deletion.
	PublicBaseURL string

	Logger *slog.Logger
}

// NewService creates a storage service with R2-compatible S3 configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.BucketName == "" {
		return nil, ErrMissingBucket
	}
	if cfg.AccessKeyID == "" {
		return nil, ErrMissingAccessKey
	}
	if cfg.SecretAccessKey == "" {
		return nil, ErrMissingSecretKey
	}
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s3Client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &Service{
		s3Client:      s3Client,
		bucketName:    cfg.BucketName,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		httpClient:    &http.Client{Timeout: fetchTimeout},
		logger:        cfg.Logger,
	}, nil
}

// FetchPhoto retrieves image bytes for a photo reference. References under
// the bucket's public base URL are fetched directly from the object store;
// anything else is fetched over HTTP. The returned content type may be
// empty when the origin did not report one.
func (s *Service) FetchPhoto(ctx context.Context, ref string) ([]byte, string, error) {
	if key, ok := s.KeyFromPublicURL(ref); ok {
		return s.fetchObject(ctx, key)
	}
	return s.fetchHTTP(ctx, ref)
}

func (s *Service) fetchObject(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get object %q: %w", key, err)
	}
	defer out.Body.Close()

	data, err := readCapped(out.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := ""
	if out.ContentType != nil {
		contentType = *out.ContentType
	}
	return data, contentType, nil
}

func (s *Service) fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid photo URL %q: %w", rawURL, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("photo fetch returned status %d", resp.StatusCode)
	}

	data, err := readCapped(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read photo bytes: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return nil, ErrPhotoTooLarge
	}
	return data, nil
}

// KeyFromPublicURL parses the storage-relative object key out of a stored
// public URL. Returns false for URLs outside the public base, malformed
// URLs, or empty keys; callers skip those rather than failing a batch.
func (s *Service) KeyFromPublicURL(raw string) (string, bool) {
	if s.publicBaseURL == "" || raw == "" {
		return "", false
	}
	if !strings.HasPrefix(raw, s.publicBaseURL+"/") {
		return "", false
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	key := strings.TrimPrefix(parsed.Path, "/")
	// Public base may itself carry a path prefix; strip it too.
	if base, err := url.Parse(s.publicBaseURL); err == nil && base.Path != "" {
		key = strings.TrimPrefix(key, strings.TrimPrefix(base.Path, "/"))
		key = strings.TrimPrefix(key, "/")
	}
	if key == "" {
		return "", false
	}
	return key, true
}

// PutObject writes an object to the bucket and returns its public URL.
// Without a public base URL configured, the bare key is returned.
func (s *Service) PutObject(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.s3Client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to put object %q: %w", key, err)
	}

	if s.publicBaseURL == "" {
		return key, nil
	}
	return s.publicBaseURL + "/" + key, nil
}

// DeleteByPublicURLs removes the objects behind the given public URLs.
// Deletion is best-effort: malformed URLs are skipped and per-object
// failures are logged without aborting the rest of the batch. Returns the
// number of objects actually deleted.
func (s *Service) DeleteByPublicURLs(ctx context.Context, urls []string) int {
	deleted := 0
	for _, raw := range urls {
		key, ok := s.KeyFromPublicURL(raw)
		if !ok {
			s.logger.Warn("skipping unrecognized photo URL during purge", "url", raw)
			continue
		}

		_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucketName),
			Key:    aws.String(key),
		})
		if err != nil {
			s.logger.Error("failed to delete object", "key", key, "error", err)
			continue
		}
		deleted++
	}
	return deleted
}
