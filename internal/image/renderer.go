package image

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
)

// Renderer errors.
var (
	ErrMissingStore   = errors.New("object store is required")
	ErrNotBucketPhoto = errors.New("photo is not stored in the bucket")
)

// ObjectStore is the storage surface the renderer needs: reading the
// original photo, resolving its object key, and writing the display copy.
type ObjectStore interface {
	FetchPhoto(ctx context.Context, ref string) ([]byte, string, error)
	KeyFromPublicURL(raw string) (string, bool)
	PutObject(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Renderer produces display copies of approved submission photos and
// stores them next to the originals under a display/ prefix.
type Renderer struct {
	store  ObjectStore
	config DisplayConfig
	logger *slog.Logger
}

// NewRenderer creates a display copy renderer.
func NewRenderer(store ObjectStore, config DisplayConfig, logger *slog.Logger) (*Renderer, error) {
	if store == nil {
		return nil, ErrMissingStore
	}
	if config.Quality <= 0 {
		config = DefaultDisplayConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{store: store, config: config, logger: logger}, nil
}

// DisplayKey maps an original object key to its display copy key. The
// copy is always JPEG, so the extension changes with it.
func DisplayKey(originalKey string) string {
	ext := path.Ext(originalKey)
	base := strings.TrimSuffix(originalKey, ext)
	return "display/" + base + ".jpg"
}

// Render fetches the original photo, strips its metadata, downscales it,
// and stores the result under the display key. Returns the display copy's
// public URL. Photos hosted outside the bucket are not rendered.
func (r *Renderer) Render(ctx context.Context, photoURL string) (string, error) {
	key, ok := r.store.KeyFromPublicURL(photoURL)
	if !ok {
		return "", ErrNotBucketPhoto
	}

	original, _, err := r.store.FetchPhoto(ctx, photoURL)
	if err != nil {
		return "", err
	}

	display, err := RenderDisplayWithConfig(original, r.config)
	if err != nil {
		return "", err
	}

	displayURL, err := r.store.PutObject(ctx, DisplayKey(key), display, "image/jpeg")
	if err != nil {
		return "", err
	}

	r.logger.Info("rendered display copy",
		"key", key,
		"display_key", DisplayKey(key),
		"original_bytes", len(original),
		"display_bytes", len(display))

	return displayURL, nil
}
