package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"time"

	"github.com/marianozunino/ezyshare/internal/config"
)

var (
	ErrInvalidKey  = errors.New("invalid object key")
	ErrInvalidLink = errors.New("invalid or expired retrieval link")
)

// ObjectStore holds share payloads and hands out short-lived retrieval URLs.
type ObjectStore interface {
	// Put stores r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Delete removes the object at key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// SignedURL returns a URL that downloads key as downloadName until ttl elapses.
	SignedURL(ctx context.Context, key, downloadName string, ttl time.Duration) (string, error)
}

// New builds the object store selected by cfg.
func New(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		slog.Info("initializing local storage", "path", cfg.Storage.LocalPath)
		return NewLocalStore(cfg.Storage.LocalPath, cfg.BaseURL, []byte(cfg.Storage.SigningKey))
	case config.BackendS3:
		s3cfg := cfg.Storage.S3
		slog.Info("initializing S3 storage",
			"bucket", s3cfg.Bucket,
			"region", s3cfg.Region,
			"endpoint", s3cfg.Endpoint,
		)
		store, err := NewS3Store(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}

// attachmentDisposition forces a download under the original file name.
func attachmentDisposition(name string) string {
	if name == "" {
		return "attachment"
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
