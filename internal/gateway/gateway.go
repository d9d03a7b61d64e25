package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/marianozunino/ezyshare/internal/db"
	"github.com/marianozunino/ezyshare/internal/model"
	"github.com/marianozunino/ezyshare/internal/storage"
)

var (
	ErrStorageFailure  = errors.New("failed to store payload")
	ErrMetadataFailure = errors.New("failed to store share metadata")
	ErrNotFound        = errors.New("share not found or expired")
)

// Repository is the metadata side of the gateway. *db.DB implements it.
type Repository interface {
	InsertShare(ctx context.Context, s *model.Share) error
	ShareByID(ctx context.Context, id string, now time.Time) (*model.Share, error)
	ShareByPin(ctx context.Context, pin string, now time.Time) (*model.Share, error)
	IncrementDownloadCount(ctx context.Context, id string) error
}

// Gateway wraps the object store and the share table. Each method maps to
// one external call, except Store which compensates a failed insert.
type Gateway struct {
	repo   Repository
	store  storage.ObjectStore
	urlTTL time.Duration
	now    func() time.Time
}

func New(repo Repository, store storage.ObjectStore, urlTTL time.Duration) *Gateway {
	return &Gateway{
		repo:   repo,
		store:  store,
		urlTTL: urlTTL,
		now:    time.Now,
	}
}

// SetClock replaces the time source used for liveness checks.
func (g *Gateway) SetClock(now func() time.Time) {
	g.now = now
}

// Now returns the gateway's notion of the current time.
func (g *Gateway) Now() time.Time {
	return g.now()
}

// Store persists payload (file shares only) and then the metadata row. When
// the row cannot be written the uploaded object is removed again.
func (g *Gateway) Store(ctx context.Context, share *model.Share, payload io.Reader) error {
	uploaded := false
	if share.Kind == model.KindFile {
		if payload == nil {
			return fmt.Errorf("%w: missing payload for %s", ErrStorageFailure, share.ID)
		}
		if err := g.store.Put(ctx, share.StorageLocator, payload, share.SizeBytes, share.ContentType); err != nil {
			slog.Error("object upload failed", "id", share.ID, "key", share.StorageLocator, "error", err)
			return fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		uploaded = true
	}

	if err := g.repo.InsertShare(ctx, share); err != nil {
		slog.Error("metadata insert failed", "id", share.ID, "error", err)
		if uploaded {
			// The request context may already be cancelled at this point.
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if delErr := g.store.Delete(cleanupCtx, share.StorageLocator); delErr != nil {
				slog.Error("failed to remove orphaned object", "id", share.ID, "key", share.StorageLocator, "error", delErr)
			}
		}
		return fmt.Errorf("%w: %v", ErrMetadataFailure, err)
	}

	slog.Info("share stored", "id", share.ID, "kind", share.Kind, "size", share.SizeBytes)
	return nil
}

// FetchByID returns the live share with id.
func (g *Gateway) FetchByID(ctx context.Context, id string) (*model.Share, error) {
	s, err := g.repo.ShareByID(ctx, id, g.now())
	return g.live(s, err)
}

// FetchByPin returns the most recently created live share carrying pin.
func (g *Gateway) FetchByPin(ctx context.Context, pin string) (*model.Share, error) {
	s, err := g.repo.ShareByPin(ctx, pin, g.now())
	return g.live(s, err)
}

func (g *Gateway) live(s *model.Share, err error) (*model.Share, error) {
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !s.Live(g.now()) {
		return nil, ErrNotFound
	}
	return s, nil
}

// CreateRetrievalURL signs a short-lived link that downloads locator as downloadName.
func (g *Gateway) CreateRetrievalURL(ctx context.Context, locator, downloadName string) (string, error) {
	u, err := g.store.SignedURL(ctx, locator, downloadName, g.urlTTL)
	if err != nil {
		return "", fmt.Errorf("failed to create retrieval url: %w", err)
	}
	return u, nil
}

// IncrementDownloadCount bumps the counter. Failures are logged and dropped.
func (g *Gateway) IncrementDownloadCount(ctx context.Context, id string) {
	if err := g.repo.IncrementDownloadCount(ctx, id); err != nil {
		slog.Warn("failed to increment download count", "id", id, "error", err)
	}
}
