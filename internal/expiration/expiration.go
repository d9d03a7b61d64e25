package expiration

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marianozunino/ezyshare/internal/config"
	"github.com/marianozunino/ezyshare/internal/model"
	"github.com/marianozunino/ezyshare/internal/storage"
)

// batchSize bounds how many rows one sweep step loads.
const batchSize = 100

var sharesRemoved = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ezyshare_expired_shares_removed_total",
	Help: "Expired shares deleted by the sweeper",
})

// Repository is the part of the share table the sweeper needs.
type Repository interface {
	ExpiredShares(ctx context.Context, now time.Time, limit, offset int) ([]model.Share, error)
	DeleteShare(ctx context.Context, id string) error
}

// ExpirationManager periodically removes expired shares and their stored
// objects. Reads already treat expired rows as absent, so this only
// reclaims space.
type ExpirationManager struct {
	Config   config.ExpirationConfig
	repo     Repository
	store    storage.ObjectStore
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewExpirationManager creates a new expiration manager
func NewExpirationManager(cfg config.ExpirationConfig, repo Repository, store storage.ObjectStore) *ExpirationManager {
	return &ExpirationManager{
		Config:   cfg,
		repo:     repo,
		store:    store,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start begins the expiration checking process
func (m *ExpirationManager) Start() {
	if !m.Config.Enabled {
		slog.Info("expiration manager disabled")
		return
	}

	interval := m.Config.CheckIntervalDuration()
	go func() {
		m.CleanupExpired(context.Background())

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.CleanupExpired(context.Background())
			case <-m.stopChan:
				slog.Info("expiration manager stopped")
				return
			}
		}
	}()
	slog.Info("expiration manager started", "interval", interval)
}

// Stop halts the expiration checking process. It is safe to call more than once.
func (m *ExpirationManager) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// CleanupExpired deletes every share that expired before now and returns how
// many were removed. A share whose object cannot be deleted is kept so the
// next run retries it; later rows are still visited.
func (m *ExpirationManager) CleanupExpired(ctx context.Context) int {
	now := m.now()
	removed, failed := 0, 0

	slog.Debug("checking for expired shares")

	// failed rows stay in the table ahead of the rest, so they are skipped
	for {
		shares, err := m.repo.ExpiredShares(ctx, now, batchSize, failed)
		if err != nil {
			slog.Error("failed to list expired shares", "error", err)
			break
		}

		for _, s := range shares {
			if s.Kind == model.KindFile {
				if err := m.store.Delete(ctx, s.StorageLocator); err != nil {
					slog.Error("failed to delete expired object", "id", s.ID, "key", s.StorageLocator, "error", err)
					failed++
					continue
				}
			}
			if err := m.repo.DeleteShare(ctx, s.ID); err != nil {
				slog.Error("failed to delete expired share", "id", s.ID, "error", err)
				failed++
				continue
			}
			removed++
		}

		if len(shares) < batchSize {
			break
		}
	}

	sharesRemoved.Add(float64(removed))
	if removed > 0 || failed > 0 {
		slog.Info("expiration check complete", "removed", removed, "failed", failed)
	}
	return removed
}
