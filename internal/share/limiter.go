package share

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/marianozunino/ezyshare/internal/config"
)

const maxTrackedClients = 10000

// attemptLimiter counts wrong PINs per key. After maxFailures inside window
// the key is blocked for blockFor. A nil limiter allows everything.
type attemptLimiter struct {
	mu          sync.Mutex
	entries     *expirable.LRU[string, attemptEntry]
	maxFailures int
	window      time.Duration
	blockFor    time.Duration
}

type attemptEntry struct {
	failures       int
	firstFailureAt time.Time
	blockedUntil   time.Time
}

func newAttemptLimiter(cfg config.PinAttemptConfig) *attemptLimiter {
	window, blockFor := cfg.Window(), cfg.Block()
	if cfg.MaxFailures <= 0 || window <= 0 || blockFor <= 0 {
		return nil
	}

	staleAfter := max(window, blockFor) * 2
	if staleAfter < 10*time.Minute {
		staleAfter = 10 * time.Minute
	}

	return &attemptLimiter{
		entries:     expirable.NewLRU[string, attemptEntry](maxTrackedClients, nil, staleAfter),
		maxFailures: cfg.MaxFailures,
		window:      window,
		blockFor:    blockFor,
	}
}

func (l *attemptLimiter) Allow(key string, now time.Time) bool {
	if l == nil || key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries.Get(key)
	if !ok {
		return true
	}
	if !entry.blockedUntil.IsZero() && now.Before(entry.blockedUntil) {
		return false
	}
	if !entry.blockedUntil.IsZero() {
		entry.blockedUntil = time.Time{}
		l.entries.Add(key, entry)
	}
	return true
}

func (l *attemptLimiter) RegisterFailure(key string, now time.Time) {
	if l == nil || key == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, _ := l.entries.Get(key)
	if entry.firstFailureAt.IsZero() || now.Sub(entry.firstFailureAt) > l.window {
		entry.failures = 0
		entry.firstFailureAt = now
	}
	entry.failures++
	if entry.failures >= l.maxFailures {
		entry.blockedUntil = now.Add(l.blockFor)
		entry.failures = 0
		entry.firstFailureAt = time.Time{}
	}
	l.entries.Add(key, entry)
}

func (l *attemptLimiter) Reset(key string) {
	if l == nil || key == "" {
		return
	}
	l.entries.Remove(key)
}
