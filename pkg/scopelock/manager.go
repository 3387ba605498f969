package scopelock

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/thicket/internal/logging"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/aretw0/thicket/pkg/ports"
)

// DefaultTTL bounds how long a distributed lock outlives a crashed holder.
const DefaultTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.RWMutex
	refs int
}

// Manager hands out per-scope read/write locks.
type Manager struct {
	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker ports.DistributedLocker // Optional distributed locker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking for writers.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithTTL sets the distributed lock expiry.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a new scope lock Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:  make(map[string]*lockEntry),
		ttl:    DefaultTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST lock the entry, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Active returns the number of scopes currently holding a lock entry.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLock executes fn while holding the write lock of every scope.
// Scopes are locked in sorted order so overlapping batches cannot deadlock.
func (m *Manager) WithLock(ctx context.Context, scopes []domain.Scope, fn func(context.Context) error) error {
	keys := sortedKeys(scopes)
	for _, key := range keys {
		entry := m.acquire(key)
		entry.mu.Lock()
		defer func() {
			entry.mu.Unlock()
			m.release(key)
		}()
	}

	if m.locker != nil {
		for _, key := range keys {
			unlock, err := m.locker.Lock(ctx, key, m.ttl)
			if err != nil {
				return fmt.Errorf("failed to acquire distributed lock for scope %s: %w", key, err)
			}
			defer func() {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
						"scope", key,
						"err", err,
					)
				}
			}()
		}
	}

	return fn(ctx)
}

// WithRLock executes fn while holding the read lock of every scope.
// Readers only coordinate within the process.
func (m *Manager) WithRLock(ctx context.Context, scopes []domain.Scope, fn func(context.Context) error) error {
	for _, key := range sortedKeys(scopes) {
		entry := m.acquire(key)
		entry.mu.RLock()
		defer func() {
			entry.mu.RUnlock()
			m.release(key)
		}()
	}
	return fn(ctx)
}

func sortedKeys(scopes []domain.Scope) []string {
	keys := make([]string, 0, len(scopes))
	for _, s := range scopes {
		keys = append(keys, string(s))
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}
