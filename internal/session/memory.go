package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/invoicevault/invoicevault/internal/entity"
)

// MemoryStore is an in-process concurrent session store with expiry
// sweeping. Suitable for tests and single-instance deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[uuid.UUID]*entity.UploadSession
	now    func() time.Time
	logger *slog.Logger
}

type MemoryOption func(*MemoryStore)

// WithClock substitutes the time source. Used by tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemoryStore(logger *slog.Logger, opts ...MemoryOption) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MemoryStore{
		items:  make(map[uuid.UUID]*entity.UploadSession),
		now:    time.Now,
		logger: logger,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *MemoryStore) Create(_ context.Context, s *entity.UploadSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.ID] = s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*entity.UploadSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.items[id]
	if !ok {
		return nil, errNotFound(id)
	}
	return s, nil
}

// Claim removes and returns the session under one lock, so concurrent
// claims for the same id resolve to exactly one winner.
func (m *MemoryStore) Claim(_ context.Context, id uuid.UUID) (*entity.UploadSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return nil, errNotFound(id)
	}
	delete(m.items, id)
	return s, nil
}

// Delete removes the session. Deleting an absent or already-deleted session
// is a safe no-op.
func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// Sweep removes every session past its expiry and returns how many were
// dropped.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.items {
		if s.Expired(now) {
			delete(m.items, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("session.sweep", "removed", removed, "remaining", len(m.items))
	}
	return removed
}

// StartSweeper sweeps expired sessions on the given interval until ctx is
// cancelled.
func (m *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()
}

// Len reports the number of live entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
