package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicevault/invoicevault/internal/common"
	"github.com/invoicevault/invoicevault/internal/entity"
)

func newSession(ttl time.Duration) *entity.UploadSession {
	now := time.Now()
	return &entity.UploadSession{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		ObjectKey:   "invoices/user-1/abc.pdf",
		Filename:    "invoice.pdf",
		FileSize:    1024,
		ContentType: "application/pdf",
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func TestMemoryStoreCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	s := newSession(30 * time.Minute)

	require.NoError(t, store.Create(ctx, s))
	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ObjectKey, got.ObjectKey)

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	require.Error(t, err)
	assert.Equal(t, common.CodeSessionNotFound, common.CodeOf(err))
}

func TestMemoryStoreGetUnknownID(t *testing.T) {
	store := NewMemoryStore(nil)
	_, err := store.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, common.CodeSessionNotFound, common.CodeOf(err))
}

func TestMemoryStoreDoubleDeleteIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	s := newSession(30 * time.Minute)

	require.NoError(t, store.Create(ctx, s))
	require.NoError(t, store.Delete(ctx, s.ID))
	require.NoError(t, store.Delete(ctx, s.ID))
	require.NoError(t, store.Delete(ctx, uuid.New()))
}

func TestMemoryStoreClaimConsumesSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	s := newSession(30 * time.Minute)
	require.NoError(t, store.Create(ctx, s))

	got, err := store.Claim(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ObjectKey, got.ObjectKey)

	_, err = store.Claim(ctx, s.ID)
	assert.Equal(t, common.CodeSessionNotFound, common.CodeOf(err))
	_, err = store.Get(ctx, s.ID)
	assert.Equal(t, common.CodeSessionNotFound, common.CodeOf(err))
}

func TestMemoryStoreConcurrentClaimsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	s := newSession(30 * time.Minute)
	require.NoError(t, store.Create(ctx, s))

	const claimants = 16
	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Claim(ctx, s.ID); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreSweepRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	clock := time.Now()
	store := NewMemoryStore(nil, WithClock(func() time.Time { return clock }))

	fresh := newSession(30 * time.Minute)
	stale := newSession(30 * time.Minute)
	stale.ExpiresAt = clock.Add(-time.Minute)
	require.NoError(t, store.Create(ctx, fresh))
	require.NoError(t, store.Create(ctx, stale))

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	_, err := store.Get(ctx, stale.ID)
	assert.Equal(t, common.CodeSessionNotFound, common.CodeOf(err))
	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)

	// advance the clock past the remaining session's expiry
	clock = clock.Add(time.Hour)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())
}

func TestSessionExpiredBoundary(t *testing.T) {
	s := newSession(0)
	at := s.ExpiresAt
	assert.False(t, s.Expired(at.Add(-time.Second)))
	assert.True(t, s.Expired(at.Add(time.Second)))
}
