package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifimgone/ifimgone/internal/model"
)

func newPending(id string, createdAt time.Time) *model.ActivationRequest {
	return &model.ActivationRequest{
		ID:        id,
		Type:      model.TypeTrustedContact,
		Initiator: model.Initiator{ID: "contact-1", Name: "Jordan Reyes"},
		UserID:    "user-1",
		Reason:    "emergency",
		Status:    model.StatusPendingVerification,
		CodeHash:  "hash",
		CreatedAt: createdAt,
	}
}

func TestMemoryActivationCreateAndGet(t *testing.T) {
	store := NewMemoryActivationStore()
	ctx := context.Background()
	now := time.Now()

	req := newPending("req-1", now)
	require.NoError(t, store.Create(ctx, req))

	assert.ErrorIs(t, store.Create(ctx, newPending("req-1", now)), ErrDuplicate)

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingVerification, got.Status)

	// The store hands out copies; callers cannot mutate stored state.
	got.Status = model.StatusActive
	again, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingVerification, again.Status)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryActivationTransitionGuards(t *testing.T) {
	store := NewMemoryActivationStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, newPending("req-1", now)))

	activated, err := store.Activate(ctx, "req-1", now, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, activated.Status)
	require.NotNil(t, activated.ActivatedAt)
	require.NotNil(t, activated.ExpiresAt)

	// Active is not pending: a second activation loses.
	_, err = store.Activate(ctx, "req-1", now, now.Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrConflict)

	// Rejection only applies to pending requests.
	_, err = store.Reject(ctx, "req-1", "too late", now)
	assert.ErrorIs(t, err, ErrConflict)

	// Cancel covers any non-terminal status, including active.
	cancelled, err := store.Cancel(ctx, "req-1", "user request", now)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	_, err = store.Cancel(ctx, "req-1", "again", now)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = store.Activate(ctx, "missing", now, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryActivationConcurrentActivate(t *testing.T) {
	store := NewMemoryActivationStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, newPending("req-1", now)))

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Activate(ctx, "req-1", now, now.Add(time.Hour))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestMemoryActivationListActive(t *testing.T) {
	store := NewMemoryActivationStore()
	ctx := context.Background()
	now := time.Now()

	older := newPending("req-old", now.Add(-time.Hour))
	newer := newPending("req-new", now)
	other := newPending("req-other", now)
	other.UserID = "user-2"
	done := newPending("req-done", now)

	for _, req := range []*model.ActivationRequest{older, newer, other, done} {
		require.NoError(t, store.Create(ctx, req))
	}
	_, err := store.Reject(ctx, "req-done", "denied", now)
	require.NoError(t, err)

	active, err := store.ListActive(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "req-new", active[0].ID)
	assert.Equal(t, "req-old", active[1].ID)
}

func TestMemoryActivationExpireOverdue(t *testing.T) {
	store := NewMemoryActivationStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, newPending("req-1", now)))
	require.NoError(t, store.Create(ctx, newPending("req-2", now)))
	_, err := store.Activate(ctx, "req-1", now, now.Add(time.Hour))
	require.NoError(t, err)
	_, err = store.Activate(ctx, "req-2", now, now.Add(48*time.Hour))
	require.NoError(t, err)

	expired, err := store.ExpireOverdue(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "req-1", expired[0].ID)
	assert.Equal(t, model.StatusExpired, expired[0].Status)

	// Sweeping again finds nothing new.
	expired, err = store.ExpireOverdue(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, expired)

	still, err := store.Get(ctx, "req-2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, still.Status)
}

func TestMemoryAuditFilters(t *testing.T) {
	store := NewMemoryAuditStore()
	ctx := context.Background()
	tokenID := "token-1"

	entries := []*model.AuditEntry{
		{ID: "a", RequestID: "req-1", Action: model.AuditActionRequestCreated, PerformedBy: model.Actor{ID: "contact-1"}},
		{ID: "b", RequestID: "req-1", TokenID: &tokenID, Action: model.AuditActionTokenValidated, PerformedBy: model.Actor{ID: "contact-2"}},
		{ID: "c", RequestID: "req-2", Action: model.AuditActionRequestCreated, PerformedBy: model.Actor{ID: "contact-1"}},
	}
	for _, entry := range entries {
		require.NoError(t, store.Append(ctx, entry))
	}

	byRequest, err := store.List(ctx, model.AuditFilter{RequestID: "req-1"})
	require.NoError(t, err)
	require.Len(t, byRequest, 2)
	// Newest first.
	assert.Equal(t, "b", byRequest[0].ID)

	byToken, err := store.List(ctx, model.AuditFilter{TokenID: tokenID})
	require.NoError(t, err)
	require.Len(t, byToken, 1)
	assert.Equal(t, "b", byToken[0].ID)

	byActor, err := store.List(ctx, model.AuditFilter{ActorID: "contact-1"})
	require.NoError(t, err)
	assert.Len(t, byActor, 2)

	byAction, err := store.List(ctx, model.AuditFilter{Action: model.AuditActionRequestCreated, Limit: 1})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, "c", byAction[0].ID)
}

func newToken(id string, expiresAt time.Time) *model.SharingToken {
	return &model.SharingToken{
		ID:        id,
		RequestID: "req-1",
		ContactID: "contact-1",
		TokenHash: "hash-" + id,
		MaxUses:   2,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
}

func TestMemoryTokenConsumeBounds(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, newToken("token-1", now.Add(time.Hour))))

	first, err := store.Consume(ctx, "token-1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.UseCount)

	second, err := store.Consume(ctx, "token-1", now)
	require.NoError(t, err)
	assert.Equal(t, 2, second.UseCount)
	assert.Zero(t, second.RemainingUses())

	_, err = store.Consume(ctx, "token-1", now)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = store.Consume(ctx, "missing", now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTokenConsumeRespectsExpiryAndRevocation(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, newToken("expired", now.Add(-time.Minute))))
	_, err := store.Consume(ctx, "expired", now)
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, store.Create(ctx, newToken("revoked", now.Add(time.Hour))))
	_, err = store.Revoke(ctx, "revoked", "cleanup", now)
	require.NoError(t, err)
	_, err = store.Consume(ctx, "revoked", now)
	assert.ErrorIs(t, err, ErrConflict)

	// Double revoke conflicts so callers can distinguish the no-op.
	_, err = store.Revoke(ctx, "revoked", "again", now)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemoryTokenGetByHash(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, newToken("token-1", now.Add(time.Hour))))

	token, err := store.GetByHash(ctx, "hash-token-1")
	require.NoError(t, err)
	assert.Equal(t, "token-1", token.ID)

	_, err = store.GetByHash(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTokenDeleteExpired(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Create(ctx, newToken("stale", now.Add(-time.Minute))))
	require.NoError(t, store.Create(ctx, newToken("fresh", now.Add(time.Hour))))

	removed, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = store.GetByID(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetByHash(ctx, "hash-stale")
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err = store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
