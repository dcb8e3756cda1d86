package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ifimgone/ifimgone/internal/model"
)

// In-memory implementations of the store interfaces. Used by tests and
// by single-node deployments that run without PostgreSQL. They mirror
// the SQL repositories' conditional-transition semantics: every
// transition is a read-modify-write under the store mutex, so the
// concurrency guarantees (at-most-one verification, idempotent expiry)
// hold here exactly as they do with conditional UPDATEs.

// MemoryActivationStore is a mutex-guarded ActivationStore
type MemoryActivationStore struct {
	mu       sync.RWMutex
	requests map[string]*model.ActivationRequest
}

var _ ActivationStore = (*MemoryActivationStore)(nil)

// NewMemoryActivationStore creates an empty in-memory store
func NewMemoryActivationStore() *MemoryActivationStore {
	return &MemoryActivationStore{requests: make(map[string]*model.ActivationRequest)}
}

// Create inserts a new activation request
func (s *MemoryActivationStore) Create(_ context.Context, req *model.ActivationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return ErrDuplicate
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

// Get retrieves an activation request by id
func (s *MemoryActivationStore) Get(_ context.Context, id string) (*model.ActivationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return req.Clone(), nil
}

// ListActive returns all non-terminal requests for a user, newest first
func (s *MemoryActivationStore) ListActive(_ context.Context, userID string) ([]*model.ActivationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.ActivationRequest
	for _, req := range s.requests {
		if req.UserID == userID && !req.Status.Terminal() {
			out = append(out, req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// transition applies mutate to the stored record if its status is one
// of from, all under the write lock.
func (s *MemoryActivationStore) transition(id string, from []model.ActivationStatus, mutate func(*model.ActivationRequest)) (*model.ActivationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	admitted := false
	for _, st := range from {
		if req.Status == st {
			admitted = true
			break
		}
	}
	if !admitted {
		return nil, ErrConflict
	}
	mutate(req)
	return req.Clone(), nil
}

// Activate moves pending_verification -> active
func (s *MemoryActivationStore) Activate(_ context.Context, id string, activatedAt, expiresAt time.Time) (*model.ActivationRequest, error) {
	return s.transition(id, []model.ActivationStatus{model.StatusPendingVerification}, func(req *model.ActivationRequest) {
		req.Status = model.StatusActive
		at := activatedAt
		exp := expiresAt
		req.ActivatedAt = &at
		req.ExpiresAt = &exp
	})
}

// Reject moves pending_verification -> rejected
func (s *MemoryActivationStore) Reject(_ context.Context, id, reason string, at time.Time) (*model.ActivationRequest, error) {
	return s.transition(id, []model.ActivationStatus{model.StatusPendingVerification}, func(req *model.ActivationRequest) {
		req.Status = model.StatusRejected
		t := at
		r := reason
		req.CancelledAt = &t
		req.CancelReason = &r
	})
}

// Cancel moves any non-terminal status -> cancelled
func (s *MemoryActivationStore) Cancel(_ context.Context, id, reason string, at time.Time) (*model.ActivationRequest, error) {
	from := []model.ActivationStatus{
		model.StatusPendingVerification,
		model.StatusVerified,
		model.StatusActive,
	}
	return s.transition(id, from, func(req *model.ActivationRequest) {
		req.Status = model.StatusCancelled
		t := at
		r := reason
		req.CancelledAt = &t
		req.CancelReason = &r
	})
}

// ExpireOverdue expires every active request whose grant has lapsed
func (s *MemoryActivationStore) ExpireOverdue(_ context.Context, now time.Time) ([]*model.ActivationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.ActivationRequest
	for _, req := range s.requests {
		if req.Status == model.StatusActive && req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
			req.Status = model.StatusExpired
			out = append(out, req.Clone())
		}
	}
	return out, nil
}

// MemoryAuditStore is a mutex-guarded append-only AuditStore
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []*model.AuditEntry
}

var _ AuditStore = (*MemoryAuditStore)(nil)

// NewMemoryAuditStore creates an empty in-memory audit log
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

// Append records a new audit entry
func (s *MemoryAuditStore) Append(_ context.Context, entry *model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *entry
	s.entries = append(s.entries, &copied)
	return nil
}

// List returns audit entries matching the filter, newest first
func (s *MemoryAuditStore) List(_ context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.AuditEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if filter.RequestID != "" && entry.RequestID != filter.RequestID {
			continue
		}
		if filter.TokenID != "" && (entry.TokenID == nil || *entry.TokenID != filter.TokenID) {
			continue
		}
		if filter.ActorID != "" && entry.PerformedBy.ID != filter.ActorID {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		copied := *entry
		out = append(out, &copied)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// MemoryTokenStore is a mutex-guarded TokenStore
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*model.SharingToken
	byHash map[string]string
}

var _ TokenStore = (*MemoryTokenStore)(nil)

// NewMemoryTokenStore creates an empty in-memory token store
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens: make(map[string]*model.SharingToken),
		byHash: make(map[string]string),
	}
}

// Create stores a new sharing token
func (s *MemoryTokenStore) Create(_ context.Context, token *model.SharingToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[token.ID]; ok {
		return ErrDuplicate
	}
	copied := *token
	s.tokens[token.ID] = &copied
	s.byHash[token.TokenHash] = token.ID
	return nil
}

// GetByID retrieves a sharing token by id
func (s *MemoryTokenStore) GetByID(_ context.Context, id string) (*model.SharingToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *token
	return &copied, nil
}

// GetByHash retrieves a sharing token by its hash
func (s *MemoryTokenStore) GetByHash(_ context.Context, tokenHash string) (*model.SharingToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHash[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s.tokens[id]
	return &copied, nil
}

// Consume atomically redeems one use of the token
func (s *MemoryTokenStore) Consume(_ context.Context, id string, now time.Time) (*model.SharingToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !token.Usable(now) {
		return nil, ErrConflict
	}
	token.UseCount++
	copied := *token
	return &copied, nil
}

// Revoke marks the token revoked
func (s *MemoryTokenStore) Revoke(_ context.Context, id, reason string, at time.Time) (*model.SharingToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	if token.RevokedAt != nil {
		return nil, ErrConflict
	}
	t := at
	r := reason
	token.RevokedAt = &t
	token.RevokeReason = &r
	copied := *token
	return &copied, nil
}

// DeleteExpired removes tokens whose expiry has passed
func (s *MemoryTokenStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, token := range s.tokens {
		if !token.ExpiresAt.After(now) {
			delete(s.byHash, token.TokenHash)
			delete(s.tokens, id)
			removed++
		}
	}
	return removed, nil
}

// Stats summarizes token usage
func (s *MemoryTokenStore) Stats(_ context.Context) (*model.SharingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	stats := &model.SharingStats{}
	for _, token := range s.tokens {
		stats.TotalTokens++
		stats.TotalUses += token.UseCount
		switch {
		case token.RevokedAt != nil:
			stats.RevokedTokens++
		case !token.ExpiresAt.After(now):
			stats.ExpiredTokens++
		case token.RemainingUses() > 0:
			stats.ActiveTokens++
		}
	}
	return stats, nil
}
