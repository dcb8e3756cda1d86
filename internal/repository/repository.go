package repository

import (
	"context"
	"time"

	"github.com/ifimgone/ifimgone/internal/model"
)

// ActivationStore is keyed storage of activation requests. The record
// per id is the unit of mutual exclusion: every transition method is an
// atomic compare-and-set on the current status, returning ErrConflict
// when the record is not in a state that admits the transition.
type ActivationStore interface {
	Create(ctx context.Context, req *model.ActivationRequest) error
	Get(ctx context.Context, id string) (*model.ActivationRequest, error)
	// ListActive returns all non-terminal requests for a user.
	ListActive(ctx context.Context, userID string) ([]*model.ActivationRequest, error)
	// Activate moves pending_verification -> active, setting activatedAt
	// and expiresAt in the same atomic step.
	Activate(ctx context.Context, id string, activatedAt, expiresAt time.Time) (*model.ActivationRequest, error)
	// Reject moves pending_verification -> rejected.
	Reject(ctx context.Context, id, reason string, at time.Time) (*model.ActivationRequest, error)
	// Cancel moves any non-terminal status -> cancelled.
	Cancel(ctx context.Context, id, reason string, at time.Time) (*model.ActivationRequest, error)
	// ExpireOverdue moves every active request with expiresAt <= now to
	// expired and returns the transitioned records. Safe to run
	// repeatedly and concurrently; a request is never expired twice.
	ExpireOverdue(ctx context.Context, now time.Time) ([]*model.ActivationRequest, error)
}

// AuditStore is the append-only audit log. Entries are never mutated
// or deleted.
type AuditStore interface {
	Append(ctx context.Context, entry *model.AuditEntry) error
	List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error)
}

// TokenStore holds emergency-sharing tokens keyed by id and token hash.
type TokenStore interface {
	Create(ctx context.Context, token *model.SharingToken) error
	GetByID(ctx context.Context, id string) (*model.SharingToken, error)
	GetByHash(ctx context.Context, tokenHash string) (*model.SharingToken, error)
	// Consume atomically increments the use count if the token is still
	// usable at now; returns ErrConflict when revoked, exhausted, or
	// expired.
	Consume(ctx context.Context, id string, now time.Time) (*model.SharingToken, error)
	// Revoke marks the token revoked; ErrConflict if already revoked.
	Revoke(ctx context.Context, id, reason string, at time.Time) (*model.SharingToken, error)
	// DeleteExpired removes tokens whose expiry has passed and returns
	// how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Stats(ctx context.Context) (*model.SharingStats, error)
}
