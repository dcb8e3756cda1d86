package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ifimgone/ifimgone/internal/database"
	"github.com/ifimgone/ifimgone/internal/model"
)

// ActivationRepository handles activation request persistence in PostgreSQL
type ActivationRepository struct {
	db *database.Postgres
}

var _ ActivationStore = (*ActivationRepository)(nil)

// NewActivationRepository creates a new ActivationRepository
func NewActivationRepository(db *database.Postgres) *ActivationRepository {
	return &ActivationRepository{db: db}
}

const activationColumns = `
	id, type, initiator_id, initiator_name, initiator_role, user_id, reason,
	urgency_level, activation_level, status, code_hash, created_at,
	activated_at, expires_at, cancelled_at, cancel_reason
`

// Create inserts a new activation request
func (r *ActivationRepository) Create(ctx context.Context, req *model.ActivationRequest) error {
	query := `
		INSERT INTO activation_requests (` + activationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.Type,
		req.Initiator.ID,
		req.Initiator.Name,
		req.Initiator.Role,
		req.UserID,
		req.Reason,
		req.UrgencyLevel,
		req.ActivationLevel,
		req.Status,
		req.CodeHash,
		req.CreatedAt,
		req.ActivatedAt,
		req.ExpiresAt,
		req.CancelledAt,
		req.CancelReason,
	)
	if err != nil {
		return fmt.Errorf("failed to create activation request: %w", err)
	}
	return nil
}

// Get retrieves an activation request by id
func (r *ActivationRepository) Get(ctx context.Context, id string) (*model.ActivationRequest, error) {
	query := `SELECT ` + activationColumns + ` FROM activation_requests WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// ListActive returns all non-terminal requests for a user
func (r *ActivationRepository) ListActive(ctx context.Context, userID string) ([]*model.ActivationRequest, error) {
	query := `
		SELECT ` + activationColumns + `
		FROM activation_requests
		WHERE user_id = $1 AND status NOT IN ('expired', 'rejected', 'cancelled')
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active requests: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// Activate moves a pending request to active. The WHERE clause on the
// current status makes the transition atomic: of N concurrent callers
// only the first finds the row pending, the rest get ErrConflict.
func (r *ActivationRepository) Activate(ctx context.Context, id string, activatedAt, expiresAt time.Time) (*model.ActivationRequest, error) {
	query := `
		UPDATE activation_requests
		SET status = 'active', activated_at = $2, expires_at = $3
		WHERE id = $1 AND status = 'pending_verification'
		RETURNING ` + activationColumns
	req, err := r.scanOne(r.db.QueryRowContext(ctx, query, id, activatedAt, expiresAt))
	if err == ErrNotFound {
		return nil, r.conflictOrNotFound(ctx, id)
	}
	return req, err
}

// Reject moves a pending request to rejected
func (r *ActivationRepository) Reject(ctx context.Context, id, reason string, at time.Time) (*model.ActivationRequest, error) {
	query := `
		UPDATE activation_requests
		SET status = 'rejected', cancelled_at = $2, cancel_reason = $3
		WHERE id = $1 AND status = 'pending_verification'
		RETURNING ` + activationColumns
	req, err := r.scanOne(r.db.QueryRowContext(ctx, query, id, at, reason))
	if err == ErrNotFound {
		return nil, r.conflictOrNotFound(ctx, id)
	}
	return req, err
}

// Cancel moves any non-terminal request to cancelled
func (r *ActivationRepository) Cancel(ctx context.Context, id, reason string, at time.Time) (*model.ActivationRequest, error) {
	query := `
		UPDATE activation_requests
		SET status = 'cancelled', cancelled_at = $2, cancel_reason = $3
		WHERE id = $1 AND status IN ('pending_verification', 'verified', 'active')
		RETURNING ` + activationColumns
	req, err := r.scanOne(r.db.QueryRowContext(ctx, query, id, at, reason))
	if err == ErrNotFound {
		return nil, r.conflictOrNotFound(ctx, id)
	}
	return req, err
}

// ExpireOverdue expires every active request whose grant has lapsed
func (r *ActivationRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]*model.ActivationRequest, error) {
	query := `
		UPDATE activation_requests
		SET status = 'expired'
		WHERE status = 'active' AND expires_at <= $1
		RETURNING ` + activationColumns
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire overdue requests: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// conflictOrNotFound distinguishes an unknown id from a row whose
// status rejected the conditional update.
func (r *ActivationRepository) conflictOrNotFound(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ActivationRepository) scanRow(s rowScanner) (*model.ActivationRequest, error) {
	var req model.ActivationRequest
	err := s.Scan(
		&req.ID,
		&req.Type,
		&req.Initiator.ID,
		&req.Initiator.Name,
		&req.Initiator.Role,
		&req.UserID,
		&req.Reason,
		&req.UrgencyLevel,
		&req.ActivationLevel,
		&req.Status,
		&req.CodeHash,
		&req.CreatedAt,
		&req.ActivatedAt,
		&req.ExpiresAt,
		&req.CancelledAt,
		&req.CancelReason,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *ActivationRepository) scanOne(row *sql.Row) (*model.ActivationRequest, error) {
	req, err := r.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan activation request: %w", err)
	}
	return req, nil
}

func (r *ActivationRepository) scanAll(rows *sql.Rows) ([]*model.ActivationRequest, error) {
	var out []*model.ActivationRequest
	for rows.Next() {
		req, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activation request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activation requests: %w", err)
	}
	return out, nil
}
