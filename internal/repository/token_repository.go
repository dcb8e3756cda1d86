package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ifimgone/ifimgone/internal/database"
	"github.com/ifimgone/ifimgone/internal/model"
)

// TokenRepository handles sharing token persistence in PostgreSQL
type TokenRepository struct {
	db *database.Postgres
}

var _ TokenStore = (*TokenRepository)(nil)

// NewTokenRepository creates a new TokenRepository
func NewTokenRepository(db *database.Postgres) *TokenRepository {
	return &TokenRepository{db: db}
}

const tokenColumns = `
	id, request_id, contact_id, contact_name, token_hash, max_uses, use_count,
	expires_at, revoked_at, revoke_reason, created_at
`

// Create stores a new sharing token
func (r *TokenRepository) Create(ctx context.Context, token *model.SharingToken) error {
	query := `
		INSERT INTO sharing_tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.RequestID,
		token.ContactID,
		token.ContactName,
		token.TokenHash,
		token.MaxUses,
		token.UseCount,
		token.ExpiresAt,
		token.RevokedAt,
		token.RevokeReason,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sharing token: %w", err)
	}
	return nil
}

// GetByID retrieves a sharing token by id
func (r *TokenRepository) GetByID(ctx context.Context, id string) (*model.SharingToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM sharing_tokens WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByHash retrieves a sharing token by its hash
func (r *TokenRepository) GetByHash(ctx context.Context, tokenHash string) (*model.SharingToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM sharing_tokens WHERE token_hash = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, tokenHash))
}

// Consume atomically redeems one use of the token
func (r *TokenRepository) Consume(ctx context.Context, id string, now time.Time) (*model.SharingToken, error) {
	query := `
		UPDATE sharing_tokens
		SET use_count = use_count + 1
		WHERE id = $1 AND revoked_at IS NULL AND use_count < max_uses AND expires_at > $2
		RETURNING ` + tokenColumns
	token, err := r.scanOne(r.db.QueryRowContext(ctx, query, id, now))
	if err == ErrNotFound {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	}
	return token, err
}

// Revoke marks the token revoked
func (r *TokenRepository) Revoke(ctx context.Context, id, reason string, at time.Time) (*model.SharingToken, error) {
	query := `
		UPDATE sharing_tokens
		SET revoked_at = $2, revoke_reason = $3
		WHERE id = $1 AND revoked_at IS NULL
		RETURNING ` + tokenColumns
	token, err := r.scanOne(r.db.QueryRowContext(ctx, query, id, at, reason))
	if err == ErrNotFound {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	}
	return token, err
}

// DeleteExpired removes tokens whose expiry has passed
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM sharing_tokens WHERE expires_at <= $1`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return result.RowsAffected()
}

// Stats summarizes token usage
func (r *TokenRepository) Stats(ctx context.Context) (*model.SharingStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE revoked_at IS NULL AND use_count < max_uses AND expires_at > NOW()),
			COUNT(*) FILTER (WHERE revoked_at IS NOT NULL),
			COUNT(*) FILTER (WHERE revoked_at IS NULL AND expires_at <= NOW()),
			COALESCE(SUM(use_count), 0)
		FROM sharing_tokens
	`
	var stats model.SharingStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalTokens,
		&stats.ActiveTokens,
		&stats.RevokedTokens,
		&stats.ExpiredTokens,
		&stats.TotalUses,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute sharing stats: %w", err)
	}
	return &stats, nil
}

func (r *TokenRepository) scanOne(row *sql.Row) (*model.SharingToken, error) {
	var token model.SharingToken
	err := row.Scan(
		&token.ID,
		&token.RequestID,
		&token.ContactID,
		&token.ContactName,
		&token.TokenHash,
		&token.MaxUses,
		&token.UseCount,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.RevokeReason,
		&token.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sharing token: %w", err)
	}
	return &token, nil
}
