package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ifimgone/ifimgone/internal/database"
	"github.com/ifimgone/ifimgone/internal/model"
)

// AuditRepository handles audit log persistence in PostgreSQL.
// The table is append-only: there are no update or delete methods.
type AuditRepository struct {
	db *database.Postgres
}

var _ AuditStore = (*AuditRepository)(nil)

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *database.Postgres) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts a new audit entry
func (r *AuditRepository) Append(ctx context.Context, entry *model.AuditEntry) error {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	query := `
		INSERT INTO audit_entries (id, request_id, token_id, action, actor_id,
		    actor_name, actor_type, risk_score, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.RequestID,
		entry.TokenID,
		entry.Action,
		entry.PerformedBy.ID,
		entry.PerformedBy.Name,
		entry.PerformedBy.Type,
		entry.RiskScore,
		detailsJSON,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// List returns audit entries matching the filter, newest first
func (r *AuditRepository) List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(column string, value string) {
		args = append(args, value)
		conds = append(conds, column+" = $"+strconv.Itoa(len(args)))
	}
	if filter.RequestID != "" {
		add("request_id", filter.RequestID)
	}
	if filter.TokenID != "" {
		add("token_id", filter.TokenID)
	}
	if filter.ActorID != "" {
		add("actor_id", filter.ActorID)
	}
	if filter.Action != "" {
		add("action", filter.Action)
	}

	query := `
		SELECT id, request_id, token_id, action, actor_id, actor_name, actor_type,
		    risk_score, details, ip_address, user_agent, created_at
		FROM audit_entries
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*model.AuditEntry
	for rows.Next() {
		var (
			entry       model.AuditEntry
			detailsJSON []byte
		)
		err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.TokenID,
			&entry.Action,
			&entry.PerformedBy.ID,
			&entry.PerformedBy.Name,
			&entry.PerformedBy.Type,
			&entry.RiskScore,
			&detailsJSON,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
				entry.Details = nil
			}
		}
		out = append(out, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return out, nil
}
