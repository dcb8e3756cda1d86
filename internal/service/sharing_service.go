package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ifimgone/ifimgone/internal/auth"
	"github.com/ifimgone/ifimgone/internal/config"
	"github.com/ifimgone/ifimgone/internal/logger"
	"github.com/ifimgone/ifimgone/internal/model"
	"github.com/ifimgone/ifimgone/internal/repository"
)

// AccessGrant is the result of a successful token validation
type AccessGrant struct {
	Valid         bool        `json:"valid"`
	Token         string      `json:"token"`
	Contact       model.Actor `json:"contact"`
	RemainingUses int         `json:"remainingUses"`
	ExpiresIn     int         `json:"expiresIn"`
}

// SharingService owns emergency-sharing tokens: bounded-use opaque
// credentials issued when an activation request becomes active, and the
// short-lived grants exchanged for them.
type SharingService struct {
	tokens repository.TokenStore
	audit  repository.AuditStore
	grants *auth.GrantService
	scorer *RiskScorer
	cfg    *config.Config
	log    *logger.Logger
	clock  func() time.Time
}

// NewSharingService creates a SharingService
func NewSharingService(
	tokens repository.TokenStore,
	audit repository.AuditStore,
	grants *auth.GrantService,
	scorer *RiskScorer,
	cfg *config.Config,
	log *logger.Logger,
) *SharingService {
	return &SharingService{
		tokens: tokens,
		audit:  audit,
		grants: grants,
		scorer: scorer,
		cfg:    cfg,
		log:    log.WithComponent("sharing"),
		clock:  time.Now,
	}
}

// IssueToken mints a sharing token for a just-activated request. The
// raw token value is returned exactly once; only its hash is stored.
func (s *SharingService) IssueToken(ctx context.Context, req *model.ActivationRequest) (*model.SharingToken, string, error) {
	if req.ExpiresAt == nil {
		return nil, "", fmt.Errorf("%w: request has no expiry", ErrInvalidTransition)
	}

	raw, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, "", err
	}

	token := &model.SharingToken{
		ID:          uuid.New().String(),
		RequestID:   req.ID,
		ContactID:   req.Initiator.ID,
		ContactName: req.Initiator.Name,
		TokenHash:   auth.HashToken(raw),
		MaxUses:     s.cfg.Sharing.MaxUses,
		UseCount:    0,
		ExpiresAt:   *req.ExpiresAt,
		CreatedAt:   s.clock(),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, "", err
	}

	// Issuance is part of the activation transition; the workflow
	// controller records it on the request.activated audit entry so a
	// single state-changing call yields a single entry.
	s.log.Info().Str("token_id", token.ID).Str("request_id", req.ID).Msg("sharing token issued")
	return token, raw, nil
}

// ValidateAccess redeems one use of a sharing token and returns a
// signed grant for the emergency data API. Every failure path is
// audited before returning ErrTokenInvalid.
func (s *SharingService) ValidateAccess(ctx context.Context, rawToken string, ipAddress, userAgent *string) (*AccessGrant, error) {
	now := s.clock()

	token, err := s.tokens.GetByHash(ctx, auth.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn().Msg("unknown sharing token presented")
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	consumed, err := s.tokens.Consume(ctx, token.ID, now)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.appendAudit(ctx, token.RequestID, &token.ID, model.AuditActionTokenRejected,
				model.Actor{ID: token.ContactID, Name: token.ContactName, Type: "contact"},
				map[string]interface{}{"reason": s.rejectReason(token, now)},
				ipAddress, userAgent)
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	grant, err := s.grants.IssueGrant(consumed.RequestID, consumed.ContactID, string(model.LevelFull))
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, consumed.RequestID, &consumed.ID, model.AuditActionTokenValidated,
		model.Actor{ID: consumed.ContactID, Name: consumed.ContactName, Type: "contact"},
		map[string]interface{}{"remainingUses": consumed.RemainingUses()},
		ipAddress, userAgent)

	return &AccessGrant{
		Valid:         true,
		Token:         grant,
		Contact:       model.Actor{ID: consumed.ContactID, Name: consumed.ContactName, Type: "contact"},
		RemainingUses: consumed.RemainingUses(),
		ExpiresIn:     int(consumed.ExpiresAt.Sub(now).Seconds()),
	}, nil
}

func (s *SharingService) rejectReason(token *model.SharingToken, now time.Time) string {
	switch {
	case token.RevokedAt != nil:
		return "revoked"
	case !token.ExpiresAt.After(now):
		return "expired"
	case token.RemainingUses() == 0:
		return "exhausted"
	}
	return "unusable"
}

// RevokeToken marks a sharing token revoked. Revoking an
// already-revoked token is a no-op, not an error.
func (s *SharingService) RevokeToken(ctx context.Context, tokenID, reason string, actor model.Actor) (*model.SharingToken, error) {
	if tokenID == "" {
		return nil, fmt.Errorf("%w: tokenId is required", ErrValidation)
	}

	token, err := s.tokens.Revoke(ctx, tokenID, reason, s.clock())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Already revoked; return current state unchanged.
			return s.tokens.GetByID(ctx, tokenID)
		}
		return nil, err
	}

	s.appendAudit(ctx, token.RequestID, &token.ID, model.AuditActionTokenRevoked, actor,
		map[string]interface{}{"reason": reason}, nil, nil)

	s.log.Info().Str("token_id", token.ID).Str("reason", reason).Msg("sharing token revoked")
	return token, nil
}

// AccessLogs returns audit entries for token activity
func (s *SharingService) AccessLogs(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.audit.List(ctx, filter)
}

// Stats summarizes sharing token usage
func (s *SharingService) Stats(ctx context.Context) (*model.SharingStats, error) {
	return s.tokens.Stats(ctx)
}

// PurgeExpired removes sharing tokens whose expiry has passed
func (s *SharingService) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.tokens.DeleteExpired(ctx, now)
}

func (s *SharingService) appendAudit(ctx context.Context, requestID string, tokenID *string, action string, actor model.Actor, details map[string]interface{}, ipAddress, userAgent *string) {
	entry := &model.AuditEntry{
		ID:          uuid.New().String(),
		RequestID:   requestID,
		TokenID:     tokenID,
		Action:      action,
		PerformedBy: actor,
		RiskScore:   s.scorer.Score(action, RiskContext{}),
		Details:     details,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		CreatedAt:   s.clock(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("action", action).Msg("failed to append audit entry")
	}
}
