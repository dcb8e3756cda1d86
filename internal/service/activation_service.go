package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ifimgone/ifimgone/internal/config"
	"github.com/ifimgone/ifimgone/internal/logger"
	"github.com/ifimgone/ifimgone/internal/model"
	"github.com/ifimgone/ifimgone/internal/repository"
)

// RequestActivationInput carries everything needed to open a request
type RequestActivationInput struct {
	Type            model.ActivationType
	Initiator       model.Initiator
	UserID          string
	Reason          string
	UrgencyLevel    model.UrgencyLevel
	ActivationLevel model.ActivationLevel
}

// VerificationContext carries request-scoped metadata for auditing
type VerificationContext struct {
	IPAddress *string
	UserAgent *string
	Actor     model.Actor
}

// VerificationResult is returned by SubmitVerification. Token fields
// are set only when the verification activated the request.
type VerificationResult struct {
	Valid         bool                     `json:"valid"`
	Token         string                   `json:"token,omitempty"`
	RemainingUses int                      `json:"remainingUses,omitempty"`
	ExpiresIn     int                      `json:"expiresIn,omitempty"`
	Request       *model.ActivationRequest `json:"request"`
}

// ActivationService is the workflow controller: the only component
// that mutates the activation store. Every state-changing call appends
// exactly one audit entry before returning.
type ActivationService struct {
	store   repository.ActivationStore
	audit   repository.AuditStore
	sharing *SharingService
	policy  *VerificationPolicy
	scorer  *RiskScorer
	events  Publisher
	cfg     *config.Config
	log     *logger.Logger
	clock   func() time.Time
}

// NewActivationService creates an ActivationService
func NewActivationService(
	store repository.ActivationStore,
	audit repository.AuditStore,
	sharing *SharingService,
	policy *VerificationPolicy,
	scorer *RiskScorer,
	events Publisher,
	cfg *config.Config,
	log *logger.Logger,
) *ActivationService {
	return &ActivationService{
		store:   store,
		audit:   audit,
		sharing: sharing,
		policy:  policy,
		scorer:  scorer,
		events:  events,
		cfg:     cfg,
		log:     log.WithComponent("activation"),
		clock:   time.Now,
	}
}

// RequestActivation opens a new emergency-activation request in
// pending_verification and notifies the verifier with a one-time code.
func (s *ActivationService) RequestActivation(ctx context.Context, input RequestActivationInput) (*model.ActivationRequest, error) {
	if strings.TrimSpace(input.Reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	if !model.ValidActivationType(input.Type) {
		return nil, fmt.Errorf("%w: unknown activation type %q", ErrValidation, input.Type)
	}
	if !model.ValidUrgencyLevel(input.UrgencyLevel) {
		return nil, fmt.Errorf("%w: unknown urgency level %q", ErrValidation, input.UrgencyLevel)
	}
	if input.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if input.ActivationLevel == "" {
		input.ActivationLevel = model.LevelFull
	}

	code, err := GenerateCode(s.cfg.Activation.CodeLength)
	if err != nil {
		return nil, err
	}

	req := &model.ActivationRequest{
		ID:              uuid.New().String(),
		Type:            input.Type,
		Initiator:       input.Initiator,
		UserID:          input.UserID,
		Reason:          input.Reason,
		UrgencyLevel:    input.UrgencyLevel,
		ActivationLevel: input.ActivationLevel,
		Status:          model.StatusPendingVerification,
		CodeHash:        HashCode(code),
		CreatedAt:       s.clock(),
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, err
	}

	actor := model.Actor{ID: input.Initiator.ID, Name: input.Initiator.Name, Type: "contact"}
	s.appendAudit(ctx, req.ID, model.AuditActionRequestCreated, actor, RiskContext{},
		map[string]interface{}{
			"type":         string(req.Type),
			"urgencyLevel": string(req.UrgencyLevel),
			"reason":       req.Reason,
		}, nil)

	s.publish(ctx, ActivationEventsChannel, Event{
		Type: EventRequestCreated, RequestID: req.ID, UserID: req.UserID,
		Payload: map[string]string{"type": string(req.Type), "urgency": string(req.UrgencyLevel)},
	})
	// The code travels only over the notification channel; delivery
	// transport is owned by the external consumer.
	s.publish(ctx, NotificationsChannel, Event{
		Type: EventNotifyCode, RequestID: req.ID, UserID: req.UserID,
		Payload: map[string]string{"code": code, "contactId": req.Initiator.ID},
	})

	s.log.Info().Str("request_id", req.ID).Str("type", string(req.Type)).Msg("activation requested")
	return req, nil
}

// Get returns the request or repository.ErrNotFound
func (s *ActivationService) Get(ctx context.Context, id string) (*model.ActivationRequest, error) {
	return s.store.Get(ctx, id)
}

// ListActive returns all non-terminal requests for a user
func (s *ActivationService) ListActive(ctx context.Context, userID string) ([]*model.ActivationRequest, error) {
	return s.store.ListActive(ctx, userID)
}

// SubmitVerification evaluates a verification submission and applies
// the resulting transition. At most one submission per request can
// succeed: concurrent callers serialize on the store's conditional
// transition and losers fail with ErrAlreadyResolved.
func (s *ActivationService) SubmitVerification(ctx context.Context, requestID string, method model.VerificationMethod, submittedCode *string, vctx VerificationContext) (*VerificationResult, error) {
	if !model.ValidVerificationMethod(method) {
		return nil, fmt.Errorf("%w: unknown verification method %q", ErrValidation, method)
	}

	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	decision := s.policy.Decide(req, method, submittedCode, now)

	attempt := model.VerificationAttempt{
		RequestID:     requestID,
		Method:        method,
		SubmittedCode: submittedCode,
		Outcome:       decision.Outcome,
		Timestamp:     now,
	}

	if !decision.Accepted {
		s.auditAttempt(ctx, req, attempt, decision, vctx)
		return nil, decision.Reason
	}

	grant := s.cfg.Activation.GrantDuration(string(req.Type))
	activated, err := s.store.Activate(ctx, requestID, now, now.Add(grant))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost the race: someone else resolved the request between
			// our read and this transition.
			decision = Decision{Outcome: model.OutcomeRejected, Reason: ErrAlreadyResolved}
			attempt.Outcome = decision.Outcome
			s.auditAttempt(ctx, req, attempt, decision, vctx)
			return nil, ErrAlreadyResolved
		}
		return nil, err
	}

	token, rawToken, err := s.sharing.IssueToken(ctx, activated)
	if err != nil {
		// The activation stands; the initiator can still be granted
		// access through a manually issued token.
		s.log.Error().Err(err).Str("request_id", requestID).Msg("failed to issue sharing token")
	}

	details := map[string]interface{}{
		"method":  string(method),
		"outcome": string(model.OutcomeAccepted),
	}
	if token != nil {
		details["tokenId"] = token.ID
		details["maxUses"] = token.MaxUses
	}
	s.appendAudit(ctx, requestID, model.AuditActionRequestActivated, vctx.Actor,
		RiskContext{Urgency: activated.UrgencyLevel}, details, vctx.IPAddress)

	s.publish(ctx, ActivationEventsChannel, Event{
		Type: EventRequestActivated, RequestID: activated.ID, UserID: activated.UserID,
		Payload: map[string]string{"expiresAt": activated.ExpiresAt.Format(time.RFC3339)},
	})

	s.log.Info().Str("request_id", requestID).Str("method", string(method)).Msg("activation verified and granted")

	result := &VerificationResult{Valid: true, Request: activated}
	if token != nil {
		result.Token = rawToken
		result.RemainingUses = token.RemainingUses()
		result.ExpiresIn = int(token.ExpiresAt.Sub(now).Seconds())
	}
	return result, nil
}

// RejectActivation denies a pending request, a terminal transition.
// Mismatched codes do not reject the request (the verifier may simply
// retry); rejection is an explicit denial by a verifier.
func (s *ActivationService) RejectActivation(ctx context.Context, requestID, reason string, vctx VerificationContext) (*model.ActivationRequest, error) {
	req, err := s.store.Reject(ctx, requestID, reason, s.clock())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	s.appendAudit(ctx, requestID, model.AuditActionRequestRejected, vctx.Actor, RiskContext{},
		map[string]interface{}{"reason": reason}, vctx.IPAddress)
	s.publish(ctx, ActivationEventsChannel, Event{
		Type: EventRequestRejected, RequestID: req.ID, UserID: req.UserID,
		Payload: map[string]string{"reason": reason},
	})

	s.log.Info().Str("request_id", requestID).Msg("activation rejected")
	return req, nil
}

// CancelActivation cancels any non-terminal request. Cancelling an
// already-cancelled request is a no-op returning the current state.
func (s *ActivationService) CancelActivation(ctx context.Context, requestID, reason string, vctx VerificationContext) (*model.ActivationRequest, error) {
	req, err := s.store.Cancel(ctx, requestID, reason, s.clock())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			current, getErr := s.store.Get(ctx, requestID)
			if getErr != nil {
				return nil, getErr
			}
			if current.Status == model.StatusCancelled {
				return current, nil
			}
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	s.appendAudit(ctx, requestID, model.AuditActionRequestCancelled, vctx.Actor, RiskContext{},
		map[string]interface{}{"reason": reason}, vctx.IPAddress)
	s.publish(ctx, ActivationEventsChannel, Event{
		Type: EventRequestCancelled, RequestID: req.ID, UserID: req.UserID,
		Payload: map[string]string{"reason": reason},
	})

	s.log.Info().Str("request_id", requestID).Str("reason", reason).Msg("activation cancelled")
	return req, nil
}

// CleanupExpired expires every active request whose grant has lapsed
// and returns the count. Safe to call on any schedule; concurrent
// sweeps never double-expire or double-log a request.
func (s *ActivationService) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.store.ExpireOverdue(ctx, now)
	if err != nil {
		return 0, err
	}

	for _, req := range expired {
		s.appendAudit(ctx, req.ID, model.AuditActionRequestExpired, model.SystemActor, RiskContext{},
			map[string]interface{}{"expiresAt": req.ExpiresAt}, nil)
		s.publish(ctx, ActivationEventsChannel, Event{
			Type: EventRequestExpired, RequestID: req.ID, UserID: req.UserID,
		})
	}

	if len(expired) > 0 {
		s.log.Info().Int("count", len(expired)).Msg("expired overdue activations")
	}
	return len(expired), nil
}

// GetAuditReport aggregates the risk profile of a request's audit trail
func (s *ActivationService) GetAuditReport(ctx context.Context, requestID string) (*model.RiskReport, error) {
	if _, err := s.store.Get(ctx, requestID); err != nil {
		return nil, err
	}
	entries, err := s.audit.List(ctx, model.AuditFilter{RequestID: requestID})
	if err != nil {
		return nil, err
	}
	return s.scorer.Report(requestID, entries), nil
}

func (s *ActivationService) auditAttempt(ctx context.Context, req *model.ActivationRequest, attempt model.VerificationAttempt, decision Decision, vctx VerificationContext) {
	details := map[string]interface{}{
		"method":  string(attempt.Method),
		"outcome": string(attempt.Outcome),
	}
	if decision.Reason != nil {
		details["reason"] = decision.Reason.Error()
	}
	rc := RiskContext{WrongCode: errors.Is(decision.Reason, ErrInvalidCode)}
	s.appendAudit(ctx, req.ID, model.AuditActionVerificationAttempted, vctx.Actor, rc, details, vctx.IPAddress)
}

func (s *ActivationService) appendAudit(ctx context.Context, requestID, action string, actor model.Actor, rc RiskContext, details map[string]interface{}, ipAddress *string) {
	entry := &model.AuditEntry{
		ID:          uuid.New().String(),
		RequestID:   requestID,
		Action:      action,
		PerformedBy: actor,
		RiskScore:   s.scorer.Score(action, rc),
		Details:     details,
		IPAddress:   ipAddress,
		CreatedAt:   s.clock(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("action", action).Str("request_id", requestID).Msg("failed to append audit entry")
	}
}

func (s *ActivationService) publish(ctx context.Context, channel string, event Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, channel, event); err != nil {
		s.log.Warn().Err(err).Str("channel", channel).Msg("failed to publish event")
	}
}
