package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifimgone/ifimgone/internal/auth"
	"github.com/ifimgone/ifimgone/internal/config"
	"github.com/ifimgone/ifimgone/internal/logger"
	"github.com/ifimgone/ifimgone/internal/model"
	"github.com/ifimgone/ifimgone/internal/repository"
)

type publishedEvent struct {
	Channel string
	Event   Event
}

// capturePublisher records events instead of publishing to Redis
type capturePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *capturePublisher) Publish(_ context.Context, channel string, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Channel: channel, Event: event})
	return nil
}

// codeFor returns the verification code delivered for a request
func (p *capturePublisher) codeFor(requestID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pe := range p.events {
		if pe.Channel == NotificationsChannel && pe.Event.Type == EventNotifyCode && pe.Event.RequestID == requestID {
			return pe.Event.Payload["code"]
		}
	}
	return ""
}

type workflowFixture struct {
	svc     *ActivationService
	sharing *SharingService
	store   *repository.MemoryActivationStore
	audit   *repository.MemoryAuditStore
	tokens  *repository.MemoryTokenStore
	events  *capturePublisher
	now     time.Time
}

func (f *workflowFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()

	cfg := &config.Config{
		Activation: config.ActivationConfig{
			VerificationWindow: 5 * time.Minute,
			CodeLength:         6,
			Grants: map[string]time.Duration{
				"panic_button":         24 * time.Hour,
				"trusted_contact":      72 * time.Hour,
				"medical_professional": 72 * time.Hour,
				"legal_representative": 720 * time.Hour,
			},
		},
		Sharing: config.SharingConfig{
			MaxUses:            3,
			GrantTokenTTL:      15 * time.Minute,
			GrantSigningSecret: "workflow-test-secret",
			Issuer:             "ifimgone-test",
		},
	}
	log := logger.New("error", "json")

	grants, err := auth.NewGrantService(cfg.Sharing)
	require.NoError(t, err)

	f := &workflowFixture{
		store:  repository.NewMemoryActivationStore(),
		audit:  repository.NewMemoryAuditStore(),
		tokens: repository.NewMemoryTokenStore(),
		events: &capturePublisher{},
		now:    time.Now(),
	}

	scorer := NewRiskScorer()
	f.sharing = NewSharingService(f.tokens, f.audit, grants, scorer, cfg, log)
	f.sharing.clock = func() time.Time { return f.now }

	f.svc = NewActivationService(f.store, f.audit, f.sharing,
		NewVerificationPolicy(cfg.Activation), scorer, f.events, cfg, log)
	f.svc.clock = func() time.Time { return f.now }

	return f
}

func (f *workflowFixture) request(t *testing.T, activationType model.ActivationType, urgency model.UrgencyLevel) *model.ActivationRequest {
	t.Helper()
	req, err := f.svc.RequestActivation(context.Background(), RequestActivationInput{
		Type:         activationType,
		Initiator:    model.Initiator{ID: "contact-1", Name: "Jordan Reyes", Role: "trusted_contact"},
		UserID:       "user-1",
		Reason:       "Medical emergency",
		UrgencyLevel: urgency,
	})
	require.NoError(t, err)
	return req
}

func testVCtx() VerificationContext {
	ip := "203.0.113.7"
	return VerificationContext{
		IPAddress: &ip,
		Actor:     model.Actor{ID: "contact-1", Name: "Jordan Reyes", Type: "contact"},
	}
}

func auditCount(t *testing.T, f *workflowFixture, requestID string) int {
	t.Helper()
	entries, err := f.audit.List(context.Background(), model.AuditFilter{RequestID: requestID})
	require.NoError(t, err)
	return len(entries)
}

func TestRequestActivationRoundTrip(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	req := f.request(t, model.TypeTrustedContact, model.UrgencyMedium)

	got, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingVerification, got.Status)
	assert.False(t, got.CreatedAt.After(f.now))
	assert.Nil(t, got.ActivatedAt)
	assert.Nil(t, got.ExpiresAt)

	// The verification code went out over the notification channel.
	code := f.events.codeFor(req.ID)
	assert.Len(t, code, 6)

	// Exactly one audit entry so far.
	assert.Equal(t, 1, auditCount(t, f, req.ID))
}

func TestRequestActivationValidation(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	base := RequestActivationInput{
		Type:         model.TypeTrustedContact,
		Initiator:    model.Initiator{ID: "contact-1", Name: "Jordan Reyes"},
		UserID:       "user-1",
		Reason:       "Something happened",
		UrgencyLevel: model.UrgencyHigh,
	}

	noReason := base
	noReason.Reason = "   "
	_, err := f.svc.RequestActivation(ctx, noReason)
	assert.ErrorIs(t, err, ErrValidation)

	badType := base
	badType.Type = "carrier_pigeon"
	_, err = f.svc.RequestActivation(ctx, badType)
	assert.ErrorIs(t, err, ErrValidation)

	badUrgency := base
	badUrgency.UrgencyLevel = "extreme"
	_, err = f.svc.RequestActivation(ctx, badUrgency)
	assert.ErrorIs(t, err, ErrValidation)

	noUser := base
	noUser.UserID = ""
	_, err = f.svc.RequestActivation(ctx, noUser)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInAppVerificationActivates(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	req := f.request(t, model.TypePanicButton, model.UrgencyCritical)

	result, err := f.svc.SubmitVerification(ctx, req.ID, model.MethodInApp, nil, testVCtx())
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, 3, result.RemainingUses)
	assert.Positive(t, result.ExpiresIn)

	got, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, got.Status)
	require.NotNil(t, got.ActivatedAt)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, got.ActivatedAt.Add(24*time.Hour), *got.ExpiresAt)
	assert.False(t, got.ActivatedAt.Before(got.CreatedAt))

	// created + activated
	assert.Equal(t, 2, auditCount(t, f, req.ID))

	entries, err := f.audit.List(ctx, model.AuditFilter{RequestID: req.ID, Action: model.AuditActionRequestActivated})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 8, entries[0].RiskScore) // critical urgency
	require.NotNil(t, entries[0].IPAddress)
	assert.Equal(t, "203.0.113.7", *entries[0].IPAddress)
}

func TestWrongCodeLeavesRequestPending(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	req := f.request(t, model.TypeTrustedContact, model.UrgencyHigh)

	_, err := f.svc.SubmitVerification(ctx, req.ID, model.MethodSMS, strPtr("000000"), testVCtx())
	assert.ErrorIs(t, err, ErrInvalidCode)

	got, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingVerification, got.Status)

	// The failed attempt is audited with the wrong-code score.
	entries, err := f.audit.List(ctx, model.AuditFilter{RequestID: req.ID, Action: model.AuditActionVerificationAttempted})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 7, entries[0].RiskScore)

	// The verifier can retry with the real code.
	code := f.events.codeFor(req.ID)
	require.NotEmpty(t, code)
	result, err := f.svc.SubmitVerification(ctx, req.ID, model.MethodSMS, &code, testVCtx())
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestCorrectCodeAfterWindowExpires(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	req := f.request(t, model.TypeMedicalProfessional, model.UrgencyHigh)
	code := f.events.codeFor(req.ID)
	require.NotEmpty(t, code)

	f.advance(6 * time.Minute)

	_, err := f.svc.SubmitVerification(ctx, req.ID, model.MethodEmail, &code, testVCtx())
	assert.ErrorIs(t, err, ErrCodeExpired)

	got, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingVerification, got.Status)
}

func TestCancelActiveRequestIsIdempotent(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	req := f.request(t, model.TypeTrustedContact, model.UrgencyMedium)
	_, err := f.svc.SubmitVerification(ctx, req.ID, model.MethodInApp, nil, testVCtx())
	require.NoError(t, err)

	cancelled, err := f.svc.CancelActivation(ctx, req.ID, "User rejected", testVCtx())
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	// Second cancel is a no-op returning the same state.
	again, err := f.svc.CancelActivation(ctx, req.ID, "User rejected", testVCtx())
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, again.Status)
	assert.Equal(t, cancelled.CancelledAt, again.CancelledAt)

	// created + activated + cancelled; the repeat added nothing.
	assert.Equal(t, 3, auditCount(t, f, req.ID))
}

func TestCancelUnknownRequest(t *testing.T) {
	f := newWorkflowFixture(t)

	_, err := f.svc.CancelActivation(context.Background(), "no-such-id", "whatever", testVCtx())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRejectActivation(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	req := f.request(t, model.TypeLegalRepresentative, model.UrgencyLow)

	rejected, err := f.svc.RejectActivation(ctx, req.ID, "Credentials not recognized", testVCtx())
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)

	// Verifying a rejected request fails with AlreadyResolved.
	_, err = f.svc.SubmitVerification(ctx, req.ID, model.MethodInApp, nil, testVCtx())
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	// Rejecting again violates the state machine.
	_, err = f.svc.RejectActivation(ctx, req.ID, "again", testVCtx())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	entries, err := f.audit.List(ctx, model.AuditFilter{RequestID: req.ID, Action: model.AuditActionRequestRejected})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 6, entries[0].RiskScore)
}

func TestAtMostOneVerificationSucceeds(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	req := f.request(t, model.TypeTrustedContact, model.UrgencyHigh)

	const n = 16
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.SubmitVerification(ctx, req.ID, model.MethodInApp, nil, testVCtx())
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyResolved)
		}
	}
	assert.Equal(t, 1, successes)

	// Each call appended exactly one audit entry, plus the create.
	assert.Equal(t, n+1, auditCount(t, f, req.ID))
}

func TestCleanupExpiredIsIdempotent(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	req := f.request(t, model.TypePanicButton, model.UrgencyCritical)
	_, err := f.svc.SubmitVerification(ctx, req.ID, model.MethodInApp, nil, testVCtx())
	require.NoError(t, err)

	f.advance(25 * time.Hour)

	count, err := f.svc.CleanupExpired(ctx, f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = f.svc.CleanupExpired(ctx, f.now)
	require.NoError(t, err)
	assert.Zero(t, count)

	got, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, got.Status)
	// Expired is reached only from active, so activatedAt survives.
	assert.NotNil(t, got.ActivatedAt)
	require.NotNil(t, got.ExpiresAt)
	assert.False(t, got.ExpiresAt.Before(*got.ActivatedAt))

	entries, err := f.audit.List(ctx, model.AuditFilter{RequestID: req.ID, Action: model.AuditActionRequestExpired})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCleanupLeavesUnexpiredAlone(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	req := f.request(t, model.TypeTrustedContact, model.UrgencyMedium)
	_, err := f.svc.SubmitVerification(ctx, req.ID, model.MethodInApp, nil, testVCtx())
	require.NoError(t, err)

	count, err := f.svc.CleanupExpired(ctx, f.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)

	got, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, got.Status)
}

func TestListActiveExcludesTerminal(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	first := f.request(t, model.TypeTrustedContact, model.UrgencyMedium)
	second := f.request(t, model.TypePanicButton, model.UrgencyCritical)

	_, err := f.svc.CancelActivation(ctx, first.ID, "mistake", testVCtx())
	require.NoError(t, err)

	active, err := f.svc.ListActive(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestAuditCompleteness(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	req := f.request(t, model.TypeTrustedContact, model.UrgencyHigh) // 1: created

	_, err := f.svc.SubmitVerification(ctx, req.ID, model.MethodSMS, strPtr("000000"), testVCtx()) // 2: attempt
	assert.ErrorIs(t, err, ErrInvalidCode)

	code := f.events.codeFor(req.ID)
	_, err = f.svc.SubmitVerification(ctx, req.ID, model.MethodSMS, &code, testVCtx()) // 3: activated
	require.NoError(t, err)

	_, err = f.svc.CancelActivation(ctx, req.ID, "done", testVCtx()) // 4: cancelled
	require.NoError(t, err)

	entries, err := f.audit.List(ctx, model.AuditFilter{RequestID: req.ID})
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for _, entry := range entries {
		assert.Equal(t, req.ID, entry.RequestID)
		assert.GreaterOrEqual(t, entry.RiskScore, 0)
		assert.LessOrEqual(t, entry.RiskScore, 10)
		assert.False(t, entry.CreatedAt.IsZero())
	}
}

func TestGetAuditReport(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	req := f.request(t, model.TypePanicButton, model.UrgencyCritical)
	_, err := f.svc.SubmitVerification(ctx, req.ID, model.MethodSMS, strPtr("000000"), testVCtx())
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, err = f.svc.SubmitVerification(ctx, req.ID, model.MethodInApp, nil, testVCtx())
	require.NoError(t, err)

	report, err := f.svc.GetAuditReport(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.EntryCount)
	assert.Equal(t, 8, report.MaxRiskScore) // critical activation
	// Wrong-code attempt (7) and critical activation (8) are risk events.
	assert.Len(t, report.RiskEvents, 2)

	_, err = f.svc.GetAuditReport(ctx, "no-such-id")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUnknownVerificationMethod(t *testing.T) {
	f := newWorkflowFixture(t)

	req := f.request(t, model.TypeTrustedContact, model.UrgencyLow)

	_, err := f.svc.SubmitVerification(context.Background(), req.ID, "telepathy", nil, testVCtx())
	assert.ErrorIs(t, err, ErrValidation)
}
