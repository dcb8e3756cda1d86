package model

import "time"

// ActivationStatus is the lifecycle state of an activation request
type ActivationStatus string

const (
	StatusPendingVerification ActivationStatus = "pending_verification"
	StatusVerified            ActivationStatus = "verified"
	StatusActive              ActivationStatus = "active"
	StatusExpired             ActivationStatus = "expired"
	StatusRejected            ActivationStatus = "rejected"
	StatusCancelled           ActivationStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions
func (s ActivationStatus) Terminal() bool {
	switch s {
	case StatusExpired, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// ActivationType identifies who or what is requesting emergency access
type ActivationType string

const (
	TypePanicButton         ActivationType = "panic_button"
	TypeSMSCode             ActivationType = "sms_code"
	TypeTrustedContact      ActivationType = "trusted_contact"
	TypeMedicalProfessional ActivationType = "medical_professional"
	TypeLegalRepresentative ActivationType = "legal_representative"
)

// ValidActivationType reports whether t is a known activation type
func ValidActivationType(t ActivationType) bool {
	switch t {
	case TypePanicButton, TypeSMSCode, TypeTrustedContact,
		TypeMedicalProfessional, TypeLegalRepresentative:
		return true
	}
	return false
}

// UrgencyLevel classifies how pressing the activation request is
type UrgencyLevel string

const (
	UrgencyCritical UrgencyLevel = "critical"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyLow      UrgencyLevel = "low"
)

// ValidUrgencyLevel reports whether u is a known urgency level
func ValidUrgencyLevel(u UrgencyLevel) bool {
	switch u {
	case UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow:
		return true
	}
	return false
}

// ActivationLevel is the access scope granted on activation
type ActivationLevel string

const (
	LevelFull    ActivationLevel = "full"
	LevelPartial ActivationLevel = "partial"
	LevelCustom  ActivationLevel = "custom"
)

// Initiator identifies who opened an activation request
type Initiator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// ActivationRequest represents a request for emergency access to a
// user's protected information.
type ActivationRequest struct {
	ID              string           `json:"id"`
	Type            ActivationType   `json:"type"`
	Initiator       Initiator        `json:"initiator"`
	UserID          string           `json:"userId"`
	Reason          string           `json:"reason"`
	UrgencyLevel    UrgencyLevel     `json:"urgencyLevel"`
	ActivationLevel ActivationLevel  `json:"activationLevel"`
	Status          ActivationStatus `json:"status"`
	// CodeHash is the SHA-256 of the lowercased verification code.
	// Never serialized to clients.
	CodeHash    string     `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	ActivatedAt *time.Time `json:"activatedAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	// CancelReason records why the request was cancelled or rejected
	CancelReason *string `json:"cancelReason,omitempty"`
}

// Clone returns a deep copy of the request. The in-memory store hands
// out clones so callers can never mutate stored state directly.
func (r *ActivationRequest) Clone() *ActivationRequest {
	c := *r
	if r.ActivatedAt != nil {
		t := *r.ActivatedAt
		c.ActivatedAt = &t
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		c.ExpiresAt = &t
	}
	if r.CancelledAt != nil {
		t := *r.CancelledAt
		c.CancelledAt = &t
	}
	if r.CancelReason != nil {
		s := *r.CancelReason
		c.CancelReason = &s
	}
	return &c
}

// VerificationMethod is how an activation request is confirmed
type VerificationMethod string

const (
	MethodInApp     VerificationMethod = "in_app"
	MethodSMS       VerificationMethod = "sms"
	MethodEmail     VerificationMethod = "email"
	MethodTwoFactor VerificationMethod = "two_factor"
)

// ValidVerificationMethod reports whether m is a known method
func ValidVerificationMethod(m VerificationMethod) bool {
	switch m {
	case MethodInApp, MethodSMS, MethodEmail, MethodTwoFactor:
		return true
	}
	return false
}

// VerificationOutcome is the terminal result of a verification attempt
type VerificationOutcome string

const (
	OutcomeAccepted VerificationOutcome = "accepted"
	OutcomeRejected VerificationOutcome = "rejected"
	OutcomeExpired  VerificationOutcome = "expired"
)

// VerificationAttempt records a single verification submission.
// Attempts are terminal at creation and never mutated.
type VerificationAttempt struct {
	RequestID     string              `json:"requestId"`
	Method        VerificationMethod  `json:"method"`
	SubmittedCode *string             `json:"submittedCode,omitempty"`
	Outcome       VerificationOutcome `json:"outcome"`
	Timestamp     time.Time           `json:"timestamp"`
}
