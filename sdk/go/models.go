package ifimgone

import "time"

// Initiator identifies who opened or acted on an activation request.
type Initiator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// ActivationRequestInput opens a new activation request.
type ActivationRequestInput struct {
	Type            string    `json:"type"`
	Initiator       Initiator `json:"initiator"`
	UserID          string    `json:"userId"`
	Reason          string    `json:"reason"`
	UrgencyLevel    string    `json:"urgencyLevel"`
	ActivationLevel string    `json:"activationLevel,omitempty"`
}

// ActivationRequest is an emergency-activation request as returned by
// the API. Status is one of pending_verification, active, expired,
// rejected, or cancelled.
type ActivationRequest struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"`
	Initiator       Initiator  `json:"initiator"`
	UserID          string     `json:"userId"`
	Reason          string     `json:"reason"`
	UrgencyLevel    string     `json:"urgencyLevel"`
	ActivationLevel string     `json:"activationLevel"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	ActivatedAt     *time.Time `json:"activatedAt,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	CancelledAt     *time.Time `json:"cancelledAt,omitempty"`
	CancelReason    *string    `json:"cancelReason,omitempty"`
}

// VerificationInput submits a verification for a pending request.
// Code is required for every method except "in_app".
type VerificationInput struct {
	Method      string    `json:"method"`
	Code        *string   `json:"code,omitempty"`
	PerformedBy Initiator `json:"performedBy"`
}

// VerificationResult is the outcome of a successful verification. Token
// is the raw sharing token, returned exactly once.
type VerificationResult struct {
	Valid         bool               `json:"valid"`
	Token         string             `json:"token"`
	RemainingUses int                `json:"remainingUses"`
	ExpiresIn     int                `json:"expiresIn"`
	Request       *ActivationRequest `json:"request"`
}

// ResolutionInput rejects or cancels a request.
type ResolutionInput struct {
	Reason      string    `json:"reason,omitempty"`
	PerformedBy Initiator `json:"performedBy"`
}

// RevokeTokenInput revokes a sharing token.
type RevokeTokenInput struct {
	TokenID     string    `json:"tokenId"`
	Reason      string    `json:"reason,omitempty"`
	PerformedBy Initiator `json:"performedBy"`
}

// Contact identifies the contact a grant was issued to.
type Contact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// AccessGrant is a redeemed sharing token: a short-lived signed grant
// for the emergency data API plus use accounting.
type AccessGrant struct {
	Valid         bool    `json:"valid"`
	Token         string  `json:"token"`
	Contact       Contact `json:"contact"`
	RemainingUses int     `json:"remainingUses"`
	ExpiresIn     int     `json:"expiresIn"`
}

// AuditEntry is one record of a request's audit trail.
type AuditEntry struct {
	ID          string                 `json:"id"`
	RequestID   string                 `json:"requestId"`
	TokenID     *string                `json:"tokenId,omitempty"`
	Action      string                 `json:"action"`
	PerformedBy Contact                `json:"performedBy"`
	RiskScore   int                    `json:"riskScore"`
	Details     map[string]interface{} `json:"details,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// RiskReport aggregates the risk profile of a request's audit trail.
type RiskReport struct {
	RequestID        string        `json:"requestId"`
	EntryCount       int           `json:"entryCount"`
	AverageRiskScore float64       `json:"averageRiskScore"`
	MaxRiskScore     int           `json:"maxRiskScore"`
	RiskEvents       []*AuditEntry `json:"riskEvents"`
}
