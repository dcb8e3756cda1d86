package model

import "time"

// Actor identifies who performed an audited action
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // "user", "contact", "professional", "system"
}

// SystemActor is used for transitions not driven by a person,
// such as the expiry sweep.
var SystemActor = Actor{ID: "system", Name: "System", Type: "system"}

// AuditEntry is an immutable log record of a lifecycle or verification
// event, carrying a 0-10 risk score computed once at creation.
type AuditEntry struct {
	ID          string                 `json:"id"`
	RequestID   string                 `json:"requestId"`
	TokenID     *string                `json:"tokenId,omitempty"`
	Action      string                 `json:"action"`
	PerformedBy Actor                  `json:"performedBy"`
	RiskScore   int                    `json:"riskScore"`
	Details     map[string]interface{} `json:"details,omitempty"`
	IPAddress   *string                `json:"ipAddress,omitempty"`
	UserAgent   *string                `json:"userAgent,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// Audit action constants
const (
	AuditActionRequestCreated        = "request.created"
	AuditActionRequestActivated      = "request.activated"
	AuditActionRequestRejected       = "request.rejected"
	AuditActionRequestCancelled      = "request.cancelled"
	AuditActionRequestExpired        = "request.expired"
	AuditActionVerificationAttempted = "verification.attempted"
	AuditActionNotificationSent      = "notification.sent"
	AuditActionTokenIssued           = "token.issued"
	AuditActionTokenValidated        = "token.validated"
	AuditActionTokenRejected         = "token.rejected"
	AuditActionTokenRevoked          = "token.revoked"
)

// AuditFilter narrows audit log queries. Zero values match everything.
type AuditFilter struct {
	RequestID string
	TokenID   string
	ActorID   string
	Action    string
	Limit     int
}

// RiskReport aggregates the risk profile of a single request's audit trail
type RiskReport struct {
	RequestID        string        `json:"requestId"`
	EntryCount       int           `json:"entryCount"`
	AverageRiskScore float64       `json:"averageRiskScore"`
	MaxRiskScore     int           `json:"maxRiskScore"`
	RiskEvents       []*AuditEntry `json:"riskEvents"`
}
