package model

import "time"

// SharingToken is a bounded-use credential issued when an activation
// request becomes active. Only the SHA-256 hash is stored; the raw
// value is returned exactly once at issuance.
type SharingToken struct {
	ID           string     `json:"id"`
	RequestID    string     `json:"requestId"`
	ContactID    string     `json:"contactId"`
	ContactName  string     `json:"contactName"`
	TokenHash    string     `json:"-"`
	MaxUses      int        `json:"maxUses"`
	UseCount     int        `json:"useCount"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	RevokedAt    *time.Time `json:"revokedAt,omitempty"`
	RevokeReason *string    `json:"revokeReason,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// RemainingUses returns how many redemptions the token has left
func (t *SharingToken) RemainingUses() int {
	if t.UseCount >= t.MaxUses {
		return 0
	}
	return t.MaxUses - t.UseCount
}

// Usable reports whether the token can still be redeemed at now
func (t *SharingToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && t.RemainingUses() > 0 && now.Before(t.ExpiresAt)
}

// SharingStats summarizes token usage across the system
type SharingStats struct {
	TotalTokens   int `json:"totalTokens"`
	ActiveTokens  int `json:"activeTokens"`
	RevokedTokens int `json:"revokedTokens"`
	ExpiredTokens int `json:"expiredTokens"`
	TotalUses     int `json:"totalUses"`
}
