package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ifimgone/ifimgone/internal/config"
)

// GrantService issues and validates the short-lived signed grants
// returned by a successful sharing-token validation. The opaque sharing
// token is the long-lived credential; the grant is what the emergency
// data API actually accepts.
type GrantService struct {
	cfg    config.SharingConfig
	secret []byte
}

// GrantClaims are the claims in a grant token
type GrantClaims struct {
	jwt.RegisteredClaims
	RequestID string `json:"request_id"`
	ContactID string `json:"contact_id"`
	Scope     string `json:"scope"`
}

// NewGrantService creates a GrantService. If no signing secret is
// configured it falls back to an ephemeral random secret (dev mode);
// grants then do not survive a restart.
func NewGrantService(cfg config.SharingConfig) (*GrantService, error) {
	secret := []byte(cfg.GrantSigningSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral grant secret: %w", err)
		}
	}
	return &GrantService{cfg: cfg, secret: secret}, nil
}

// IssueGrant signs a grant for the given request, contact, and scope
func (s *GrantService) IssueGrant(requestID, contactID, scope string) (string, error) {
	now := time.Now()
	ttl := s.cfg.GrantTokenTTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	claims := GrantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.cfg.Issuer,
			Subject:   contactID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		RequestID: requestID,
		ContactID: contactID,
		Scope:     scope,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign grant: %w", err)
	}
	return signed, nil
}

// ValidateGrant parses and verifies a grant token
func (s *GrantService) ValidateGrant(tokenString string) (*GrantClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &GrantClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse grant: %w", err)
	}
	claims, ok := token.Claims.(*GrantClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid grant token")
	}
	return claims, nil
}

// GrantTTL returns the configured grant lifetime
func (s *GrantService) GrantTTL() time.Duration {
	if s.cfg.GrantTokenTTL == 0 {
		return 15 * time.Minute
	}
	return s.cfg.GrantTokenTTL
}

// NewOpaqueToken generates a random opaque sharing token
func NewOpaqueToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// HashToken hashes a token for storage lookup
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
