package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ifimgone/ifimgone/internal/config"
	"github.com/ifimgone/ifimgone/internal/model"
)

// VerificationPolicy decides whether a submitted verification succeeds.
// It is a pure function of the request, the submission, and the clock;
// the workflow controller owns persisting the outcome.
type VerificationPolicy struct {
	// Window is how long a code stays valid after request creation.
	Window time.Duration
}

// NewVerificationPolicy creates a policy from activation config
func NewVerificationPolicy(cfg config.ActivationConfig) *VerificationPolicy {
	window := cfg.VerificationWindow
	if window == 0 {
		window = 5 * time.Minute
	}
	return &VerificationPolicy{Window: window}
}

// Decision is the outcome of evaluating a verification submission
type Decision struct {
	Accepted bool
	Outcome  model.VerificationOutcome
	// Reason is nil when accepted, otherwise one of ErrAlreadyResolved,
	// ErrCodeExpired, ErrInvalidCode.
	Reason error
}

// Decide evaluates a verification submission against the request.
//
// in_app succeeds unconditionally: the initiator is assumed already
// authenticated by the surrounding session. Code-bearing methods
// require an exact case-insensitive match within the window.
func (p *VerificationPolicy) Decide(req *model.ActivationRequest, method model.VerificationMethod, submittedCode *string, now time.Time) Decision {
	if req.Status != model.StatusPendingVerification {
		return Decision{Outcome: model.OutcomeRejected, Reason: ErrAlreadyResolved}
	}

	if method == model.MethodInApp {
		return Decision{Accepted: true, Outcome: model.OutcomeAccepted}
	}

	// Window check comes first: a correct code after the deadline
	// still fails with Expired.
	if now.Sub(req.CreatedAt) > p.Window {
		return Decision{Outcome: model.OutcomeExpired, Reason: ErrCodeExpired}
	}

	if submittedCode == nil {
		return Decision{Outcome: model.OutcomeRejected, Reason: ErrInvalidCode}
	}
	if subtle.ConstantTimeCompare([]byte(HashCode(*submittedCode)), []byte(req.CodeHash)) != 1 {
		return Decision{Outcome: model.OutcomeRejected, Reason: ErrInvalidCode}
	}
	return Decision{Accepted: true, Outcome: model.OutcomeAccepted}
}

// HashCode hashes a verification code for at-rest storage. Codes are
// compared case-insensitively, so the input is lowercased first.
func HashCode(code string) string {
	normalized := strings.ToLower(strings.TrimSpace(code))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:])
}

// GenerateCode returns a random numeric verification code of the
// given length using crypto/rand.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	var sb strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate verification code: %w", err)
		}
		sb.WriteString(n.String())
	}
	return sb.String(), nil
}
