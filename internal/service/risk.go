package service

import "github.com/ifimgone/ifimgone/internal/model"

// RiskEventThreshold is the score at or above which an audit entry
// counts as a risk event in aggregate reports.
const RiskEventThreshold = 7

// Base risk score per audit action. Modifiers below adjust for context;
// the final score is clamped to [0, 10]. Scores are display/filtering
// metadata only and never gate a transition.
var baseRiskScores = map[string]int{
	model.AuditActionRequestCreated:        3,
	model.AuditActionRequestActivated:      5,
	model.AuditActionRequestRejected:       6,
	model.AuditActionRequestCancelled:      4,
	model.AuditActionRequestExpired:        2,
	model.AuditActionVerificationAttempted: 3,
	model.AuditActionNotificationSent:      1,
	model.AuditActionTokenIssued:           4,
	model.AuditActionTokenValidated:        3,
	model.AuditActionTokenRejected:         6,
	model.AuditActionTokenRevoked:          5,
}

// RiskContext carries the signals that modify a base score
type RiskContext struct {
	Urgency model.UrgencyLevel
	// WrongCode marks a verification attempt with a mismatched code.
	WrongCode bool
}

// RiskScorer assigns 0-10 risk scores to audit-worthy actions and
// aggregates per-request reports. Scores are computed once at entry
// creation and stored immutably; reports only read stored scores.
type RiskScorer struct{}

// NewRiskScorer creates a RiskScorer
func NewRiskScorer() *RiskScorer {
	return &RiskScorer{}
}

// Score computes the risk score for an action in context
func (s *RiskScorer) Score(action string, rc RiskContext) int {
	score, ok := baseRiskScores[action]
	if !ok {
		score = 5
	}

	if rc.WrongCode && action == model.AuditActionVerificationAttempted {
		score += 4
	}
	if action == model.AuditActionRequestActivated {
		switch rc.Urgency {
		case model.UrgencyCritical:
			score += 3
		case model.UrgencyHigh:
			score += 2
		case model.UrgencyMedium:
			score += 1
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return score
}

// Report aggregates the stored scores of a request's audit trail
func (s *RiskScorer) Report(requestID string, entries []*model.AuditEntry) *model.RiskReport {
	report := &model.RiskReport{RequestID: requestID}
	if len(entries) == 0 {
		return report
	}

	total := 0
	for _, entry := range entries {
		total += entry.RiskScore
		if entry.RiskScore > report.MaxRiskScore {
			report.MaxRiskScore = entry.RiskScore
		}
		if entry.RiskScore >= RiskEventThreshold {
			report.RiskEvents = append(report.RiskEvents, entry)
		}
	}
	report.EntryCount = len(entries)
	report.AverageRiskScore = float64(total) / float64(len(entries))
	return report
}
