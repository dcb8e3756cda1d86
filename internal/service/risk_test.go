package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ifimgone/ifimgone/internal/model"
)

func TestScoreBaseValues(t *testing.T) {
	scorer := NewRiskScorer()

	assert.Equal(t, 6, scorer.Score(model.AuditActionRequestRejected, RiskContext{}))
	assert.Equal(t, 1, scorer.Score(model.AuditActionNotificationSent, RiskContext{}))
	assert.Equal(t, 3, scorer.Score(model.AuditActionVerificationAttempted, RiskContext{}))
}

func TestScoreWrongCodeRaisesVerification(t *testing.T) {
	scorer := NewRiskScorer()

	score := scorer.Score(model.AuditActionVerificationAttempted, RiskContext{WrongCode: true})

	assert.Equal(t, 7, score)
}

func TestScoreUrgencyRaisesActivation(t *testing.T) {
	scorer := NewRiskScorer()

	assert.Equal(t, 8, scorer.Score(model.AuditActionRequestActivated, RiskContext{Urgency: model.UrgencyCritical}))
	assert.Equal(t, 7, scorer.Score(model.AuditActionRequestActivated, RiskContext{Urgency: model.UrgencyHigh}))
	assert.Equal(t, 6, scorer.Score(model.AuditActionRequestActivated, RiskContext{Urgency: model.UrgencyMedium}))
	assert.Equal(t, 5, scorer.Score(model.AuditActionRequestActivated, RiskContext{Urgency: model.UrgencyLow}))
}

func TestScoreUnknownActionGetsMiddleScore(t *testing.T) {
	scorer := NewRiskScorer()

	assert.Equal(t, 5, scorer.Score("something.new", RiskContext{}))
}

func TestScoreStaysInRange(t *testing.T) {
	scorer := NewRiskScorer()

	for action := range baseRiskScores {
		for _, rc := range []RiskContext{
			{},
			{WrongCode: true},
			{Urgency: model.UrgencyCritical},
			{Urgency: model.UrgencyCritical, WrongCode: true},
		} {
			score := scorer.Score(action, rc)
			assert.GreaterOrEqual(t, score, 0)
			assert.LessOrEqual(t, score, 10)
		}
	}
}

func TestReportAggregates(t *testing.T) {
	scorer := NewRiskScorer()
	entries := []*model.AuditEntry{
		{ID: "a", RequestID: "req-1", RiskScore: 3},
		{ID: "b", RequestID: "req-1", RiskScore: 7},
		{ID: "c", RequestID: "req-1", RiskScore: 8},
	}

	report := scorer.Report("req-1", entries)

	assert.Equal(t, "req-1", report.RequestID)
	assert.Equal(t, 3, report.EntryCount)
	assert.InDelta(t, 6.0, report.AverageRiskScore, 0.001)
	assert.Equal(t, 8, report.MaxRiskScore)
	// Only scores >= 7 count as risk events.
	assert.Len(t, report.RiskEvents, 2)
}

func TestReportEmptyTrail(t *testing.T) {
	scorer := NewRiskScorer()

	report := scorer.Report("req-1", nil)

	assert.Equal(t, 0, report.EntryCount)
	assert.Zero(t, report.AverageRiskScore)
	assert.Zero(t, report.MaxRiskScore)
	assert.Empty(t, report.RiskEvents)
}
