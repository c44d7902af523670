package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kiranshivaraju/incidentradar/internal/scoring"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

func intPtr(v int) *int { return &v }

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		sig  models.SignalExtraction
		meta models.Metadata
		want models.RiskScores
	}{
		{
			name: "nothing set",
			sig:  models.SignalExtraction{Topic: models.TopicOther, Intent: models.IntentOther},
			want: models.RiskScores{},
		},
		{
			name: "virality increments add up",
			sig:  models.SignalExtraction{Signals: models.Flags{ViralityThreat: true}},
			meta: models.Metadata{FollowerCount: intPtr(50000), Engagement5Min: intPtr(20)},
			want: models.RiskScores{Virality: 80},
		},
		{
			name: "below thresholds",
			sig:  models.SignalExtraction{},
			meta: models.Metadata{FollowerCount: intPtr(49999), Engagement5Min: intPtr(19)},
			want: models.RiskScores{},
		},
		{
			name: "cancellation",
			sig:  models.SignalExtraction{Intent: models.IntentCancellationThreat},
			want: models.RiskScores{Churn: 50},
		},
		{
			name: "legal threat and compliance flag count once",
			sig:  models.SignalExtraction{Intent: models.IntentLegalThreat, Signals: models.Flags{ComplianceSensitive: true}},
			want: models.RiskScores{Compliance: 70},
		},
		{
			name: "outage",
			sig:  models.SignalExtraction{Topic: models.TopicOutage},
			want: models.RiskScores{Operational: 60},
		},
		{
			name: "bug touching payments",
			sig:  models.SignalExtraction{Topic: models.TopicBug, Intent: models.IntentBugReport, Summary: "Balance shows the wrong Payment amount"},
			want: models.RiskScores{Operational: 80, Financial: 30},
		},
		{
			name: "billing refund",
			sig:  models.SignalExtraction{Topic: models.TopicBilling, Intent: models.IntentRefundRequest},
			want: models.RiskScores{Financial: 40},
		},
		{
			name: "billing reported as bug",
			sig:  models.SignalExtraction{Topic: models.TopicBilling, Intent: models.IntentBugReport},
			want: models.RiskScores{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoring.Score(tt.sig, tt.meta))
		})
	}
}

func TestScore_Bounded(t *testing.T) {
	sig := models.SignalExtraction{
		Topic:   models.TopicBug,
		Intent:  models.IntentLegalThreat,
		Summary: "bill charge payment balance",
		Signals: models.Flags{ViralityThreat: true, ComplianceSensitive: true},
	}
	meta := models.Metadata{FollowerCount: intPtr(1 << 30), Engagement5Min: intPtr(1 << 30)}

	got := scoring.Score(sig, meta)
	for _, v := range []int{got.Virality, got.Churn, got.Compliance, got.Financial, got.Operational} {
		assert.GreaterOrEqual(t, v, 0)
		assert.LessOrEqual(t, v, 100)
	}
}

func TestPriority(t *testing.T) {
	tests := []struct {
		max  int
		want models.Priority
	}{
		{100, models.PriorityP0},
		{80, models.PriorityP0},
		{79, models.PriorityP1},
		{60, models.PriorityP1},
		{59, models.PriorityP2},
		{30, models.PriorityP2},
		{29, models.PriorityP3},
		{0, models.PriorityP3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scoring.Priority(models.RiskScores{Financial: tt.max}), "max=%d", tt.max)
	}
	assert.Equal(t, models.PriorityP0, scoring.Priority(models.RiskScores{Churn: 10, Operational: 85}))
}
