// Package scoring turns extracted signals and channel metadata into bounded
// risk scores and a priority tier.
package scoring

import (
	"strings"

	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

const (
	highReachFollowers = 50000
	highEngagement     = 20
)

var financialBugTerms = []string{"balance", "payment", "charge", "bill"}

// Score is pure: the same signals and metadata always yield the same scores.
// Increments within a dimension add up; each dimension is clamped to [0,100]
// on its own.
func Score(s models.SignalExtraction, meta models.Metadata) models.RiskScores {
	var r models.RiskScores

	if s.Signals.ViralityThreat {
		r.Virality += 40
	}
	if meta.Followers() >= highReachFollowers {
		r.Virality += 30
	}
	if meta.Engagement() >= highEngagement {
		r.Virality += 10
	}

	if s.Intent == models.IntentCancellationThreat {
		r.Churn += 50
	}

	if s.Intent == models.IntentLegalThreat || s.Signals.ComplianceSensitive {
		r.Compliance += 70
	}

	switch s.Topic {
	case models.TopicBug, models.TopicOutage, models.TopicAccount:
		r.Operational += 60
	}
	if s.Topic == models.TopicBug && mentionsAny(s.Summary, financialBugTerms) {
		r.Operational += 20
		r.Financial += 30
	}

	if s.Topic == models.TopicBilling && s.Intent != models.IntentBugReport {
		r.Financial += 25
	}
	if s.Intent == models.IntentRefundRequest {
		r.Financial += 15
	}

	return models.RiskScores{
		Virality:    clamp(r.Virality),
		Churn:       clamp(r.Churn),
		Compliance:  clamp(r.Compliance),
		Financial:   clamp(r.Financial),
		Operational: clamp(r.Operational),
	}
}

// Priority tiers the highest risk dimension: >=80 P0, >=60 P1, >=30 P2, else P3.
func Priority(r models.RiskScores) models.Priority {
	switch m := r.Max(); {
	case m >= 80:
		return models.PriorityP0
	case m >= 60:
		return models.PriorityP1
	case m >= 30:
		return models.PriorityP2
	default:
		return models.PriorityP3
	}
}

func mentionsAny(text string, terms []string) bool {
	text = strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func clamp(v int) int {
	return max(0, min(100, v))
}
