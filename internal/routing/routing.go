// Package routing assigns an owning team, watchers and priority to a scored
// incident.
package routing

import (
	"slices"

	"github.com/kiranshivaraju/incidentradar/internal/scoring"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

const (
	complianceThreshold = 60
	viralityThreshold   = 60
)

// Route walks a fixed priority ladder; the first matching rung decides the
// primary team. Watchers never include the primary team or anyone off the
// roster.
func Route(s models.SignalExtraction, r models.RiskScores) models.RoutingDecision {
	var (
		primary  models.Team
		watchers []models.Team
	)
	switch {
	case r.Compliance >= complianceThreshold || s.Intent == models.IntentLegalThreat:
		primary, watchers = models.TeamLegal, []models.Team{models.TeamManagement}
	case s.Topic == models.TopicBug || s.Intent == models.IntentBugReport:
		primary, watchers = models.TeamDevelopmentIT, []models.Team{models.TeamProduct, models.TeamCustomerService}
	case s.Topic == models.TopicOutage || s.Topic == models.TopicAccount:
		primary, watchers = models.TeamDevelopmentIT, []models.Team{models.TeamCustomerService}
	case s.Topic == models.TopicBilling:
		primary, watchers = models.TeamFinance, []models.Team{models.TeamCustomerService}
	case r.Virality >= viralityThreshold:
		primary, watchers = models.TeamMarketing, []models.Team{models.TeamLegal, models.TeamManagement}
	default:
		primary = models.TeamCustomerService
	}

	return models.RoutingDecision{
		PrimaryTeam: primary,
		Watchers:    filterWatchers(primary, watchers),
		Priority:    scoring.Priority(r),
	}
}

func filterWatchers(primary models.Team, watchers []models.Team) []models.Team {
	out := make([]models.Team, 0, len(watchers))
	for _, w := range watchers {
		if w == primary || !w.Valid() || slices.Contains(out, w) {
			continue
		}
		out = append(out, w)
	}
	return out
}
