package analysis

import (
	"math"
	"sort"

	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

const maxHighestRisk = 5

// Summarize aggregates the records of one batch. failed counts incidents
// that produced no record.
func Summarize(records []models.Record, failed int) models.BatchAnalysis {
	out := models.BatchAnalysis{
		TotalIncidents:      len(records) + failed,
		Processed:           len(records),
		Failed:              failed,
		PriorityBreakdown:   make(map[models.Priority]int),
		CategoryBreakdown:   make(map[models.Topic]int),
		StatusBreakdown:     make(map[models.RecordStatus]int),
		Clusters:            Cluster(records),
		AverageRisk:         make(map[string]float64),
		HighestRiskEventIDs: []string{},
		TeamAlerts:          make(map[models.Team]int),
	}

	var sums [5]int
	for _, r := range records {
		out.PriorityBreakdown[r.Routing.Priority]++
		out.CategoryBreakdown[r.Signals.Topic]++
		out.StatusBreakdown[r.Status]++

		out.TeamAlerts[r.Routing.PrimaryTeam]++
		for _, w := range r.Routing.Watchers {
			out.TeamAlerts[w]++
		}
		if !r.Guardrails.Passed {
			out.GuardrailViolations++
		}
		if r.FellBack() {
			out.FallbackRecords++
		}

		s := r.RiskScores
		for i, v := range []int{s.Virality, s.Churn, s.Compliance, s.Financial, s.Operational} {
			sums[i] += v
		}
	}

	for i, name := range []string{"virality", "churn", "compliance", "financial", "operational"} {
		if len(records) == 0 {
			out.AverageRisk[name] = 0
			continue
		}
		out.AverageRisk[name] = math.Round(float64(sums[i])/float64(len(records))*100) / 100
	}

	ranked := make([]models.Record, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RiskScores.Max() > ranked[j].RiskScores.Max()
	})
	for i := 0; i < len(ranked) && i < maxHighestRisk; i++ {
		out.HighestRiskEventIDs = append(out.HighestRiskEventIDs, ranked[i].Incident.EventID)
	}

	return out
}
