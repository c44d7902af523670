package models

// IncidentCluster groups incidents in a batch that share a topic and intent.
type IncidentCluster struct {
	Fingerprint     string   `json:"fingerprint"`
	Topic           Topic    `json:"topic"`
	Intent          Intent   `json:"intent"`
	Size            int      `json:"size"`
	EventIDs        []string `json:"event_ids"`
	CommonKeywords  []string `json:"common_keywords"`
	AffectedTeams   []Team   `json:"affected_teams"`
	HighestPriority Priority `json:"highest_priority"`
}

// BatchAnalysis summarises the records produced by one batch run.
type BatchAnalysis struct {
	TotalIncidents      int                  `json:"total_incidents"`
	Processed           int                  `json:"processed"`
	Failed              int                  `json:"failed"`
	PriorityBreakdown   map[Priority]int     `json:"priority_breakdown"`
	CategoryBreakdown   map[Topic]int        `json:"category_breakdown"`
	StatusBreakdown     map[RecordStatus]int `json:"status_breakdown"`
	Clusters            []IncidentCluster    `json:"clusters"`
	AverageRisk         map[string]float64   `json:"average_risk"`
	HighestRiskEventIDs []string             `json:"highest_risk_event_ids"`
	TeamAlerts          map[Team]int         `json:"team_alerts"`
	GuardrailViolations int                  `json:"guardrail_violations"`
	FallbackRecords     int                  `json:"fallback_records"`
}
