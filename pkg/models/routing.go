package models

// RiskScores are five independent severity estimates, each in [0,100].
type RiskScores struct {
	Virality    int `json:"virality"`
	Churn       int `json:"churn"`
	Compliance  int `json:"compliance"`
	Financial   int `json:"financial"`
	Operational int `json:"operational"`
}

// Max returns the highest dimension.
func (r RiskScores) Max() int {
	m := r.Virality
	for _, v := range []int{r.Churn, r.Compliance, r.Financial, r.Operational} {
		if v > m {
			m = v
		}
	}
	return m
}

// Team is a member of the fixed responder roster.
type Team string

const (
	TeamHR              Team = "HR"
	TeamCustomerService Team = "Customer Service"
	TeamDevelopmentIT   Team = "Development / IT"
	TeamFinance         Team = "Finance"
	TeamProduct         Team = "Product"
	TeamMarketing       Team = "Marketing"
	TeamManagement      Team = "Management"
	TeamLegal           Team = "Legal"
)

// Roster is the closed set of teams a record may be routed or copied to.
var Roster = []Team{
	TeamHR, TeamCustomerService, TeamDevelopmentIT, TeamFinance,
	TeamProduct, TeamMarketing, TeamManagement, TeamLegal,
}

func (t Team) Valid() bool {
	switch t {
	case TeamHR, TeamCustomerService, TeamDevelopmentIT, TeamFinance,
		TeamProduct, TeamMarketing, TeamManagement, TeamLegal:
		return true
	}
	return false
}

// Priority is the handling tier, P0 highest.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

// RoutingDecision names who owns an incident and who is kept informed.
type RoutingDecision struct {
	PrimaryTeam Team     `json:"primary_team"`
	Watchers    []Team   `json:"watchers"`
	Priority    Priority `json:"priority"`
}

// Snippet is one retrieval result from either corpus.
type Snippet struct {
	Text      string  `json:"text"`
	Team      Team    `json:"team,omitempty"`
	Source    string  `json:"source"`
	EventID   string  `json:"event_id,omitempty"`
	ChunkID   string  `json:"chunk_id,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	ThreadID  string  `json:"thread_id,omitempty"`
	Score     float64 `json:"score"`
}
