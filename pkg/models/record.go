package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Briefing is the grounded narrative prepared for a human responder.
type Briefing struct {
	SituationBackground    string   `json:"situation_background"`
	CustomerContext        string   `json:"customer_context"`
	EvidenceAnalysis       []string `json:"evidence_analysis"`
	RelevantPolicyExcerpts []string `json:"relevant_policy_excerpts"`
	SimilarCases           []string `json:"similar_cases"`
	KeyConsiderations      []string `json:"key_considerations"`
	DoNotDo                []string `json:"do_not_do"`
	EscalateIf             []string `json:"escalate_if"`
}

// ReviewText joins every generated field except the do-not list, which names
// the very commitments it forbids.
func (b Briefing) ReviewText() string {
	parts := []string{b.SituationBackground, b.CustomerContext}
	for _, group := range [][]string{
		b.EvidenceAnalysis, b.RelevantPolicyExcerpts, b.SimilarCases,
		b.KeyConsiderations, b.EscalateIf,
	} {
		parts = append(parts, group...)
	}
	return strings.Join(parts, "\n")
}

// FullText joins every field of the briefing.
func (b Briefing) FullText() string {
	return strings.Join(append([]string{b.ReviewText()}, b.DoNotDo...), "\n")
}

// Citations records which sources a briefing actually used.
type Citations struct {
	EvidenceSources    []string `json:"evidence_sources"`
	PlaybookReferences []string `json:"playbook_references"`
}

// BriefingOutput pairs a briefing with its citation map.
type BriefingOutput struct {
	Briefing  Briefing  `json:"briefing"`
	Citations Citations `json:"citations"`
}

// GuardrailResult is the release verdict. Issues are kept in discovery order.
type GuardrailResult struct {
	Passed bool     `json:"passed"`
	Issues []string `json:"issues"`
}

// RecordStatus is pending while a record is assembled, then ready or blocked.
type RecordStatus string

const (
	RecordStatusPending RecordStatus = "pending"
	RecordStatusReady   RecordStatus = "ready"
	RecordStatusBlocked RecordStatus = "blocked"
)

func (s RecordStatus) Valid() bool {
	switch s {
	case RecordStatusPending, RecordStatusReady, RecordStatusBlocked:
		return true
	}
	return false
}

const (
	SourceModel     = "model"
	SourceHeuristic = "heuristic"
)

// StageProvenance records whether a generative stage used the model or fell
// back to its deterministic substitute, and why.
type StageProvenance struct {
	Stage    string `json:"stage"`
	Source   string `json:"source"`
	Model    string `json:"model,omitempty"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason,omitempty"`
}

// Record is the final triage artifact for one incident. It is created once by
// the pipeline and immutable thereafter.
type Record struct {
	ID         uuid.UUID         `json:"id"`
	Incident   Incident          `json:"incident"`
	Signals    SignalExtraction  `json:"signals"`
	RiskScores RiskScores        `json:"risk_scores"`
	Routing    RoutingDecision   `json:"routing"`
	Briefing   BriefingOutput    `json:"briefing"`
	Guardrails GuardrailResult   `json:"guardrails"`
	Status     RecordStatus      `json:"status"`
	Provenance []StageProvenance `json:"provenance"`
	CreatedAt  time.Time         `json:"created_at"`
}

// FellBack reports whether any stage used its heuristic substitute.
func (r *Record) FellBack() bool {
	for _, p := range r.Provenance {
		if p.Source == SourceHeuristic {
			return true
		}
	}
	return false
}
