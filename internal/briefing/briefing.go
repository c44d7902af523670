// Package briefing prepares the grounded narrative a human responder reads
// before acting on an incident.
package briefing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/incidentradar/internal/ai"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

const (
	Stage = "briefing"

	maxSimilarCases = 5
	noSimilarCases  = "No similar historical events found"
)

var (
	errIncomplete = errors.New("briefing missing situation background or evidence analysis")
	errUncited    = errors.New("briefing cites no supplied evidence source")
)

// Input is everything the briefing may draw on. Playbooks and Similar come
// from retrieval and may be empty.
type Input struct {
	Routing   models.RoutingDecision
	Scores    models.RiskScores
	Signals   models.SignalExtraction
	Playbooks []models.Snippet
	Similar   []models.Snippet
}

// Generate asks client for a briefing and falls back to Template when the
// call is disabled or its output is unusable.
func Generate(ctx context.Context, client models.ChatClient, opts ai.Options, in Input) (ai.Result[models.BriefingOutput], error) {
	opts.Stage = Stage
	validate := func(out *models.BriefingOutput) error {
		if strings.TrimSpace(out.Briefing.SituationBackground) == "" || len(out.Briefing.EvidenceAnalysis) == 0 {
			return errIncomplete
		}
		out.Citations = groundCitations(out.Citations, in)
		if len(out.Citations.EvidenceSources) == 0 {
			return errUncited
		}
		return nil
	}
	return ai.Generate(ctx, client, buildMessages(in), opts, validate,
		func() models.BriefingOutput { return Template(in) })
}

// Template assembles a briefing from routing and risk facts alone.
func Template(in Input) models.BriefingOutput {
	r, s, sig := in.Routing, in.Scores, in.Signals

	b := models.Briefing{
		SituationBackground: fmt.Sprintf(
			"This %s case has been routed to %s with %s priority. "+
				"Customer sentiment appears %s with %s urgency. "+
				"Risk profile: virality=%d, churn=%d, compliance=%d, financial=%d, operational=%d.",
			sig.Topic, r.PrimaryTeam, r.Priority, sig.Sentiment, sig.Urgency,
			s.Virality, s.Churn, s.Compliance, s.Financial, s.Operational),
		CustomerContext: sig.Summary,
		SimilarCases:    similarCaseIDs(in.Similar),
		KeyConsiderations: []string{
			fmt.Sprintf("Case routed to %s based on %s topic", r.PrimaryTeam, sig.Topic),
			fmt.Sprintf("Priority set to %s due to risk factors", r.Priority),
			"Watchers: " + watcherList(r.Watchers),
		},
		DoNotDo: []string{
			"Do not promise outcomes, refunds or compensation before the owning team has reviewed the case",
			"Do not admit fault or liability on behalf of the company",
			"Do not share account, contact or payment details in replies",
		},
		EscalateIf: []string{
			"The customer mentions legal action, a regulator or the press",
			"Further contacts arrive on the same thread",
			"The issue is reported by several customers at once",
		},
	}

	var cites models.Citations
	if len(sig.Evidence) > 0 {
		ev := sig.Evidence[0]
		b.EvidenceAnalysis = []string{formatEvidence(ev)}
		cites.EvidenceSources = []string{ev.Source}
	}
	if len(in.Playbooks) > 0 {
		pb := in.Playbooks[0]
		b.RelevantPolicyExcerpts = []string{pb.Text}
		cites.PlaybookReferences = []string{playbookRef(pb)}
	}
	return models.BriefingOutput{Briefing: b, Citations: cites}
}

// groundCitations keeps only the evidence sources and playbook references that
// were actually supplied, in the order the model listed them.
func groundCitations(c models.Citations, in Input) models.Citations {
	sources := make(map[string]bool)
	for _, ev := range in.Signals.Evidence {
		sources[ev.Source] = true
	}
	refs := make(map[string]bool)
	for _, pb := range in.Playbooks {
		if pb.ChunkID != "" {
			refs[pb.ChunkID] = true
		}
		if pb.Source != "" {
			refs[pb.Source] = true
		}
	}
	return models.Citations{
		EvidenceSources:    keepKnown(c.EvidenceSources, sources),
		PlaybookReferences: keepKnown(c.PlaybookReferences, refs),
	}
}

func keepKnown(ss []string, known map[string]bool) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if known[s] && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func similarCaseIDs(similar []models.Snippet) []string {
	var ids []string
	for _, s := range similar {
		if s.EventID == "" {
			continue
		}
		ids = append(ids, s.EventID)
		if len(ids) == maxSimilarCases {
			break
		}
	}
	if len(ids) == 0 {
		return []string{noSimilarCases}
	}
	return ids
}

func watcherList(teams []models.Team) string {
	if len(teams) == 0 {
		return "None"
	}
	names := make([]string, len(teams))
	for i, t := range teams {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func formatEvidence(ev models.EvidenceQuote) string {
	if ev.Timestamp == "" {
		return fmt.Sprintf("[%s] %s", ev.Source, ev.Quote)
	}
	return fmt.Sprintf("[%s, %s] %s", ev.Source, ev.Timestamp, ev.Quote)
}

func playbookRef(s models.Snippet) string {
	if s.ChunkID != "" {
		return s.ChunkID
	}
	return s.Source
}

const systemPrompt = `You write the background briefing an employee reads before handling a customer situation.
Give them the full context they need, grounded in the evidence provided.

Analysis required:
1. Check whether customer statements reveal policy violations (for example fees or interest above legal caps).
2. Compare customer claims against the regulatory constraints in the playbook excerpts.
3. State any discrepancy between what the customer says and what policy allows.
4. For bugs and technical issues, assess how widespread and urgent the impact may be.

Cite evidence quotes with their source. Do not invent facts, names, phone numbers or email addresses.
Do not make promises or admit fault on the company's behalf.
Return ONLY valid JSON.`

func buildMessages(in Input) []models.ChatMessage {
	routingJSON, _ := json.Marshal(in.Routing)
	scoresJSON, _ := json.Marshal(in.Scores)

	var b strings.Builder
	fmt.Fprintf(&b, "Routing decision:\n%s\n\nRisk scores:\n%s\n\n", routingJSON, scoresJSON)
	fmt.Fprintf(&b, "Signal summary:\n%s\n\nEvidence quotes:\n", in.Signals.Summary)
	for _, ev := range in.Signals.Evidence {
		b.WriteString(formatEvidence(ev))
		b.WriteString("\n")
	}
	b.WriteString("\nPlaybook excerpts (check for regulatory constraints):\n")
	if len(in.Playbooks) == 0 {
		b.WriteString("(none)\n")
	}
	for _, pb := range in.Playbooks {
		fmt.Fprintf(&b, "[%s] %s\n", playbookRef(pb), pb.Text)
	}

	similar := similarCaseIDs(in.Similar)
	similarJSON, _ := json.Marshal(similar)
	fmt.Fprintf(&b, "\nSimilar historical event IDs:\n%s\n\n", strings.Join(similar, ", "))

	b.WriteString("Analyze and return JSON:\n")
	fmt.Fprintf(&b, `{
  "briefing": {
    "situation_background": "Routing, priority and risk profile, and why (cite specific risk factors)",
    "customer_context": "What the customer is experiencing and claiming",
    "evidence_analysis": ["Direct quotes with sources supporting key claims"],
    "relevant_policy_excerpts": ["Key policies and constraints from the playbooks, including regulatory limits"],
    "similar_cases": %s,
    "key_considerations": ["Critical context: violations, compliance risks, escalation triggers"],
    "do_not_do": ["Actions the responder must avoid"],
    "escalate_if": ["Conditions that require escalation"]
  },
  "citations": {
    "evidence_sources": ["source1"],
    "playbook_references": ["playbook chunk id"]
  }
}`, similarJSON)

	return []models.ChatMessage{
		{Role: models.RoleSystem, Content: systemPrompt},
		{Role: models.RoleUser, Content: b.String()},
	}
}
