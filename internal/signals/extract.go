// Package signals classifies an incident into topic, intent, sentiment,
// urgency and risk flags, with verbatim evidence backing the call.
package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/incidentradar/internal/ai"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

const Stage = "signals"

// Extract asks client for a classification and falls back to Heuristic when
// the call is disabled or yields nothing usable. Quotes the model cannot
// ground in the incident or its context snippets are dropped.
func Extract(
	ctx context.Context,
	client models.ChatClient,
	opts ai.Options,
	inc models.Incident,
	snippets []models.Snippet,
	policy string,
) (ai.Result[models.SignalExtraction], error) {
	opts.Stage = Stage
	sources := make([]string, 0, len(snippets)+1)
	sources = append(sources, inc.Text)
	for _, s := range snippets {
		sources = append(sources, s.Text)
	}

	validate := func(s *models.SignalExtraction) error {
		if err := s.Validate(); err != nil {
			return err
		}
		s.Evidence = groundedEvidence(s.Evidence, sources)
		if len(s.Evidence) == 0 {
			return fmt.Errorf("%w: no evidence quote found in the source texts", models.ErrInvalidSignals)
		}
		s.Signals = s.Signals.Or(MetadataFlags(inc.Metadata))
		return nil
	}

	return ai.Generate(ctx, client, buildMessages(inc, snippets, policy), opts, validate,
		func() models.SignalExtraction { return Heuristic(inc) })
}

func groundedEvidence(quotes []models.EvidenceQuote, sources []string) []models.EvidenceQuote {
	norm := make([]string, len(sources))
	for i, s := range sources {
		norm[i] = normalize(s)
	}
	var out []models.EvidenceQuote
	for _, q := range quotes {
		nq := normalize(q.Quote)
		if nq == "" {
			continue
		}
		for _, src := range norm {
			if strings.Contains(src, nq) {
				out = append(out, q)
				break
			}
		}
	}
	return out
}

// normalize folds case, collapses whitespace and strips surrounding quote
// marks so that re-wrapped or re-quoted excerpts still match.
func normalize(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	return strings.Trim(s, "\"'“”‘’ ")
}

const systemPrompt = `You are an expert analyst extracting structured signals from customer incidents.
Classify the incident using exactly one value per field.

Topics:
- bug: software errors, incorrect displays, crashes, glitches, broken features
- billing: payment disputes, charges, invoices (NOT a bug that shows wrong amounts)
- outage: service down, offline, unavailable
- account: login, password, access issues
- fraud: scams, unauthorized transactions, stolen data
- policy: policy questions, compliance, legal matters
- service: general support requests
- other

Intents:
- bug_report: reporting a technical issue or malfunction
- legal_threat: mentions a lawyer, lawsuit or regulator
- cancellation_threat: threatening to leave or close the account
- refund_request: asking for money back
- complaint: general dissatisfaction
- information_request: asking questions
- other

Evidence quotes must be copied word for word from the incident text.
Return ONLY valid JSON matching the schema.`

const responseSchema = `{
  "topic": "bug|billing|outage|account|fraud|policy|service|other",
  "intent": "bug_report|complaint|refund_request|cancellation_threat|legal_threat|information_request|other",
  "sentiment": "positive|neutral|negative",
  "urgency": "low|medium|high",
  "signals": {
    "virality_threat": true,
    "repeat_contact": false,
    "high_reach": false,
    "compliance_sensitive": false
  },
  "evidence": [{"source": "email", "timestamp": "2026-01-31T10:05:00Z", "quote": "exact quote from incident"}],
  "summary": "One sentence summarizing the issue."
}`

func buildMessages(inc models.Incident, snippets []models.Snippet, policy string) []models.ChatMessage {
	incJSON, _ := json.MarshalIndent(inc, "", "  ")

	var b strings.Builder
	b.WriteString("Incident:\n")
	b.Write(incJSON)
	b.WriteString("\n\nSimilar historical events:\n")
	if len(snippets) == 0 {
		b.WriteString("(none)\n")
	}
	for _, s := range snippets {
		fmt.Fprintf(&b, "[%s] %s: %s\n", s.Source, s.Timestamp, s.Text)
	}
	b.WriteString("\nGlobal policy excerpt:\n")
	if strings.TrimSpace(policy) == "" {
		b.WriteString("(none)\n")
	} else {
		b.WriteString(policy)
		b.WriteString("\n")
	}
	b.WriteString("\nAnalyze the incident and return JSON:\n")
	b.WriteString(responseSchema)

	return []models.ChatMessage{
		{Role: models.RoleSystem, Content: systemPrompt},
		{Role: models.RoleUser, Content: b.String()},
	}
}
