// Package guardrail decides whether a triage record is safe to release to a
// responder.
package guardrail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kiranshivaraju/incidentradar/internal/ai"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

const Stage = "guardrails"

// ForbiddenPhrases may not appear anywhere in a briefing outside its do-not
// list. Matching is a case-insensitive substring test.
var ForbiddenPhrases = []string{"guarantee", "promise", "admit", "fault", "refund", "chargeback"}

// ForbiddenIn returns the forbidden phrases found in text, in list order.
func ForbiddenIn(text string) []string {
	text = strings.ToLower(text)
	var found []string
	for _, p := range ForbiddenPhrases {
		if strings.Contains(text, p) {
			found = append(found, p)
		}
	}
	return found
}

var (
	emailPattern = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\b\+?\d[\d\s().-]{8,}\d\b`)
	// ISO dates and timestamps look like phone numbers to phonePattern.
	isoTimePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?`)
)

const (
	IssuePIIEmail         = "Potential PII detected in briefing: email address"
	IssuePIIPhone         = "Potential PII detected in briefing: phone number"
	IssueMissingCitations = "Missing evidence citations"
	IssueMissingDoNotDo   = "Missing do-not-do guidance"
	IssueSecondOpinion    = "Second-opinion review failed without stating a reason"
)

// Check runs the deterministic checks and returns issues in a fixed order.
func Check(rec *models.Record) []string {
	var issues []string
	b := rec.Briefing.Briefing

	for _, p := range ForbiddenIn(b.ReviewText()) {
		issues = append(issues, "Forbidden phrase detected: "+p)
	}

	full := b.FullText()
	if emailPattern.MatchString(full) {
		issues = append(issues, IssuePIIEmail)
	}
	if phonePattern.MatchString(isoTimePattern.ReplaceAllString(full, " ")) {
		issues = append(issues, IssuePIIPhone)
	}

	if len(nonEmpty(rec.Briefing.Citations.EvidenceSources)) == 0 {
		issues = append(issues, IssueMissingCitations)
	}
	if len(nonEmpty(b.DoNotDo)) == 0 {
		issues = append(issues, IssueMissingDoNotDo)
	}

	if !rec.Routing.PrimaryTeam.Valid() {
		issues = append(issues, fmt.Sprintf("Routing team not in allowed roster: %q", rec.Routing.PrimaryTeam))
	}
	for _, w := range rec.Routing.Watchers {
		if !w.Valid() {
			issues = append(issues, fmt.Sprintf("Watcher not in allowed roster: %q", w))
		}
	}
	return issues
}

type secondOpinion struct {
	Pass   *bool    `json:"pass"`
	Issues []string `json:"issues"`
}

var errNoVerdict = errors.New(`second opinion missing "pass"`)

// Verify combines the deterministic checks with an optional model review.
// Model issues are appended after the deterministic ones; the record passes
// only when no issue is found by either.
func Verify(ctx context.Context, client models.ChatClient, opts ai.Options, rec *models.Record) (ai.Result[models.GuardrailResult], error) {
	opts.Stage = Stage
	issues := Check(rec)

	validate := func(o *secondOpinion) error {
		if o.Pass == nil {
			return errNoVerdict
		}
		return nil
	}
	// Without a usable review the deterministic verdict stands alone.
	noReview := func() secondOpinion {
		pass := true
		return secondOpinion{Pass: &pass}
	}

	res, err := ai.Generate(ctx, client, buildMessages(rec), opts, validate, noReview)
	out := ai.Result[models.GuardrailResult]{Provenance: res.Provenance}
	if err != nil {
		return out, err
	}

	for _, issue := range res.Value.Issues {
		if strings.TrimSpace(issue) != "" {
			issues = append(issues, issue)
		}
	}
	if !*res.Value.Pass && len(nonEmpty(res.Value.Issues)) == 0 {
		issues = append(issues, IssueSecondOpinion)
	}

	out.Value = models.GuardrailResult{Passed: len(issues) == 0, Issues: issues}
	if out.Value.Issues == nil {
		out.Value.Issues = []string{}
	}
	return out, nil
}

const systemPrompt = `You are a safety and compliance validator for generated incident briefings.
Validate the record for:
1. Evidence grounding: every claim has supporting evidence with a source.
2. Policy alignment: the briefing is consistent with the cited playbooks.
3. Privacy and safety: no personal data exposure and no harmful content.
4. Ethical boundaries: no promises, guarantees or admissions of fault.
5. Explainability: citations and references are present.

Return JSON only: {"pass": true, "issues": ["issue1", "issue2"]}.
Set pass to false if any validation fails.`

func buildMessages(rec *models.Record) []models.ChatMessage {
	body, _ := json.MarshalIndent(struct {
		Incident models.Incident         `json:"incident"`
		Signals  models.SignalExtraction `json:"signals"`
		Scores   models.RiskScores       `json:"risk_scores"`
		Routing  models.RoutingDecision  `json:"routing"`
		Briefing models.BriefingOutput   `json:"briefing"`
	}{rec.Incident, rec.Signals, rec.RiskScores, rec.Routing, rec.Briefing}, "", "  ")

	return []models.ChatMessage{
		{Role: models.RoleSystem, Content: systemPrompt},
		{Role: models.RoleUser, Content: string(body)},
	}
}

func nonEmpty(ss []string) []string {
	var out []string
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
