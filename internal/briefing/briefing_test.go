package briefing_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/incidentradar/internal/ai"
	"github.com/kiranshivaraju/incidentradar/internal/ai/mock"
	"github.com/kiranshivaraju/incidentradar/internal/briefing"
	"github.com/kiranshivaraju/incidentradar/internal/guardrail"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

func sampleInput() briefing.Input {
	return briefing.Input{
		Routing: models.RoutingDecision{
			PrimaryTeam: models.TeamLegal,
			Watchers:    []models.Team{models.TeamManagement},
			Priority:    models.PriorityP1,
		},
		Scores: models.RiskScores{Virality: 30, Compliance: 70, Financial: 25},
		Signals: models.SignalExtraction{
			Topic:     models.TopicBilling,
			Intent:    models.IntentLegalThreat,
			Sentiment: models.SentimentNegative,
			Urgency:   models.UrgencyHigh,
			Summary:   "Customer disputes an unauthorized charge.",
			Evidence: []models.EvidenceQuote{
				{Source: "email", Timestamp: "2025-02-01T09:00:00Z", Quote: "unauthorized charge on my card"},
				{Source: "chat", Quote: "second quote"},
			},
		},
		Playbooks: []models.Snippet{
			{ChunkID: "Legal_0", Source: "Legal.md", Team: models.TeamLegal, Text: "Route all litigation threats to counsel within 24 hours."},
			{ChunkID: "Legal_1", Source: "Legal.md", Team: models.TeamLegal, Text: "second chunk"},
		},
		Similar: []models.Snippet{
			{EventID: "e1"}, {EventID: ""}, {EventID: "e2"}, {EventID: "e3"}, {EventID: "e4"}, {EventID: "e5"}, {EventID: "e6"},
		},
	}
}

func TestTemplate(t *testing.T) {
	out := briefing.Template(sampleInput())
	b := out.Briefing

	assert.Equal(t,
		"This billing case has been routed to Legal with P1 priority. "+
			"Customer sentiment appears negative with high urgency. "+
			"Risk profile: virality=30, churn=0, compliance=70, financial=25, operational=0.",
		b.SituationBackground)
	assert.Equal(t, "Customer disputes an unauthorized charge.", b.CustomerContext)
	assert.Equal(t, []string{"[email, 2025-02-01T09:00:00Z] unauthorized charge on my card"}, b.EvidenceAnalysis)
	assert.Equal(t, []string{"Route all litigation threats to counsel within 24 hours."}, b.RelevantPolicyExcerpts)
	assert.Equal(t, []string{"e1", "e2", "e3", "e4", "e5"}, b.SimilarCases)
	assert.Contains(t, b.KeyConsiderations, "Watchers: Management")
	assert.NotEmpty(t, b.DoNotDo)
	assert.NotEmpty(t, b.EscalateIf)

	assert.Equal(t, models.Citations{
		EvidenceSources:    []string{"email"},
		PlaybookReferences: []string{"Legal_0"},
	}, out.Citations)
}

func TestTemplate_AvoidsCommitmentsOutsideDoNotDo(t *testing.T) {
	in := sampleInput()
	in.Routing.Watchers = []models.Team{models.TeamCustomerService, models.TeamDevelopmentIT, models.TeamFinance}
	in.Similar = nil

	b := briefing.Template(in).Briefing
	assert.Empty(t, guardrail.ForbiddenIn(b.ReviewText()))
	assert.NotEmpty(t, guardrail.ForbiddenIn(strings.Join(b.DoNotDo, " ")), "the do-not list names what it forbids")
}

func TestTemplate_NoSimilarOrPlaybooks(t *testing.T) {
	in := sampleInput()
	in.Similar = nil
	in.Playbooks = nil
	in.Routing.Watchers = nil

	out := briefing.Template(in)
	assert.Equal(t, []string{"No similar historical events found"}, out.Briefing.SimilarCases)
	assert.Empty(t, out.Briefing.RelevantPolicyExcerpts)
	assert.Empty(t, out.Citations.PlaybookReferences)
	assert.Contains(t, out.Briefing.KeyConsiderations, "Watchers: None")
}

func TestGenerate_ModelPath(t *testing.T) {
	reply := `{"briefing":{"situation_background":"Legal owns this case.","customer_context":"ctx",
"evidence_analysis":["[email] unauthorized charge on my card"],"do_not_do":["Do not speculate"]},
"citations":{"evidence_sources":["email"],"playbook_references":["Legal_0"]}}`
	client := mock.NewScriptedClient(reply)

	res, err := briefing.Generate(context.Background(), client, ai.Options{}, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, models.SourceModel, res.Provenance.Source)
	assert.Equal(t, briefing.Stage, res.Provenance.Stage)
	assert.Equal(t, "Legal owns this case.", res.Value.Briefing.SituationBackground)
	assert.Equal(t, []string{"Legal_0"}, res.Value.Citations.PlaybookReferences)

	prompt := client.LastMessages()[1].Content
	assert.Contains(t, prompt, "Route all litigation threats")
	assert.Contains(t, prompt, "e1, e2, e3, e4, e5")
}

func TestGenerate_DropsCitationsNotSupplied(t *testing.T) {
	reply := `{"briefing":{"situation_background":"Legal owns this case.",
"evidence_analysis":["[email] unauthorized charge on my card"],"do_not_do":["Do not speculate"]},
"citations":{"evidence_sources":["fax-archive","email","chat","email"],
"playbook_references":["Nonexistent_99","Legal.md","Legal_1"]}}`

	res, err := briefing.Generate(context.Background(), mock.NewScriptedClient(reply), ai.Options{}, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, models.SourceModel, res.Provenance.Source)
	assert.Equal(t, models.Citations{
		EvidenceSources:    []string{"email", "chat"},
		PlaybookReferences: []string{"Legal.md", "Legal_1"},
	}, res.Value.Citations)
}

func TestGenerate_UngroundedEvidenceFallsBack(t *testing.T) {
	reply := `{"briefing":{"situation_background":"Legal owns this case.",
"evidence_analysis":["[fax] a quote"],"do_not_do":["Do not speculate"]},
"citations":{"evidence_sources":["fax-archive"],"playbook_references":["Nonexistent_99"]}}`
	client := mock.NewScriptedClient(reply)

	res, err := briefing.Generate(context.Background(), client, ai.Options{}, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, models.SourceHeuristic, res.Provenance.Source)
	assert.Contains(t, res.Provenance.Reason, "cites no supplied evidence source")
	assert.Equal(t, briefing.Template(sampleInput()), res.Value)
}

func TestGenerate_IncompleteFallsBack(t *testing.T) {
	client := mock.NewScriptedClient(`{"briefing":{"situation_background":"","evidence_analysis":[]}}`)

	res, err := briefing.Generate(context.Background(), client, ai.Options{Retries: 2}, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, 3, client.Calls())
	assert.Equal(t, models.SourceHeuristic, res.Provenance.Source)
	assert.Equal(t, briefing.Template(sampleInput()), res.Value)
}

func TestGenerate_StrictFailure(t *testing.T) {
	_, err := briefing.Generate(context.Background(), mock.NewScriptedClient("not json"), ai.Options{Strict: true}, sampleInput())
	assert.ErrorIs(t, err, ai.ErrStrictFallback)
}
