package signals

import (
	"strings"

	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

// Heuristic classifies an incident with the embedded keyword rules. It never
// fails and is deterministic for a given incident.
func Heuristic(inc models.Incident) models.SignalExtraction {
	rs := loadRules()
	text := strings.ToLower(inc.Text)

	out := models.SignalExtraction{
		Topic:     models.Topic(orDefault(firstMatch(rs.Topic, text), string(models.TopicOther))),
		Intent:    models.Intent(orDefault(firstMatch(rs.Intent, text), string(models.IntentOther))),
		Sentiment: models.Sentiment(orDefault(firstMatch(rs.Sentiment, text), string(models.SentimentNeutral))),
		Urgency:   models.Urgency(orDefault(firstMatch(rs.Urgency, text), string(models.UrgencyLow))),
		Summary:   summarize(inc.Text, rs.SummaryWords),
		Evidence: []models.EvidenceQuote{{
			Source:    inc.Source,
			Timestamp: inc.Timestamp,
			Quote:     truncateRunes(inc.Text, rs.EvidenceChars),
		}},
	}

	meta := MetadataFlags(inc.Metadata)
	out.Signals = meta.Or(models.Flags{
		ViralityThreat:      meta.HighReach || containsAny(text, rs.Flags.ViralityThreat),
		RepeatContact:       containsAny(text, rs.Flags.RepeatContact),
		ComplianceSensitive: containsAny(text, rs.Flags.ComplianceSensitive),
	})
	return out
}

// MetadataFlags are the flags implied by channel metadata alone.
func MetadataFlags(m models.Metadata) models.Flags {
	return models.Flags{
		HighReach:     m.Followers() >= HighReachFollowers(),
		RepeatContact: m.IsRepeatContact(),
	}
}

func summarize(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.TrimRight(strings.Join(words[:n], " "), ".") + "..."
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
