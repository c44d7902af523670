package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

// Keyword ranks entries by the number of distinct whitespace tokens they share
// with the query. Entries with no shared token are never returned, so a
// search may yield fewer than k results.
type Keyword struct {
	incidents []keywordEntry
	playbooks []keywordEntry
}

type keywordEntry struct {
	snippet models.Snippet
	tokens  map[string]struct{}
}

// NewKeyword indexes both corpora for overlap ranking.
func NewKeyword(incidents, playbooks []models.Snippet) *Keyword {
	return &Keyword{incidents: tokenizeAll(incidents), playbooks: tokenizeAll(playbooks)}
}

func (k *Keyword) Backend() string { return BackendKeyword }

func (k *Keyword) SearchIncidents(_ context.Context, query string, n int) ([]models.Snippet, error) {
	return rankKeyword(query, k.incidents, "", n), nil
}

func (k *Keyword) SearchPlaybooks(_ context.Context, query string, team models.Team, n int) ([]models.Snippet, error) {
	return rankKeyword(query, k.playbooks, team, n), nil
}

func rankKeyword(query string, entries []keywordEntry, team models.Team, n int) []models.Snippet {
	if n <= 0 {
		return nil
	}
	q := tokenSet(query)
	if len(q) == 0 {
		return nil
	}

	type scored struct {
		score int
		entry *keywordEntry
	}
	var hits []scored
	for i := range entries {
		e := &entries[i]
		if team != "" && e.snippet.Team != team {
			continue
		}
		s := 0
		for tok := range q {
			if _, ok := e.tokens[tok]; ok {
				s++
			}
		}
		if s > 0 {
			hits = append(hits, scored{score: s, entry: e})
		}
	}

	// Stable: ties keep corpus order.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > n {
		hits = hits[:n]
	}

	out := make([]models.Snippet, len(hits))
	for i, h := range hits {
		out[i] = h.entry.snippet
		out[i].Score = float64(h.score)
	}
	return out
}

func tokenizeAll(snippets []models.Snippet) []keywordEntry {
	out := make([]keywordEntry, len(snippets))
	for i, s := range snippets {
		out[i] = keywordEntry{snippet: s, tokens: tokenSet(s.Text)}
	}
	return out
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

var _ Retriever = (*Keyword)(nil)
