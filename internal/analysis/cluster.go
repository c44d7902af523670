// Package analysis summarises a batch of triage records: breakdowns, risk
// averages, and clusters of incidents that share a classification.
package analysis

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

const maxCommonKeywords = 5

// Normalization regexes compiled once at package init.
var (
	reDatetime   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?`)
	reUUID       = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	reURL        = regexp.MustCompile(`(?i)https?://\S+`)
	reEmail      = regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
	reNumber     = regexp.MustCompile(`[+$€£]?\d[\d,.]*`)
	rePunct      = regexp.MustCompile(`[^\p{L}\s]+`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`about after again also been before being could does doing from have
		having here into just like more most much only other over same some such than that their them
		then there these they this those through very want what when where which while will with would
		your yours please still since because`) {
		stopwords[w] = struct{}{}
	}
}

// Cluster groups records by topic and intent. Clusters are sorted by size,
// then by highest priority, then by fingerprint so output is deterministic.
// Returns empty slice for empty input (never nil).
func Cluster(records []models.Record) []models.IncidentCluster {
	if len(records) == 0 {
		return []models.IncidentCluster{}
	}

	type clusterState struct {
		cluster models.IncidentCluster
		texts   []string
	}

	groups := make(map[string]*clusterState)
	var order []string
	for _, r := range records {
		fp := Fingerprint(r.Signals.Topic, r.Signals.Intent)
		cs, exists := groups[fp]
		if !exists {
			cs = &clusterState{cluster: models.IncidentCluster{
				Fingerprint:     fp,
				Topic:           r.Signals.Topic,
				Intent:          r.Signals.Intent,
				HighestPriority: r.Routing.Priority,
				EventIDs:        []string{},
				AffectedTeams:   []models.Team{},
			}}
			groups[fp] = cs
			order = append(order, fp)
		}

		c := &cs.cluster
		c.Size++
		c.EventIDs = append(c.EventIDs, r.Incident.EventID)
		if !containsTeam(c.AffectedTeams, r.Routing.PrimaryTeam) {
			c.AffectedTeams = append(c.AffectedTeams, r.Routing.PrimaryTeam)
		}
		if PrioritySeverity(r.Routing.Priority) > PrioritySeverity(c.HighestPriority) {
			c.HighestPriority = r.Routing.Priority
		}
		cs.texts = append(cs.texts, r.Incident.Text)
	}

	clusters := make([]models.IncidentCluster, 0, len(groups))
	for _, fp := range order {
		cs := groups[fp]
		cs.cluster.CommonKeywords = CommonKeywords(cs.texts)
		clusters = append(clusters, cs.cluster)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].Size != clusters[j].Size {
			return clusters[i].Size > clusters[j].Size
		}
		pi, pj := PrioritySeverity(clusters[i].HighestPriority), PrioritySeverity(clusters[j].HighestPriority)
		if pi != pj {
			return pi > pj
		}
		return clusters[i].Fingerprint < clusters[j].Fingerprint
	})

	return clusters
}

// Fingerprint computes a stable SHA-256 fingerprint for a classification.
func Fingerprint(topic models.Topic, intent models.Intent) string {
	hash := sha256.Sum256([]byte(string(topic) + "|" + string(intent)))
	return fmt.Sprintf("%x", hash)
}

// CommonKeywords returns up to five terms shared by at least half of texts
// (and by two or more when there are several), most widespread first. A
// single text yields its most frequent terms.
func CommonKeywords(texts []string) []string {
	if len(texts) == 0 {
		return []string{}
	}

	docFreq := make(map[string]int)
	termFreq := make(map[string]int)
	for _, t := range texts {
		seen := make(map[string]bool)
		for _, w := range strings.Fields(NormalizeText(t)) {
			if utf8.RuneCountInString(w) < 4 {
				continue
			}
			if _, stop := stopwords[w]; stop {
				continue
			}
			termFreq[w]++
			if !seen[w] {
				seen[w] = true
				docFreq[w]++
			}
		}
	}

	minDocs := (len(texts) + 1) / 2
	if len(texts) > 1 {
		minDocs = max(minDocs, 2)
	}
	var terms []string
	for w, n := range docFreq {
		if n >= minDocs {
			terms = append(terms, w)
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		a, b := terms[i], terms[j]
		if docFreq[a] != docFreq[b] {
			return docFreq[a] > docFreq[b]
		}
		if termFreq[a] != termFreq[b] {
			return termFreq[a] > termFreq[b]
		}
		return a < b
	})
	if len(terms) > maxCommonKeywords {
		terms = terms[:maxCommonKeywords]
	}
	if terms == nil {
		terms = []string{}
	}
	return terms
}

// NormalizeText strips identifiers, numbers and punctuation that vary
// between otherwise similar incidents.
func NormalizeText(text string) string {
	text = reURL.ReplaceAllString(text, " ")
	text = reEmail.ReplaceAllString(text, " ")
	text = reDatetime.ReplaceAllString(text, " ")
	text = reUUID.ReplaceAllString(text, " ")
	text = reNumber.ReplaceAllString(text, " ")
	text = rePunct.ReplaceAllString(text, " ")
	text = reWhitespace.ReplaceAllString(text, " ")
	text = strings.ToLower(text)
	text = strings.TrimSpace(text)
	text = truncateString(text, 2000)
	return text
}

// PrioritySeverity maps a priority to a numeric severity, P0 highest.
func PrioritySeverity(p models.Priority) int {
	switch p {
	case models.PriorityP0:
		return 3
	case models.PriorityP1:
		return 2
	case models.PriorityP2:
		return 1
	default:
		return 0
	}
}

func containsTeam(teams []models.Team, t models.Team) bool {
	for _, x := range teams {
		if x == t {
			return true
		}
	}
	return false
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
