package signals

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

type rule struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
	Unless   []string `yaml:"unless"`
}

type ruleSet struct {
	Topic     []rule `yaml:"topic"`
	Intent    []rule `yaml:"intent"`
	Sentiment []rule `yaml:"sentiment"`
	Urgency   []rule `yaml:"urgency"`
	Flags     struct {
		ViralityThreat      []string `yaml:"virality_threat"`
		RepeatContact       []string `yaml:"repeat_contact"`
		ComplianceSensitive []string `yaml:"compliance_sensitive"`
	} `yaml:"flags"`
	HighReachFollowers int `yaml:"high_reach_followers"`
	EvidenceChars      int `yaml:"evidence_chars"`
	SummaryWords       int `yaml:"summary_words"`
}

var loadRules = sync.OnceValue(func() *ruleSet {
	var rs ruleSet
	if err := yaml.Unmarshal(rulesYAML, &rs); err != nil {
		panic(fmt.Sprintf("load rules.yaml: %v", err))
	}
	return &rs
})

// HighReachFollowers is the follower count at which an author counts as high reach.
func HighReachFollowers() int { return loadRules().HighReachFollowers }

// firstMatch returns the label of the first rule whose keywords hit text and
// whose exclusions do not, or "" when none match. text must be lower-cased.
func firstMatch(rules []rule, text string) string {
	for _, r := range rules {
		if containsAny(text, r.Keywords) && !containsAny(text, r.Unless) {
			return r.Label
		}
	}
	return ""
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if hasWordPrefix(text, kw) {
			return true
		}
	}
	return false
}

// hasWordPrefix reports whether kw occurs in text starting at a word boundary.
func hasWordPrefix(text, kw string) bool {
	if kw == "" {
		return false
	}
	for off := 0; off < len(text); {
		i := strings.Index(text[off:], kw)
		if i < 0 {
			return false
		}
		at := off + i
		if at == 0 || !isWordRune(prevRune(text[:at])) {
			return true
		}
		off = at + 1
	}
	return false
}

func prevRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
