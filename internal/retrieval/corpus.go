// Package retrieval finds similar historical incidents and relevant playbook
// passages, by vector similarity when an index is available and by keyword
// overlap otherwise.
package retrieval

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

const (
	ChunkWords   = 450
	ChunkOverlap = 90

	globalPolicyStem = "GlobalPolicy"
)

var teamByStem = map[string]models.Team{
	"CustomerService": models.TeamCustomerService,
	"DevelopmentIT":   models.TeamDevelopmentIT,
}

// TeamFromStem maps a playbook file stem to its team.
func TeamFromStem(stem string) models.Team {
	if t, ok := teamByStem[stem]; ok {
		return t
	}
	return models.Team(stem)
}

// LoadIncidents reads every *.jsonl file in dir in name order. A missing
// directory yields no incidents.
func LoadIncidents(dir string) ([]models.Incident, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("glob samples: %w", err)
	}
	sort.Strings(files)

	var out []models.Incident
	for _, path := range files {
		incidents, err := readJSONL(path)
		if err != nil {
			return nil, err
		}
		out = append(out, incidents...)
	}
	return out, nil
}

func readJSONL(path string) ([]models.Incident, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []models.Incident
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var inc models.Incident
		if err := json.Unmarshal([]byte(raw), &inc); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		out = append(out, inc)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// Playbooks is the playbook corpus split for retrieval.
type Playbooks struct {
	Chunks       []models.Snippet
	GlobalPolicy string
}

// LoadPlaybooks chunks every *.md file in dir in name order. GlobalPolicy.md
// is kept whole as the global policy text rather than chunked.
func LoadPlaybooks(dir string) (Playbooks, error) {
	var pb Playbooks

	files, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return pb, fmt.Errorf("glob playbooks: %w", err)
	}
	sort.Strings(files)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return pb, fmt.Errorf("read %s: %w", path, err)
		}
		name := filepath.Base(path)
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if stem == globalPolicyStem {
			pb.GlobalPolicy = string(data)
			continue
		}
		team := TeamFromStem(stem)
		for i, chunk := range ChunkText(string(data), ChunkWords, ChunkOverlap) {
			pb.Chunks = append(pb.Chunks, models.Snippet{
				Text:    chunk,
				Team:    team,
				Source:  name,
				ChunkID: fmt.Sprintf("%s_%d", stem, i),
			})
		}
	}
	return pb, nil
}

// ChunkText splits text into windows of size words, each starting overlap
// words before the previous window ended. The last window ends at the final word.
func ChunkText(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || size <= 0 {
		return nil
	}
	if overlap >= size {
		overlap = size - 1
	}

	var chunks []string
	for start := 0; start < len(words); {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
		start = max(0, end-overlap)
	}
	return chunks
}

// IncidentSnippet is the corpus entry for a historical incident.
func IncidentSnippet(inc models.Incident) models.Snippet {
	return models.Snippet{
		Text:      inc.Text,
		Source:    inc.Source,
		EventID:   inc.EventID,
		Timestamp: inc.Timestamp,
		ThreadID:  inc.ThreadID,
	}
}

// IncidentEmbedText is the text embedded for an incident: its body followed
// by the channel, product, and ticket id when present.
func IncidentEmbedText(inc models.Incident) string {
	parts := []string{inc.Text}
	for _, extra := range []string{inc.Source, inc.Metadata.Product, inc.Metadata.TicketID} {
		if extra != "" {
			parts = append(parts, extra)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return err == nil && info.IsDir()
}
