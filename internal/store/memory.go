package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

// MemoryStore is an in-process Store used when no DATABASE_URL is set.
// Records are kept encoded so callers never share memory with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	keys    map[uuid.UUID]models.APIKey
	records map[uuid.UUID][]byte
	order   []uuid.UUID
	builds  map[uuid.UUID]models.IndexBuild
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:    make(map[uuid.UUID]models.APIKey),
		records: make(map[uuid.UUID][]byte),
		builds:  make(map[uuid.UUID]models.IndexBuild),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// --- API Keys ---

func (s *MemoryStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			k.Scopes = slices.Clone(k.Scopes)
			out = append(out, &k)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return nil
	}
	now := s.now()
	k.LastUsedAt = &now
	k.UpdatedAt = now
	s.keys[id] = k
	return nil
}

func (s *MemoryStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.ID]; ok {
		return ErrDuplicateKey
	}
	for _, k := range s.keys {
		if k.KeyHash == key.KeyHash {
			return ErrDuplicateKey
		}
	}
	stored := *key
	stored.Scopes = slices.Clone(key.Scopes)
	s.keys[key.ID] = stored
	return nil
}

func (s *MemoryStore) ListAPIKeys(context.Context) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.DeletedAt == nil {
			k.Scopes = slices.Clone(k.Scopes)
			out = append(out, &k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) RevokeAPIKey(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok || k.DeletedAt != nil {
		return ErrNotFound
	}
	now := s.now()
	k.DeletedAt = &now
	k.UpdatedAt = now
	s.keys[id] = k
	return nil
}

// --- Records ---

func (s *MemoryStore) CreateRecord(_ context.Context, rec *models.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return ErrDuplicateKey
	}
	s.records[rec.ID] = body
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, id uuid.UUID) (*models.Record, error) {
	s.mu.RLock()
	body, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeRecord(body)
}

// ListRecords mirrors the Postgres query: newest first, team matching
// primary or watcher.
func (s *MemoryStore) ListRecords(_ context.Context, filter RecordFilter) ([]*models.Record, int, error) {
	s.mu.RLock()
	var matched []*models.Record
	for _, id := range s.order {
		rec, err := decodeRecord(s.records[id])
		if err != nil {
			s.mu.RUnlock()
			return nil, 0, err
		}
		if recordMatches(rec, filter) {
			matched = append(matched, rec)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	page, limit := normalizePage(filter.Page, filter.Limit)
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := min(start+limit, len(matched))
	out := make([]*models.Record, end-start)
	copy(out, matched[start:end])
	return out, len(matched), nil
}

func recordMatches(rec *models.Record, f RecordFilter) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.Priority != "" && rec.Routing.Priority != f.Priority {
		return false
	}
	if f.Team != "" && rec.Routing.PrimaryTeam != f.Team && !slices.Contains(rec.Routing.Watchers, f.Team) {
		return false
	}
	return true
}

func decodeRecord(body []byte) (*models.Record, error) {
	var rec models.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

// --- Index Builds ---

func (s *MemoryStore) CreateIndexBuild(_ context.Context, build *models.IndexBuild) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.builds[build.ID]; ok {
		return ErrDuplicateKey
	}
	s.builds[build.ID] = *build
	return nil
}

func (s *MemoryStore) GetIndexBuild(_ context.Context, id uuid.UUID) (*models.IndexBuild, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.builds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (s *MemoryStore) LatestIndexBuild(context.Context) (*models.IndexBuild, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.IndexBuild
	for _, b := range s.builds {
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = &b
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (s *MemoryStore) UpdateIndexBuildStatus(_ context.Context, id uuid.UUID, status string, opts ...BuildUpdateOption) error {
	params := &buildUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.builds[id]
	if !ok {
		return ErrNotFound
	}
	if err := checkTransition(b.Status, status); err != nil {
		return err
	}

	now := s.now()
	b.Status = status
	b.UpdatedAt = now
	switch status {
	case models.BuildStatusRunning:
		b.StartedAt = &now
	case models.BuildStatusCompleted, models.BuildStatusFailed:
		b.CompletedAt = &now
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		b.ErrorMessage = &msg
	}
	if params.Counts != nil {
		b.Events = params.Counts.Events
		b.Playbooks = params.Counts.Playbooks
	}
	s.builds[id] = b
	return nil
}

var _ Store = (*MemoryStore)(nil)
