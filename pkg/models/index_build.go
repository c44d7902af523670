package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	BuildStatusPending   = "pending"
	BuildStatusRunning   = "running"
	BuildStatusCompleted = "completed"
	BuildStatusFailed    = "failed"
)

// IndexBuild tracks one rebuild of the retrieval index. Builds move
// pending -> running -> completed|failed and never go back.
type IndexBuild struct {
	ID             uuid.UUID  `db:"id"              json:"id"`
	Status         string     `db:"status"          json:"status"`
	EmbeddingModel string     `db:"embedding_model" json:"embedding_model"`
	Events         int        `db:"events"          json:"events"`
	Playbooks      int        `db:"playbooks"       json:"playbooks"`
	ErrorMessage   *string    `db:"error_message"   json:"error_message,omitempty"`
	StartedAt      *time.Time `db:"started_at"      json:"started_at,omitempty"`
	CompletedAt    *time.Time `db:"completed_at"    json:"completed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}

// IndexCounts is the result of a successful build: items indexed per corpus.
type IndexCounts struct {
	Events    int `json:"events"`
	Playbooks int `json:"playbooks"`
}
