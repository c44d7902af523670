package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid index build status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error

	// Records are insert-only; a second CreateRecord with the same ID
	// returns ErrDuplicateKey.
	CreateRecord(ctx context.Context, rec *models.Record) error
	GetRecord(ctx context.Context, id uuid.UUID) (*models.Record, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]*models.Record, int, error)

	CreateIndexBuild(ctx context.Context, build *models.IndexBuild) error
	GetIndexBuild(ctx context.Context, id uuid.UUID) (*models.IndexBuild, error)
	LatestIndexBuild(ctx context.Context) (*models.IndexBuild, error)
	UpdateIndexBuildStatus(ctx context.Context, id uuid.UUID, status string, opts ...BuildUpdateOption) error
}

type RecordFilter struct {
	Status   models.RecordStatus
	Team     models.Team
	Priority models.Priority
	Page     int
	Limit    int
}

type buildUpdateParams struct {
	ErrorMessage *string
	Counts       *models.IndexCounts
}

type BuildUpdateOption func(*buildUpdateParams)

func WithErrorMessage(msg string) BuildUpdateOption {
	return func(p *buildUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithCounts(counts models.IndexCounts) BuildUpdateOption {
	return func(p *buildUpdateParams) {
		p.Counts = &counts
	}
}

var validTransitions = map[string][]string{
	models.BuildStatusPending: {models.BuildStatusRunning, models.BuildStatusFailed},
	models.BuildStatusRunning: {models.BuildStatusCompleted, models.BuildStatusFailed},
}

func checkTransition(from, to string) error {
	for _, a := range validTransitions[from] {
		if a == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// normalizePage applies the listing defaults: page 1, 20 per page, at most 100.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
