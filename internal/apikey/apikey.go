// Package apikey issues and verifies the bearer keys used by the HTTP API.
// A raw key is shown once at creation; only its bcrypt hash and a short
// clear-text prefix for lookup are stored.
package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

const (
	// PrefixLen is how many leading characters of a raw key are stored in
	// clear for lookup.
	PrefixLen = 8

	keyPrefix  = "ir_"
	randomSize = 20
)

var (
	ErrMissingName  = errors.New("key name is required")
	ErrInvalidScope = errors.New("invalid scope")
)

// Generate creates a key with the given scopes. The returned raw key is the
// only copy of the secret.
func Generate(name string, scopes []string) (string, *models.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, ErrMissingName
	}
	if len(scopes) == 0 {
		scopes = []string{models.ScopeRead}
	}
	for _, s := range scopes {
		switch s {
		case models.ScopeRead, models.ScopeProcess, models.ScopeAdmin:
		default:
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidScope, s)
		}
	}

	buf := make([]byte, randomSize)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate key: %w", err)
	}
	raw := keyPrefix + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash key: %w", err)
	}

	now := time.Now().UTC()
	return raw, &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:PrefixLen],
		Scopes:    append([]string(nil), scopes...),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Match returns the key whose hash matches raw, or nil.
func Match(keys []*models.APIKey, raw string) *models.APIKey {
	for _, key := range keys {
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(raw)) == nil {
			return key
		}
	}
	return nil
}

// Allows reports whether key grants scope. Admin grants everything.
func Allows(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope || s == models.ScopeAdmin {
			return true
		}
	}
	return false
}
