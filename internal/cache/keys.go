package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func QueryEmbeddingKey(model string, dims int, queryHash string) string {
	return fmt.Sprintf("embed:query:%s:%d:%s", model, dims, queryHash)
}

func BuildStatusKey(buildID uuid.UUID) string {
	return fmt.Sprintf("indexbuild:%s", buildID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

func RecordKey(recordID uuid.UUID) string {
	return fmt.Sprintf("record:%s", recordID)
}
