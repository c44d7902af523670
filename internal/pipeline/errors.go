package pipeline

import "errors"

var (
	ErrInvalidIncident = errors.New("invalid incident")
	ErrEmptyBatch      = errors.New("batch contains no incidents")
)
