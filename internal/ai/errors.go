package ai

import "errors"

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
	ErrNoClient            = errors.New("no ai client configured")
	ErrStrictFallback      = errors.New("strict mode: generative stage fell back")
)
