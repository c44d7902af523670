package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

// Hooks observe the primary/fallback flow. Nil fields are skipped.
type Hooks struct {
	OnCall     func(stage string, duration time.Duration, err error)
	OnFallback func(stage, reason string)
}

// Options controls one Generate call.
type Options struct {
	Stage   string
	Strict  bool
	Retries int
	Timeout time.Duration
	Hooks   Hooks
}

// Result is the value a stage settled on plus how it got there.
type Result[T any] struct {
	Value      T
	Provenance models.StageProvenance
}

// Generate attempts a chat call, parses the first JSON object of the reply
// into T and validates it. Transport errors, timeouts and invalid output are
// retried up to opts.Retries times. When no usable response remains, the
// deterministic fallback runs, or in strict mode an error wrapping
// ErrStrictFallback is returned instead.
//
// A nil client is treated as "generation disabled" and goes straight to the
// fallback (or strict failure) without counting an attempt.
func Generate[T any](
	ctx context.Context,
	client models.ChatClient,
	messages []models.ChatMessage,
	opts Options,
	validate func(*T) error,
	fallback func() T,
) (Result[T], error) {
	prov := models.StageProvenance{Stage: opts.Stage}

	var lastErr error
	if client == nil {
		lastErr = ErrNoClient
	} else {
		prov.Model = client.Model()
		for attempt := 0; attempt <= opts.Retries; attempt++ {
			prov.Attempts++
			v, err := tryOnce[T](ctx, client, messages, opts, validate)
			if err == nil {
				prov.Source = models.SourceModel
				return Result[T]{Value: v, Provenance: prov}, nil
			}
			lastErr = err
			slog.Debug("generative attempt failed",
				"stage", opts.Stage, "attempt", prov.Attempts, "error", err)
			if ctx.Err() != nil {
				break
			}
		}
	}

	prov.Source = models.SourceHeuristic
	prov.Reason = lastErr.Error()

	if opts.Strict {
		slog.Error("generative stage failed in strict mode", "stage", opts.Stage, "reason", prov.Reason)
		var zero Result[T]
		zero.Provenance = prov
		return zero, fmt.Errorf("%s: %w: %w", opts.Stage, ErrStrictFallback, lastErr)
	}

	if opts.Hooks.OnFallback != nil {
		opts.Hooks.OnFallback(opts.Stage, fallbackLabel(lastErr))
	}
	if !errors.Is(lastErr, ErrNoClient) {
		slog.Warn("generative stage fell back to heuristic", "stage", opts.Stage, "reason", prov.Reason)
	}
	return Result[T]{Value: fallback(), Provenance: prov}, nil
}

func tryOnce[T any](
	ctx context.Context,
	client models.ChatClient,
	messages []models.ChatMessage,
	opts Options,
	validate func(*T) error,
) (T, error) {
	var v T

	callCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := client.Chat(callCtx, messages)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrInferenceTimeout) {
		err = fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}
	if opts.Hooks.OnCall != nil {
		opts.Hooks.OnCall(opts.Stage, time.Since(start), err)
	}
	if err != nil {
		return v, err
	}

	raw, ok := ExtractJSON(text)
	if !ok {
		return v, fmt.Errorf("%w: no JSON object in %q", ErrInvalidResponse, truncateString(text, 200))
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if validate != nil {
		if err := validate(&v); err != nil {
			return v, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}
	return v, nil
}

// fallbackLabel maps a failure to a low-cardinality metric label.
func fallbackLabel(err error) string {
	switch {
	case errors.Is(err, ErrNoClient):
		return "disabled"
	case errors.Is(err, ErrInferenceTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid"
	default:
		return "unavailable"
	}
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
