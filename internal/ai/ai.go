// Package ai defines the text-generation capability consumed by the
// extraction and scoring components.
package ai

import (
	"context"
	"errors"
)

// Judge produces free text for a prompt. Implementations are expected
// to be safe for concurrent use.
type Judge interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Transient capability failures, shared by the Judge and the candidate
// source. Providers retry these internally with bounded backoff; once
// surfaced, retries are exhausted.
var (
	ErrUnavailable = errors.New("service unavailable")
	ErrRateLimited = errors.New("rate limited")
	ErrTimeout     = errors.New("request timed out")
)

// IsTransient reports whether the error belongs to the retryable part
// of the taxonomy.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
