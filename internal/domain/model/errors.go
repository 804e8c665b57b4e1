package model

import (
	"errors"
	"fmt"
)

// ErrValidation is the root of every caller error: a missing identifier, an
// unknown comment, or a violated state invariant. It is never retried.
var ErrValidation = errors.New("validation failed")

// Sentinel validation errors. Each wraps ErrValidation.
var (
	ErrCommentNotFound   = fmt.Errorf("%w: comment not found", ErrValidation)
	ErrMultipleDrafts    = fmt.Errorf("%w: more than one draft in thread", ErrValidation)
	ErrDraftExists       = fmt.Errorf("%w: thread already has a draft", ErrValidation)
	ErrNothingToPublish  = fmt.Errorf("%w: no pending comments to publish", ErrValidation)
	ErrInvalidSessionKey = fmt.Errorf("%w: review session key is not resolvable", ErrValidation)
	ErrNoAuthor          = fmt.Errorf("%w: no authenticated author", ErrValidation)
)

// ErrPublishInProgress is returned when a review is submitted while another
// submission for the same session is still in flight.
var ErrPublishInProgress = errors.New("review publish already in progress")

// ErrLoadSuperseded is returned by a comment load whose result was discarded
// because a newer load started before it finished.
var ErrLoadSuperseded = errors.New("comment load superseded by a newer request")

// ValidationError describes which input was rejected.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// RemoteError reports a failed call against the remote review API. Local state
// is left unchanged whenever one is returned.
type RemoteError struct {
	Op  string // "list", "edit", "delete", "publish", "resolve", "react".
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ConsistencyError is raised when the read-after-write fetch that follows a
// published review fails or disagrees with what was just submitted. It is the
// only error with an automatic recovery: local published comments are dropped
// and the server's list is fetched again.
type ConsistencyError struct {
	Err error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("inline comments fetch after publish: %v", e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }
