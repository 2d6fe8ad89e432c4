package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStoreUnavailable marks every store failure other than "not found".
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound is returned by admin operations addressing a missing item.
	ErrNotFound = errors.New("item not found")
	// ErrAmbiguousID is returned when an id prefix matches several items.
	ErrAmbiguousID = errors.New("ambiguous item id")
	// ErrUnresolvable is returned by URL resolvers for permanent failures.
	ErrUnresolvable = errors.New("url unresolvable")
)

// StoreError wraps a backend failure so it matches ErrStoreUnavailable.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// TransientError is a network/timeout class collaborator failure.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err carries a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// PublishError classifies a posting failure.
type PublishError struct {
	Class string
	Err   error
}

const (
	PublishErrAuth        = "auth"
	PublishErrRateLimited = "rate_limited"
	PublishErrRejected    = "rejected"
	PublishErrNetwork     = "network"
	PublishErrServer      = "server"
	PublishErrUnknown     = "unknown"
)

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Class, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// PublishErrorClass extracts the class of a publishing failure.
func PublishErrorClass(err error) string {
	var pe *PublishError
	if errors.As(err, &pe) && pe.Class != "" {
		return pe.Class
	}
	if IsTransient(err) {
		return PublishErrNetwork
	}
	return PublishErrUnknown
}

// Reason codes recorded in stage_reason.
const (
	ReasonDuplicate         = "duplicate"
	ReasonSourceNotAllowed  = "source_not_allowed"
	ReasonBannedKeyword     = "banned_keyword"
	ReasonBannedURLKeyword  = "banned_url_keyword"
	ReasonURLUnresolvable   = "url_unresolvable"
	ReasonNotRelevant       = "not_relevant"
	ReasonPublishError      = "publish_error"
	ReasonConfirmedSource   = "confirmed_source"
	ReasonAcceptedSource    = "accepted_source"
	ReasonExtractionFailed  = "extraction_failed"
	ReasonTransient         = "transient"
	ReasonDryRun            = "dry_run"
	ReasonStale             = "stale"
	ReasonAttemptsExhausted = "attempts_exhausted"
	ReasonReset             = "reset"
)

// Reason joins a code with an optional detail as code:detail.
func Reason(code, detail string) string {
	if detail == "" {
		return code
	}
	return code + ":" + detail
}

// ReasonCode returns the code part of a stage reason.
func ReasonCode(reason string) string {
	code, _, _ := strings.Cut(reason, ":")
	return code
}
