package domain

import (
	"fmt"
	"strings"
	"time"
)

// ResolutionError reports that a place query matched zero or more than one
// administrative boundary upstream.
type ResolutionError struct {
	Query   string
	Matches int
}

func (e *ResolutionError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("resolve %q: no boundary returned", e.Query)
	}
	return fmt.Sprintf("resolve %q: ambiguous, %d administrative matches", e.Query, e.Matches)
}

// RateLimitError reports upstream throttling. It is surfaced to the caller,
// not retried indefinitely; re-running after RetryAfter is expected to
// succeed.
type RateLimitError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Service, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Service)
}

// FetchError reports that occurrence retrieval failed after exhausting its
// retry budget (or hit a non-retryable response). It wraps the last cause.
type FetchError struct {
	Category IUCNCategory
	Offset   int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch occurrences (category %s, offset %d): giving up after %d attempt(s): %v",
		e.Category, e.Offset, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SchemaError reports a malformed reference table.
type SchemaError struct {
	Path    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("reference table %s: missing required column(s): %s",
		e.Path, strings.Join(e.Missing, ", "))
}
