package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidURL      = errors.New("invalid URL")
	ErrBlocked         = errors.New("blocked by robots.txt")
	ErrNoFetcher       = errors.New("no fetcher available for request")
	ErrSchemaMismatch  = errors.New("incompatible table schema")
	ErrEmptyVocabulary = errors.New("empty vocabulary: all documents contain only stop words")
	ErrTooFewRecords   = errors.New("fewer records than clusters")
	ErrNoData          = errors.New("no data yet")
	ErrRunInProgress   = errors.New("pipeline run already in progress")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur during parsing.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur while reading or writing flat files.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the article middleware chain.
type PipelineError struct {
	Stage   string
	Article *Article
	Err     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// StageError identifies which stage of a daily run failed.
type StageError struct {
	RunID string
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("run %s: %s stage failed: %v", e.RunID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
