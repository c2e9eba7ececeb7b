// Package apperr holds the error taxonomy shared by the publish pipeline.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrMalformedNode     = errors.New("malformed node")
	ErrCommitPartial     = errors.New("commit partial failure")
	ErrFeedWrite         = errors.New("feed write failed")
	ErrRunInProgress     = errors.New("run already in progress")
)

// SourceError reports a failed collaborator call. It always unwraps to
// ErrSourceUnavailable as well as to the underlying cause.
type SourceError struct {
	Op      string
	EntryID string
	Err     error
}

func (e *SourceError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(ErrSourceUnavailable.Error())
	b.WriteString(": ")
	b.WriteString(e.Op)
	if e.EntryID != "" {
		fmt.Fprintf(&b, " (entry %s)", e.EntryID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

// Source wraps err as a SourceError unless it already is one.
func Source(op, entryID string, err error) error {
	if err == nil {
		return nil
	}
	var se *SourceError
	if errors.As(err, &se) {
		return err
	}
	return &SourceError{Op: op, EntryID: entryID, Err: err}
}

// PartialCommitError is returned when a run aborts after some entries were
// already marked published. Those commits stay in effect.
type PartialCommitError struct {
	Committed []string
	Err       error
}

func (e *PartialCommitError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %d entries marked published but not delivered: %v",
		ErrCommitPartial.Error(), len(e.Committed), e.Err)
}

func (e *PartialCommitError) Unwrap() []error {
	return []error{ErrCommitPartial, e.Err}
}
