package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSourceErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Source("fetch_blocks", "abc", cause)

	if !errors.Is(err, ErrSourceUnavailable) {
		t.Error("expected ErrSourceUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable")
	}
	if !strings.Contains(err.Error(), "fetch_blocks (entry abc)") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestSourceDoesNotDoubleWrap(t *testing.T) {
	inner := Source("list_entries", "", errors.New("boom"))
	outer := Source("set_published", "x", fmt.Errorf("wrapped: %w", inner))

	var se *SourceError
	if !errors.As(outer, &se) {
		t.Fatal("expected SourceError")
	}
	if se.Op != "list_entries" {
		t.Errorf("op = %q, want list_entries", se.Op)
	}
}

func TestSourceNil(t *testing.T) {
	if Source("op", "", nil) != nil {
		t.Error("nil error must stay nil")
	}
}

func TestPartialCommitError(t *testing.T) {
	err := &PartialCommitError{Committed: []string{"a", "b"}, Err: ErrFeedWrite}
	if !errors.Is(err, ErrCommitPartial) || !errors.Is(err, ErrFeedWrite) {
		t.Error("expected both sentinels")
	}
	if !strings.Contains(err.Error(), "2 entries") {
		t.Errorf("message = %q", err.Error())
	}
}
