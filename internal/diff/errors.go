package diff

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDiff indicates a hunk or file header that cannot be parsed,
	// or a hunk whose header lengths disagree with its body.
	ErrMalformedDiff = errors.New("malformed diff")

	// ErrEmptySelection indicates a selection that contains no added or
	// deleted lines.
	ErrEmptySelection = errors.New("empty selection")

	// ErrInvalidSelection indicates a selection that cannot become a patch,
	// such as a range that spans hunks or files.
	ErrInvalidSelection = errors.New("invalid selection")
)

// MalformedDiffError describes where parsing failed.
type MalformedDiffError struct {
	Path   string
	Line   int // 1-based line in the diff text, 0 if unknown
	Reason string
}

func (e *MalformedDiffError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed diff for %s at line %d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed diff for %s: %s", e.Path, e.Reason)
}

func (e *MalformedDiffError) Unwrap() error { return ErrMalformedDiff }
