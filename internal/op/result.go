package op

import (
	"fmt"
	"strings"
)

// Outcome is how an operation ended.
type Outcome int

const (
	Succeeded Outcome = iota
	Failed
	// Superseded results are dropped without notification.
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Superseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Result is posted once per submitted operation.
type Result struct {
	ID       uint64
	Op       Operation
	Outcome  Outcome
	ExitCode int
	Stdout   string
	Stderr   string
	// Cause is set when git could not be run at all or the operation was
	// rejected before running.
	Cause error
}

// Err returns a *FailedError for failed results and nil otherwise.
func (r Result) Err() error {
	if r.Outcome != Failed {
		return nil
	}
	return &FailedError{Op: r.Op, ExitCode: r.ExitCode, Stderr: r.Stderr, Cause: r.Cause}
}

// FailedError carries git's diagnostic for a failed operation.
type FailedError struct {
	Op       Operation
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *FailedError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s failed (exit %d): %s", e.Op.Kind, e.ExitCode, msg)
	}
	return fmt.Sprintf("%s failed: %s", e.Op.Kind, msg)
}

func (e *FailedError) Unwrap() error { return e.Cause }
