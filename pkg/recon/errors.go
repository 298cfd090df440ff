package recon

import (
	"fmt"
	"time"
)

// ReconstructionError reports a failure while replaying a design through
// the geometry kernel. Entity names the sketch or feature being processed
// when the failure occurred.
type ReconstructionError struct {
	Stage  string
	Entity string
	Msg    string
	Cause  error
}

func (e *ReconstructionError) Error() string {
	s := fmt.Sprintf("reconstruction failed at %s", e.Stage)
	if e.Entity != "" {
		s += fmt.Sprintf(" (%s)", e.Entity)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *ReconstructionError) Unwrap() error { return e.Cause }

// wrap attaches a cause and returns the error for chaining.
func (e *ReconstructionError) wrap(err error) *ReconstructionError {
	e.Cause = err
	return e
}

func reconErr(stage, entity, format string, args ...any) *ReconstructionError {
	return &ReconstructionError{Stage: stage, Entity: entity, Msg: fmt.Sprintf(format, args...)}
}

// TimeoutError reports that a build exceeded its wall-clock budget.
type TimeoutError struct {
	Stage  string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("reconstruction timed out at %s after %s", e.Stage, e.Budget)
}
