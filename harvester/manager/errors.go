package manager

import (
	"fmt"
)

// ValidationError means the provider no longer advertises what a schedule
// step asks for. It is reported and never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Msg)
}

// InternalFault aborts a run regardless of where it is raised.
type InternalFault struct {
	RequestURL string
	Err        error
}

func (e *InternalFault) Error() string {
	return fmt.Sprintf("internal fault (last request %s): %s", e.RequestURL, e.Err)
}

func (e *InternalFault) Unwrap() error {
	return e.Err
}

// RecordError is the failure of a single record. The run continues.
type RecordError struct {
	OAIIdentifier string
	Err           error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("failed to ingest %s: %s", e.OAIIdentifier, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

type signalError struct {
	msg string
}

func (e signalError) Error() string {
	return e.msg
}

// ErrKilled stops a run that was killed. The run ends CANCELED, not in error.
var ErrKilled = signalError{"harvest manually terminated"}
