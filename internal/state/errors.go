package state

import "fmt"

// InvalidStateError reports a Builder operation called from the wrong state.
// It is a programming error in the caller; sessions log it and carry on.
type InvalidStateError struct {
	Op    string
	State BuilderState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("stroke builder: %s not allowed while %s", e.Op, e.State)
}

// MalformedStrokeError reports a stroke payload that cannot be used. The
// stroke is dropped; other strokes keep flowing.
type MalformedStrokeError struct {
	Reason string
	Err    error
}

func (e *MalformedStrokeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed stroke: %s: %v", e.Reason, e.Err)
	}
	return "malformed stroke: " + e.Reason
}

func (e *MalformedStrokeError) Unwrap() error { return e.Err }

func malformed(reason string, err error) error {
	return &MalformedStrokeError{Reason: reason, Err: err}
}
