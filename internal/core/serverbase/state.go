// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"errors"
	"fmt"
)

const (
	// StateCreated is the state before Start.
	StateCreated State = iota
	// StateStarting means Start is binding resources.
	StateStarting
	// StateRunning means the component accepts work.
	StateRunning
	// StateStopping means graceful shutdown is in progress.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal; LastError holds the cause.
	StateFailed
)

// ErrInvalidState is wrapped by InvalidStateError.
var ErrInvalidState = errors.New("invalid state")

var stateNames = [...]string{
	StateCreated:  "created",
	StateStarting: "starting",
	StateRunning:  "running",
	StateStopping: "stopping",
	StateStopped:  "stopped",
	StateFailed:   "failed",
}

type (
	// State is a lifecycle state.
	State int32

	// InvalidStateError reports a State outside the defined range, or a
	// transition attempted from the wrong state.
	InvalidStateError struct {
		Value State
		Op    string
	}
)

// String returns the lowercase state name.
func (s State) String() string {
	if s.Validate() != nil {
		return "unknown"
	}
	return stateNames[s]
}

// Validate returns an *InvalidStateError for undefined values.
func (s State) Validate() error {
	if s < StateCreated || s > StateFailed {
		return &InvalidStateError{Value: s}
	}
	return nil
}

// IsTerminal reports whether s is Stopped or Failed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// Error implements error.
func (e *InvalidStateError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("cannot %s in state %s", e.Op, e.Value)
	}
	return fmt.Sprintf("invalid state %d", int32(e.Value))
}

// Unwrap returns ErrInvalidState.
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}
