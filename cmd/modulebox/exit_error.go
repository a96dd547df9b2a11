// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/modulebox/modulebox/internal/issue"
)

// exitRequestFailed is the exit status of bundle and graph when the request
// itself was rejected. The document is still written.
const exitRequestFailed = 2

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the wrapped error's message, or the exit status.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// requestFailed wraps a rejected request's descriptor for the CLI.
func requestFailed(name, message string) error {
	return &ExitError{
		Code: exitRequestFailed,
		Err:  newServiceError(fmt.Errorf("%w: %s: %s", ErrRequestFailed, name, message), issue.InvalidRequestId, ""),
	}
}
