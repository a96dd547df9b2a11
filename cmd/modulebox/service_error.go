// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/modulebox/modulebox/internal/config"
	"github.com/modulebox/modulebox/internal/issue"
)

// ServiceError carries rendering hints for the CLI layer: an optional styled
// message and an optional issue catalog entry printed after the error.
// Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID selects the catalog entry rendered as help text.
	IssueID issue.Id
	// StyledMessage is printed before the help text.
	StyledMessage string
}

// newServiceError creates a ServiceError. A zero issueID is taken from the
// first ActionableError in err's chain, if any.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	if issueID == 0 {
		issueID, _ = issue.IssueFor(err)
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError prints the styled message, then the issue help section
// in the glamour style matching scheme.
func renderServiceError(stderr io.Writer, svcErr *ServiceError, scheme config.ColorScheme) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if svcErr.IssueID == 0 {
		return
	}

	if entry := issue.Get(svcErr.IssueID); entry != nil {
		rendered, err := entry.Render(glamourStyle(scheme))
		if err != nil {
			slog.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", err)
			return
		}
		fmt.Fprint(stderr, rendered)
	}
}

func glamourStyle(scheme config.ColorScheme) string {
	if scheme == config.ColorSchemeLight {
		return "light"
	}
	return "dark"
}
