// SPDX-License-Identifier: MPL-2.0

package resolution

import (
	"errors"
	"fmt"
)

const (
	// CodeModuleNotFound is the code carried by identifiers that could not be localized.
	CodeModuleNotFound = "MODULE_NOT_FOUND"
	// CodeInvalidParameter is the code carried by rejected request parameters.
	CodeInvalidParameter = "InvalidParameter"

	nameError       = "Error"
	nameSyntaxError = "SyntaxError"
)

var (
	// ErrNotFound is the sentinel wrapped by NotFoundError.
	ErrNotFound = errors.New("module not found")
	// ErrSyntax is the sentinel wrapped by SyntaxError.
	ErrSyntax = errors.New("syntax error")
	// ErrInvalidParameter is the sentinel wrapped by InvalidParameterError.
	ErrInvalidParameter = errors.New("invalid parameter")
)

type (
	// ErrorDescriptor is the stack-trace-stripped projection of a failure.
	ErrorDescriptor struct {
		Name    string `json:"name"`
		Message string `json:"message"`
		Code    string `json:"code,omitempty"`
	}

	// NotFoundError is returned by localizers when an identifier has no file.
	NotFoundError struct {
		Identifier string
	}

	// SyntaxError reports source or manifest text that could not be parsed.
	SyntaxError struct {
		Message string
	}

	// InvalidParameterError reports a malformed request parameter.
	InvalidParameterError struct {
		Parameter string
		Reason    string
	}

	named interface{ Name() string }
	coded interface{ Code() string }
)

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Cannot find module '%s'", e.Identifier)
}

// Name returns the client-visible error name.
func (e *NotFoundError) Name() string { return nameError }

// Code returns MODULE_NOT_FOUND.
func (e *NotFoundError) Code() string { return CodeModuleNotFound }

// Unwrap returns ErrNotFound for errors.Is compatibility.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func (e *SyntaxError) Error() string { return e.Message }

// Name returns "SyntaxError".
func (e *SyntaxError) Name() string { return nameSyntaxError }

// Unwrap returns ErrSyntax for errors.Is compatibility.
func (e *SyntaxError) Unwrap() error { return ErrSyntax }

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("parameter %q %s", e.Parameter, e.Reason)
}

// Name returns the client-visible error name.
func (e *InvalidParameterError) Name() string { return nameError }

// Code returns InvalidParameter.
func (e *InvalidParameterError) Code() string { return CodeInvalidParameter }

// Unwrap returns ErrInvalidParameter for errors.Is compatibility.
func (e *InvalidParameterError) Unwrap() error { return ErrInvalidParameter }

// Error implements the error interface so descriptors can travel as events.
func (d ErrorDescriptor) Error() string { return d.Message }

// Pack projects err onto an ErrorDescriptor. The name and code are taken from
// the first error in the chain that provides them.
func Pack(err error) ErrorDescriptor {
	if err == nil {
		return ErrorDescriptor{}
	}

	var d ErrorDescriptor
	if errors.As(err, &d) {
		return d
	}

	desc := ErrorDescriptor{Name: nameError, Message: err.Error()}

	var n named
	if errors.As(err, &n) {
		desc.Name = n.Name()
	}
	var c coded
	if errors.As(err, &c) {
		desc.Code = c.Code()
	}
	return desc
}
