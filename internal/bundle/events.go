// SPDX-License-Identifier: MPL-2.0

package bundle

import (
	"github.com/modulebox/modulebox/internal/box"
	"github.com/modulebox/modulebox/internal/resolution"
)

type (
	// EventHandler observes a traversal. Warnings explain content missing
	// from the document and are safe to show clients. Errors are I/O
	// failures meant for operators. Meta reports the fingerprint once
	// resolution is done.
	//
	// Handlers are called from the goroutine that calls Next.
	EventHandler interface {
		Warning(desc resolution.ErrorDescriptor)
		Error(job box.Job, err error)
		Meta(fp box.Fingerprint)
	}

	// EventFuncs adapts optional functions to EventHandler.
	EventFuncs struct {
		OnWarning func(desc resolution.ErrorDescriptor)
		OnError   func(job box.Job, err error)
		OnMeta    func(fp box.Fingerprint)
	}
)

// Warning implements EventHandler.
func (f EventFuncs) Warning(desc resolution.ErrorDescriptor) {
	if f.OnWarning != nil {
		f.OnWarning(desc)
	}
}

// Error implements EventHandler.
func (f EventFuncs) Error(job box.Job, err error) {
	if f.OnError != nil {
		f.OnError(job, err)
	}
}

// Meta implements EventHandler.
func (f EventFuncs) Meta(fp box.Fingerprint) {
	if f.OnMeta != nil {
		f.OnMeta(fp)
	}
}
