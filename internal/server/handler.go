// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/modulebox/modulebox/internal/box"
	"github.com/modulebox/modulebox/internal/bundle"
	"github.com/modulebox/modulebox/internal/resolution"

	"github.com/charmbracelet/log"
)

// requestEvents logs traversal events for one request.
type requestEvents struct {
	logger *log.Logger
}

func (e requestEvents) Warning(desc resolution.ErrorDescriptor) {
	e.logger.Debug("bundle warning", "name", desc.Name, "code", desc.Code, "message", desc.Message)
}

func (e requestEvents) Error(job box.Job, err error) {
	e.logger.Error("bundle read failed", "job", job, "error", err)
}

func (e requestEvents) Meta(fp box.Fingerprint) {
	if fp.Known {
		e.logger.Debug("bundle fingerprint", "hash", fp.Hash, "modified", fp.ModTime)
	}
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	logger := s.logger.With("remote", r.RemoteAddr)

	req, err := bundle.ParseQuery(r.URL.Query())
	if err != nil {
		logger.Debug("rejected bundle request", "error", err)
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var notModified bool
	trav := bundle.New(s.box, req, bundle.Options{
		Events: requestEvents{logger: logger},
		SkipContent: func(fp box.Fingerprint) bool {
			notModified = isNotModified(r, fp)
			return notModified || r.Method == http.MethodHead
		},
	})
	defer trav.Close()

	if err := trav.Prepare(r.Context()); err != nil {
		// The client went away while resolving.
		return
	}

	h := w.Header()
	h.Set("Content-Type", bundle.ContentType)
	h.Set("Cache-Control", "no-cache")
	if fp := trav.Fingerprint(); fp.Known {
		h.Set("ETag", etag(fp))
		if !fp.ModTime.IsZero() {
			h.Set("Last-Modified", fp.ModTime.UTC().Format(http.TimeFormat))
		}
	}

	if trav.ContentSkipped() {
		if notModified {
			h.Del("Content-Type")
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	status := http.StatusOK
	if desc := trav.InitError(); desc != nil && desc.Code == resolution.CodeInvalidParameter {
		status = http.StatusBadRequest
	}
	w.WriteHeader(status)
	n, err := trav.Stream(r.Context(), w)
	switch {
	case err == nil:
		logger.Debug("bundle sent", "bytes", n, "elapsed", time.Since(started))
	case errors.Is(err, context.Canceled):
		logger.Debug("bundle cancelled by client", "bytes", n)
	default:
		logger.Warn("bundle stream interrupted", "bytes", n, "error", err)
	}
}

// writeError sends an error-only document.
func (s *Server) writeError(w http.ResponseWriter, status int, cause error) {
	doc, err := bundle.ErrorDocument(cause)
	if err != nil {
		s.logger.Error("render error document", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h := w.Header()
	h.Set("Content-Type", bundle.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(status)
	_, _ = w.Write(doc)
}
