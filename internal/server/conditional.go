// SPDX-License-Identifier: MPL-2.0

package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/modulebox/modulebox/internal/box"
)

func etag(fp box.Fingerprint) string {
	return `W/"` + fp.Hash + `"`
}

// isNotModified evaluates If-None-Match and, only when that header is absent,
// If-Modified-Since. An unknown fingerprint never matches.
func isNotModified(r *http.Request, fp box.Fingerprint) bool {
	if !fp.Known {
		return false
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		return etagMatches(inm, fp.Hash)
	}
	ims := r.Header.Get("If-Modified-Since")
	if ims == "" || fp.ModTime.IsZero() {
		return false
	}
	since, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	return !fp.ModTime.Truncate(time.Second).After(since)
}

// etagMatches applies the weak comparison to a comma-separated list.
func etagMatches(header, hash string) bool {
	for tag := range strings.SplitSeq(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" {
			return true
		}
		tag = strings.TrimPrefix(tag, "W/")
		if tag == `"`+hash+`"` {
			return true
		}
	}
	return false
}
