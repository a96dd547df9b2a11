// SPDX-License-Identifier: MPL-2.0

package bundle

import (
	"encoding/json"
	"net/url"
	"path"

	"github.com/modulebox/modulebox/internal/resolution"
)

// Query parameter names carried by bundle requests.
const (
	ParamFrom    = "from"
	ParamNormal  = "normal"
	ParamSpecial = "special"
	ParamRequest = "request"
)

// Request describes what the client asks for and what it already holds.
type Request struct {
	// From is the filepath of the requiring module. Identifiers are resolved
	// against its directory. Empty means the root.
	From string
	// Request lists the identifiers to resolve.
	Request []string
	// Acquired lists filepaths the client already has.
	Acquired []string
	// AcquiredSpecial lists special identifiers the client already has.
	AcquiredSpecial []string
}

// StartDir returns the directory identifiers are resolved from.
func (r Request) StartDir() string {
	if r.From == "" {
		return "/"
	}
	return path.Dir(path.Clean("/" + r.From))
}

// Validate reports a request that can never produce content.
func (r Request) Validate() error {
	if len(r.Request) == 0 {
		return &resolution.InvalidParameterError{Parameter: ParamRequest, Reason: "must not be empty"}
	}
	return nil
}

// ParseQuery decodes a request from JSON-encoded query parameters. Every
// parameter is required: "from" is a JSON string, "normal" and "special" are
// JSON arrays of strings, and "request" is a non-empty JSON array of strings
// or a single JSON string. Any violation yields an *InvalidParameterError.
func ParseQuery(q url.Values) (Request, error) {
	var req Request

	if err := decodeString(q, ParamFrom, &req.From); err != nil {
		return Request{}, err
	}
	if err := decodeStrings(q, ParamNormal, &req.Acquired); err != nil {
		return Request{}, err
	}
	if err := decodeStrings(q, ParamSpecial, &req.AcquiredSpecial); err != nil {
		return Request{}, err
	}

	raw, err := lookup(q, ParamRequest)
	if err != nil {
		return Request{}, err
	}
	var single string
	if json.Unmarshal(raw, &single) == nil {
		req.Request = []string{single}
	} else if err := decodeStrings(q, ParamRequest, &req.Request); err != nil {
		return Request{}, err
	}

	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

func lookup(q url.Values, name string) ([]byte, error) {
	if !q.Has(name) {
		return nil, &resolution.InvalidParameterError{Parameter: name, Reason: "is missing"}
	}
	return []byte(q.Get(name)), nil
}

func decodeString(q url.Values, name string, dst *string) error {
	raw, err := lookup(q, name)
	if err != nil {
		return err
	}
	var v *string
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return &resolution.InvalidParameterError{Parameter: name, Reason: "must be a JSON string"}
	}
	*dst = *v
	return nil
}

func decodeStrings(q url.Values, name string, dst *[]string) error {
	raw, err := lookup(q, name)
	if err != nil {
		return err
	}
	var items []*string
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return &resolution.InvalidParameterError{Parameter: name, Reason: "must be a JSON array of strings"}
	}
	out := make([]string, len(items))
	for i, item := range items {
		if item == nil {
			return &resolution.InvalidParameterError{Parameter: name, Reason: "must be a JSON array of strings"}
		}
		out[i] = *item
	}
	*dst = out
	return nil
}
