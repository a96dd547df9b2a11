// SPDX-License-Identifier: MPL-2.0

package resolution

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

type (
	// Resolution is the outcome of resolving one identifier. Exactly one of
	// Path and Err is set.
	Resolution struct {
		Path string
		Err  *ErrorDescriptor
	}

	// Map associates identifiers with their resolutions.
	Map map[string]Resolution
)

// Resolved returns a successful Resolution.
func Resolved(path string) Resolution {
	return Resolution{Path: path}
}

// Failed returns a Resolution carrying the packed form of err.
func Failed(err error) Resolution {
	d := Pack(err)
	return Resolution{Err: &d}
}

// OK reports whether the identifier resolved to a concrete path.
func (r Resolution) OK() bool {
	return r.Err == nil
}

// MarshalJSON encodes a path as a JSON string and a failure as a descriptor object.
func (r Resolution) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(r.Err)
	}
	return json.Marshal(r.Path)
}

// UnmarshalJSON accepts either form written by MarshalJSON.
func (r *Resolution) UnmarshalJSON(data []byte) error {
	var path string
	if err := json.Unmarshal(data, &path); err == nil {
		*r = Resolution{Path: path}
		return nil
	}
	var d ErrorDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("resolution is neither a path nor a descriptor: %w", err)
	}
	*r = Resolution{Err: &d}
	return nil
}

// StableString renders the resolution for hashing.
func (r Resolution) StableString() string {
	if r.Err != nil {
		return "error:" + r.Err.Code + ":" + r.Err.Message
	}
	return r.Path
}

// Keys returns the identifiers in sorted order.
func (m Map) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// Paths returns the distinct concrete paths, sorted.
func (m Map) Paths() []string {
	seen := make(map[string]struct{}, len(m))
	for _, r := range m {
		if r.OK() {
			seen[r.Path] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Clone returns a shallow copy of m.
func (m Map) Clone() Map {
	return maps.Clone(m)
}
