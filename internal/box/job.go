// SPDX-License-Identifier: MPL-2.0

package box

import (
	"cmp"
	"fmt"
)

const (
	// Normal jobs are files under the module root, addressed by a
	// slash-separated root-relative path such as "/lib/a.js".
	Normal Kind = iota
	// Special jobs are host-provided modules addressed by their identifier.
	Special
)

type (
	// Kind distinguishes normal from special jobs.
	Kind uint8

	// Job is one unit of traversal work. Two jobs are the same job iff both
	// fields are equal, so Job is usable as a map key.
	Job struct {
		Kind  Kind
		Value string
	}

	// JobSet is a set of jobs.
	JobSet map[Job]struct{}
)

// NormalJob returns the job for a root-relative filepath.
func NormalJob(path string) Job { return Job{Kind: Normal, Value: path} }

// SpecialJob returns the job for a special identifier.
func SpecialJob(id string) Job { return Job{Kind: Special, Value: id} }

// String returns "normal" or "special".
func (k Kind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Special:
		return "special"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsSpecial reports whether the job is a special job.
func (j Job) IsSpecial() bool { return j.Kind == Special }

func (j Job) String() string {
	return j.Kind.String() + ":" + j.Value
}

// Compare orders jobs by kind, then value.
func (j Job) Compare(other Job) int {
	if c := cmp.Compare(j.Kind, other.Kind); c != 0 {
		return c
	}
	return cmp.Compare(j.Value, other.Value)
}

// NewJobSet builds a set from normal filepaths and special identifiers.
func NewJobSet(normal, special []string) JobSet {
	s := make(JobSet, len(normal)+len(special))
	for _, p := range normal {
		s.Add(NormalJob(p))
	}
	for _, id := range special {
		s.Add(SpecialJob(id))
	}
	return s
}

// Has reports membership. A nil set is empty.
func (s JobSet) Has(j Job) bool {
	_, ok := s[j]
	return ok
}

// Add inserts j.
func (s JobSet) Add(j Job) {
	s[j] = struct{}{}
}
