// SPDX-License-Identifier: MPL-2.0

package box

import (
	"crypto/sha256"
	"hash"
	"slices"
	"sync"
	"time"

	"github.com/modulebox/modulebox/internal/resolution"
)

type (
	// Record is the memoized result of reading one job: its resolved
	// dependencies, the special identifiers it requires, the digest of its
	// content and its modification time. A Record is never mutated after it
	// has been stored.
	Record struct {
		Dependencies resolution.Map
		Special      []string
		Hash         []byte
		ModTime      time.Time
		// ScanError is set when extraction failed. The file then has no
		// dependencies and every traversal reading it warns again.
		ScanError *resolution.ErrorDescriptor
	}

	// Cache stores records by job. Implementations must be safe for
	// concurrent use by multiple traversals.
	Cache interface {
		// Get returns the record for job, or false if the job was never read.
		Get(job Job) (*Record, bool)

		// Put stores the record for job. Callers write each job once; a
		// concurrent duplicate write stores an identical record.
		Put(job Job, rec *Record)

		// Invalidate drops the records of the given jobs and returns how
		// many were present.
		Invalidate(jobs ...Job) int

		// Len returns the number of stored records.
		Len() int
	}

	// MemoryCache is the in-process Cache.
	MemoryCache struct {
		mu      sync.RWMutex
		records map[Job]*Record
	}
)

// NewContentHash returns the digest used for record content hashes.
func NewContentHash() hash.Hash {
	return sha256.New()
}

// Children returns the jobs this record depends on: every concretely
// resolved normal dependency followed by every special identifier.
func (r *Record) Children() []Job {
	paths := r.Dependencies.Paths()
	out := make([]Job, 0, len(paths)+len(r.Special))
	for _, p := range paths {
		out = append(out, NormalJob(p))
	}
	for _, id := range r.Special {
		out = append(out, SpecialJob(id))
	}
	return out
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{records: make(map[Job]*Record)}
}

// Get implements Cache.
func (c *MemoryCache) Get(job Job) (*Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[job]
	return rec, ok
}

// Put implements Cache.
func (c *MemoryCache) Put(job Job, rec *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[job] = rec
}

// Invalidate implements Cache.
func (c *MemoryCache) Invalidate(jobs ...Job) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, j := range jobs {
		if _, ok := c.records[j]; ok {
			delete(c.records, j)
			n++
		}
	}
	return n
}

// Len implements Cache.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Jobs returns the cached jobs in sorted order.
func (c *MemoryCache) Jobs() []Job {
	c.mu.RLock()
	out := make([]Job, 0, len(c.records))
	for j := range c.records {
		out = append(out, j)
	}
	c.mu.RUnlock()

	slices.SortFunc(out, Job.Compare)
	return out
}
