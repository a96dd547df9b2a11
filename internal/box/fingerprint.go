// SPDX-License-Identifier: MPL-2.0

package box

import (
	"encoding/hex"
	"slices"
	"time"
)

// Fingerprint is the cache validator of a request's transitive closure.
// It is only meaningful when Known is true. ModTime is zero when the closure
// contains no file that still has to be sent.
type Fingerprint struct {
	Hash    string
	ModTime time.Time
	Known   bool
}

// Fingerprint walks the closure of the jobs made reachable by batch, skipping
// acquired jobs and following each record's children. If any visited job has
// no record the fingerprint is unknown. Otherwise the hash is a hex sha-256
// over the batch's stable serialization followed by every visited record's
// content hash in job order, and ModTime is the latest visited modification
// time.
func (b *Box) Fingerprint(batch Batch, acquired JobSet) Fingerprint {
	visited := make(JobSet)
	var records []visitedRecord

	stack := slices.Clone(batch.Jobs())
	slices.Reverse(stack)
	for len(stack) > 0 {
		job := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if acquired.Has(job) || visited.Has(job) {
			continue
		}
		visited.Add(job)

		rec, ok := b.cache.Get(job)
		if !ok {
			return Fingerprint{}
		}
		records = append(records, visitedRecord{job: job, rec: rec})

		children := rec.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	slices.SortFunc(records, func(x, y visitedRecord) int { return x.job.Compare(y.job) })

	h := NewContentHash()
	h.Write(batch.stableBytes())
	var modTime time.Time
	for _, v := range records {
		h.Write(v.rec.Hash)
		if v.rec.ModTime.After(modTime) {
			modTime = v.rec.ModTime
		}
	}

	return Fingerprint{
		Hash:    hex.EncodeToString(h.Sum(nil)),
		ModTime: modTime,
		Known:   true,
	}
}

// Equal reports whether two known fingerprints validate the same content.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.Known && other.Known && f.Hash == other.Hash && f.ModTime.Equal(other.ModTime)
}

type visitedRecord struct {
	job Job
	rec *Record
}
