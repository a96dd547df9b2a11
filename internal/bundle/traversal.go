// SPDX-License-Identifier: MPL-2.0

package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/modulebox/modulebox/internal/box"
	"github.com/modulebox/modulebox/internal/resolution"

	"github.com/spf13/afero"
)

// DefaultChunkSize is the read size used when streaming file content.
const DefaultChunkSize = 32 * 1024

const (
	stateStart state = iota
	stateInitError
	stateCacheValid
	stateDraining
	stateStreaming
	stateDone
)

var errAborted = errors.New("bundle: job aborted")

type (
	state uint8

	// Options tune a traversal. The zero value is usable.
	Options struct {
		// Events receives warnings, errors and the fingerprint.
		Events EventHandler
		// SkipContent is consulted once the fingerprint is known. Returning
		// true ends the document after the header, without file bodies. It
		// is how conditional and HEAD requests avoid reading files.
		SkipContent func(fp box.Fingerprint) bool
		// ChunkSize overrides DefaultChunkSize.
		ChunkSize int
	}

	// Traversal produces the document for one request. It is not safe for
	// concurrent use; the Box it reads from is.
	Traversal struct {
		box    *box.Box
		req    Request
		events EventHandler
		skip   func(box.Fingerprint) bool

		state    state
		doc      document
		chunk    []byte
		header   bool
		initErr  *resolution.ErrorDescriptor
		fp       box.Fingerprint
		acquired box.JobSet
		known    box.JobSet
		queue    []box.Job

		resolve        resolution.Map
		resolveSpecial resolution.Map
		deps           map[string]resolution.Map
		specialDeps    map[string]resolution.Map

		// open is the job whose start marker was written last and whose end
		// marker is still owed.
		open *box.Job
		cur  *inflight
	}

	// inflight is the job being streamed. For an uncached job the bytes read
	// are fed to the hash and scan tasks while a stat runs alongside.
	inflight struct {
		job    box.Job
		file   afero.File
		cached *box.Record

		hashW *io.PipeWriter
		scanW *io.PipeWriter
		tee   io.Writer
		wg    sync.WaitGroup

		hash    []byte
		hashErr error
		scan    box.Scan
		scanErr error
		info    os.FileInfo
		statErr error
	}
)

// New creates a traversal of req over b.
func New(b *box.Box, req Request, opts Options) *Traversal {
	events := opts.Events
	if events == nil {
		events = EventFuncs{}
	}
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Traversal{
		box:         b,
		req:         req,
		events:      events,
		skip:        opts.SkipContent,
		chunk:       make([]byte, size),
		acquired:    box.NewJobSet(req.Acquired, req.AcquiredSpecial),
		known:       make(box.JobSet),
		deps:        make(map[string]resolution.Map),
		specialDeps: make(map[string]resolution.Map),
	}
}

// Fingerprint returns the fingerprint computed by Prepare.
func (t *Traversal) Fingerprint() box.Fingerprint { return t.fp }

// InitError returns the descriptor of a failed initialization, if any.
func (t *Traversal) InitError() *resolution.ErrorDescriptor { return t.initErr }

// ContentSkipped reports whether the document ends after its header because
// SkipContent returned true.
func (t *Traversal) ContentSkipped() bool { return t.state == stateCacheValid }

// Prepare resolves the request, queues the resolved files and computes the
// fingerprint. It runs at most once and is called by Next when needed. The
// error is non-nil only when ctx ends; an unresolvable request becomes an
// error document instead.
func (t *Traversal) Prepare(ctx context.Context) error {
	if t.state != stateStart {
		return nil
	}

	if err := t.req.Validate(); err != nil {
		t.fail(err)
		return nil
	}

	batch, err := t.box.ResolveBatch(ctx, t.req.StartDir(), t.req.Request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			t.state = stateDone
			return ctxErr
		}
		t.fail(err)
		return nil
	}

	t.resolve = batch.Normal
	t.resolveSpecial = batch.SpecialMap()
	for _, id := range batch.Normal.Keys() {
		r := batch.Normal[id]
		if !r.OK() {
			t.events.Warning(*r.Err)
			continue
		}
		t.enqueue(box.NormalJob(r.Path))
	}
	for _, id := range batch.Special {
		t.enqueue(box.SpecialJob(id))
	}

	t.fp = t.box.Fingerprint(batch, t.acquired)
	t.events.Meta(t.fp)

	if t.skip != nil && t.skip(t.fp) {
		t.state = stateCacheValid
		return nil
	}
	t.state = stateDraining
	return nil
}

func (t *Traversal) fail(err error) {
	d := resolution.Pack(err)
	t.initErr = &d
	t.events.Warning(d)
	t.state = stateInitError
}

// Next returns the next chunk of the document, or io.EOF once the document
// is complete. Chunks are never empty. If ctx ends, the job in flight is
// abandoned without touching the cache and ctx's error is returned.
func (t *Traversal) Next(ctx context.Context) ([]byte, error) {
	if err := t.Prepare(ctx); err != nil {
		return nil, err
	}

	for t.doc.empty() {
		if t.state == stateDone {
			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			t.abort()
			return nil, err
		}
		if err := t.step(ctx); err != nil {
			t.abort()
			return nil, err
		}
	}
	return t.doc.take(), nil
}

func (t *Traversal) step(ctx context.Context) error {
	switch t.state {
	case stateInitError:
		t.doc.prolog()
		t.header = true
		if err := t.doc.errorElement(*t.initErr); err != nil {
			return err
		}
		return t.finish()

	case stateCacheValid:
		if err := t.writeHeader(); err != nil {
			return err
		}
		return t.finish()

	case stateDraining:
		if len(t.queue) == 0 {
			if err := t.writeHeader(); err != nil {
				return err
			}
			t.closeOpen()
			return t.finish()
		}
		job := t.queue[0]
		t.queue = t.queue[1:]
		return t.startJob(ctx, job)

	case stateStreaming:
		return t.readChunk(ctx)

	default:
		return fmt.Errorf("bundle: unexpected state %d", t.state)
	}
}

func (t *Traversal) finish() error {
	if err := t.doc.footer(t.deps, t.specialDeps); err != nil {
		return err
	}
	t.state = stateDone
	return nil
}

func (t *Traversal) writeHeader() error {
	if t.header {
		return nil
	}
	t.header = true
	t.doc.prolog()
	if err := t.doc.resolve(false, nonNil(t.resolve)); err != nil {
		return err
	}
	return t.doc.resolve(true, nonNil(t.resolveSpecial))
}

func (t *Traversal) closeOpen() {
	if t.open == nil {
		return
	}
	t.doc.fileEnd()
	t.open = nil
}

// startJob opens the job's file and writes its start marker. A job whose
// file cannot be opened is reported and skipped without markers.
func (t *Traversal) startJob(ctx context.Context, job box.Job) error {
	f, err := t.box.Open(job)
	if err != nil {
		t.events.Error(job, err)
		return nil
	}

	if err := t.writeHeader(); err != nil {
		_ = f.Close()
		return err
	}
	t.closeOpen()
	t.doc.fileStart(job)
	t.open = &job

	cur := &inflight{job: job, file: f}
	if rec, ok := t.box.Cache().Get(job); ok {
		cur.cached = rec
	} else {
		t.spawn(ctx, cur)
	}
	t.cur = cur
	t.state = stateStreaming
	return nil
}

// spawn starts the stat, hash and scan tasks of an uncached job.
func (t *Traversal) spawn(ctx context.Context, cur *inflight) {
	hashR, hashW := io.Pipe()
	scanR, scanW := io.Pipe()
	cur.hashW, cur.scanW = hashW, scanW
	cur.tee = io.MultiWriter(hashW, scanW)

	cur.wg.Go(func() {
		cur.info, cur.statErr = t.box.Stat(cur.job)
	})
	cur.wg.Go(func() {
		h := box.NewContentHash()
		if _, err := io.Copy(h, hashR); err != nil {
			cur.hashErr = err
			return
		}
		cur.hash = h.Sum(nil)
	})
	cur.wg.Go(func() {
		content, err := io.ReadAll(scanR)
		if err != nil {
			cur.scanErr = err
			return
		}
		cur.scan, cur.scanErr = t.box.ScanFile(ctx, cur.job, content)
	})
}

func (t *Traversal) readChunk(ctx context.Context) error {
	cur := t.cur
	n, err := cur.file.Read(t.chunk)
	if n > 0 {
		data := t.chunk[:n]
		if cur.tee != nil {
			// The pipes only fail once their readers stop, which they do
			// not do before EOF.
			if _, werr := cur.tee.Write(data); werr != nil && err == nil {
				err = werr
			}
		}
		t.doc.buf.Write(data)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		t.completeJob(ctx, nil)
	default:
		t.completeJob(ctx, err)
	}
	return nil
}

// completeJob joins the job's tasks, stores its record when every task
// succeeded, and queues what it requires.
func (t *Traversal) completeJob(ctx context.Context, readErr error) {
	cur := t.cur
	t.cur = nil
	t.state = stateDraining

	if err := cur.file.Close(); err != nil && readErr == nil {
		readErr = err
	}
	if readErr != nil {
		t.events.Error(cur.job, readErr)
	}

	if cur.cached != nil {
		if d := cur.cached.ScanError; d != nil {
			t.events.Warning(*d)
		}
		t.merge(cur.job, cur.cached.Dependencies, cur.cached.Special)
		return
	}

	if readErr != nil {
		cur.hashW.CloseWithError(readErr)
		cur.scanW.CloseWithError(readErr)
	} else {
		cur.hashW.Close()
		cur.scanW.Close()
	}
	cur.wg.Wait()

	if cur.statErr != nil {
		t.events.Error(cur.job, cur.statErr)
	}

	scanOK := cur.scanErr == nil
	var scanWarning *resolution.ErrorDescriptor
	if cur.scanErr != nil && readErr == nil && ctx.Err() == nil {
		// Extraction failed: the file counts as having no dependencies.
		d := resolution.Pack(cur.scanErr)
		scanWarning = &d
		t.events.Warning(d)
		cur.scan = box.Scan{Dependencies: resolution.Map{}}
		scanOK = true
	}

	if readErr == nil && cur.statErr == nil && cur.hashErr == nil && scanOK && ctx.Err() == nil {
		t.box.Cache().Put(cur.job, &box.Record{
			Dependencies: cur.scan.Dependencies,
			Special:      cur.scan.Special,
			Hash:         cur.hash,
			ModTime:      cur.info.ModTime(),
			ScanError:    scanWarning,
		})
	}

	if scanOK {
		t.merge(cur.job, cur.scan.Dependencies, cur.scan.Special)
	}
}

// merge records a job's dependencies for the footer and queues the jobs they
// point at. Files without dependencies are left out of the maps.
func (t *Traversal) merge(job box.Job, deps resolution.Map, special []string) {
	if len(deps) > 0 {
		t.deps[job.Value] = deps
	}
	if len(special) > 0 {
		m := make(resolution.Map, len(special))
		for _, id := range special {
			m[id] = resolution.Resolved(id)
		}
		t.specialDeps[job.Value] = m
	}

	for _, id := range deps.Keys() {
		r := deps[id]
		if !r.OK() {
			t.events.Warning(*r.Err)
			continue
		}
		t.enqueue(box.NormalJob(r.Path))
	}
	for _, id := range special {
		t.enqueue(box.SpecialJob(id))
	}
}

// enqueue adds job unless the client holds it or it was seen before.
func (t *Traversal) enqueue(job box.Job) {
	if t.acquired.Has(job) || t.known.Has(job) {
		return
	}
	t.known.Add(job)
	t.queue = append(t.queue, job)
}

// abort abandons the job in flight and ends the traversal. Tasks already
// running are joined; no record is written.
func (t *Traversal) abort() {
	if cur := t.cur; cur != nil {
		t.cur = nil
		_ = cur.file.Close()
		if cur.cached == nil {
			cur.hashW.CloseWithError(errAborted)
			cur.scanW.CloseWithError(errAborted)
			cur.wg.Wait()
		}
	}
	t.doc.buf.Reset()
	t.state = stateDone
}

// Close releases the traversal. Calling Next after Close returns io.EOF.
func (t *Traversal) Close() error {
	t.abort()
	return nil
}

// Stream writes the whole document to w, flushing after every chunk when w
// implements interface{ Flush() }.
func (t *Traversal) Stream(ctx context.Context, w io.Writer) (int64, error) {
	flusher, _ := w.(interface{ Flush() })

	var written int64
	for {
		chunk, err := t.Next(ctx)
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			_ = t.Close()
			return written, err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func nonNil(m resolution.Map) resolution.Map {
	if m == nil {
		return resolution.Map{}
	}
	return m
}
