// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

type (
	// Base carries the lifecycle of a single-use component. Embed it and
	// drive it from Start and Stop; once terminal, create a new instance.
	Base struct {
		state atomic.Int32

		mu         sync.Mutex
		lastErr    error
		errsClosed bool

		ctx    context.Context
		cancel context.CancelFunc

		tasks    sync.WaitGroup
		ready    chan struct{}
		done     chan struct{}
		doneOnce sync.Once
		errs     chan error
	}

	// Option configures a Base.
	Option func(*Base)
)

// WithErrorBuffer sets the capacity of the Err channel. The default is 1.
func WithErrorBuffer(size int) Option {
	return func(b *Base) {
		if size > 0 {
			b.errs = make(chan error, size)
		}
	}
}

// NewBase returns a Base in StateCreated.
func NewBase(opts ...Option) *Base {
	b := &Base{
		ready: make(chan struct{}),
		done:  make(chan struct{}),
		errs:  make(chan error, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current state.
func (b *Base) State() State { return State(b.state.Load()) }

// IsRunning reports whether the state is StateRunning.
func (b *Base) IsRunning() bool { return b.State() == StateRunning }

// Err delivers runtime errors. It is closed by FinishStop.
func (b *Base) Err() <-chan error { return b.errs }

// Ready is closed once the component is running.
func (b *Base) Ready() <-chan struct{} { return b.ready }

// Done is closed once the component reaches a terminal state.
func (b *Base) Done() <-chan struct{} { return b.done }

// Context is cancelled when stopping or failing. It is nil before
// BeginStart succeeds.
func (b *Base) Context() context.Context { return b.ctx }

// LastError returns the error recorded by Fail.
func (b *Base) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// BeginStart moves Created to Starting. A ctx that is already done fails the
// component instead.
func (b *Base) BeginStart(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return b.Fail(fmt.Errorf("context cancelled before start: %w", err))
	}
	if !b.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return &InvalidStateError{Value: b.State(), Op: "start"}
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	return nil
}

// MarkRunning moves Starting to Running and releases Ready waiters.
func (b *Base) MarkRunning() {
	if b.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(b.ready)
	}
}

// Fail records err, moves to StateFailed and reports err on Err. It returns
// err for convenience.
func (b *Base) Fail(err error) error {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()

	b.state.Store(int32(StateFailed))
	if b.cancel != nil {
		b.cancel()
	}
	b.Report(err)
	b.doneOnce.Do(func() { close(b.done) })
	return err
}

// BeginStop moves Starting or Running to Stopping and cancels Context. It
// returns false when there is nothing to shut down; a component that was
// never started goes straight to Stopped.
func (b *Base) BeginStop() bool {
	for {
		cur := b.State()
		switch cur {
		case StateCreated:
			if b.state.CompareAndSwap(int32(cur), int32(StateStopped)) {
				b.doneOnce.Do(func() { close(b.done) })
				return false
			}
		case StateStarting, StateRunning:
			if b.state.CompareAndSwap(int32(cur), int32(StateStopping)) {
				if b.cancel != nil {
					b.cancel()
				}
				return true
			}
		default:
			return false
		}
	}
}

// FinishStop waits for tracked goroutines, moves to StateStopped and closes
// Err and Done.
func (b *Base) FinishStop() {
	b.tasks.Wait()
	b.state.Store(int32(StateStopped))
	b.mu.Lock()
	if !b.errsClosed {
		b.errsClosed = true
		close(b.errs)
	}
	b.mu.Unlock()
	b.doneOnce.Do(func() { close(b.done) })
}

// WaitReady blocks until Ready or ctx ends.
func (b *Base) WaitReady(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-b.done:
		if err := b.LastError(); err != nil {
			return err
		}
		return &InvalidStateError{Value: b.State(), Op: "wait for ready"}
	case <-ctx.Done():
		return fmt.Errorf("waiting for ready: %w", ctx.Err())
	}
}

// Go runs fn on a tracked goroutine.
func (b *Base) Go(fn func()) {
	b.tasks.Go(fn)
}

// Drain blocks until every goroutine started with Go has returned.
func (b *Base) Drain() {
	b.tasks.Wait()
}

// Report delivers err on Err without blocking. It is dropped when the buffer
// is full or the component has stopped.
func (b *Base) Report(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.errsClosed {
		return
	}
	select {
	case b.errs <- err:
	default:
	}
}
