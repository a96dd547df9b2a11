// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("start run stop", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if got := b.State(); got != StateCreated {
			t.Fatalf("State() = %s, want created", got)
		}
		if err := b.BeginStart(t.Context()); err != nil {
			t.Fatalf("BeginStart() = %v", err)
		}
		if b.Context() == nil {
			t.Fatal("Context() is nil after BeginStart")
		}

		b.MarkRunning()
		if !b.IsRunning() {
			t.Fatalf("State() = %s, want running", b.State())
		}
		select {
		case <-b.Ready():
		default:
			t.Fatal("Ready() not closed after MarkRunning")
		}

		if !b.BeginStop() {
			t.Fatal("BeginStop() = false for running component")
		}
		if b.Context().Err() == nil {
			t.Error("Context() not cancelled by BeginStop")
		}
		b.FinishStop()
		if got := b.State(); got != StateStopped {
			t.Errorf("State() = %s, want stopped", got)
		}
		if _, ok := <-b.Err(); ok {
			t.Error("Err() not closed after FinishStop")
		}
		select {
		case <-b.Done():
		default:
			t.Error("Done() not closed after FinishStop")
		}
	})

	t.Run("fail while starting", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.BeginStart(t.Context()); err != nil {
			t.Fatalf("BeginStart() = %v", err)
		}
		cause := errors.New("bind failed")
		if err := b.Fail(cause); !errors.Is(err, cause) {
			t.Fatalf("Fail() = %v, want %v", err, cause)
		}
		if got := b.State(); got != StateFailed {
			t.Errorf("State() = %s, want failed", got)
		}
		if !errors.Is(b.LastError(), cause) {
			t.Errorf("LastError() = %v", b.LastError())
		}
		select {
		case err := <-b.Err():
			if !errors.Is(err, cause) {
				t.Errorf("Err() delivered %v", err)
			}
		default:
			t.Error("Err() empty after Fail")
		}
		if b.BeginStop() {
			t.Error("BeginStop() = true after failure")
		}
	})

	t.Run("start twice", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.BeginStart(t.Context()); err != nil {
			t.Fatalf("BeginStart() = %v", err)
		}
		err := b.BeginStart(t.Context())
		if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("second BeginStart() = %v, want ErrInvalidState", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		b := NewBase()
		err := b.BeginStart(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("BeginStart() = %v, want context.Canceled", err)
		}
		if got := b.State(); got != StateFailed {
			t.Errorf("State() = %s, want failed", got)
		}
	})

	t.Run("stop before start", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if b.BeginStop() {
			t.Fatal("BeginStop() = true for created component")
		}
		if got := b.State(); got != StateStopped {
			t.Errorf("State() = %s, want stopped", got)
		}
		if err := b.BeginStart(t.Context()); err == nil {
			t.Error("BeginStart() after stop succeeded")
		}
	})
}

func TestWaitReady(t *testing.T) {
	t.Parallel()

	t.Run("ready", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.BeginStart(t.Context()); err != nil {
			t.Fatal(err)
		}
		go b.MarkRunning()
		if err := b.WaitReady(t.Context()); err != nil {
			t.Errorf("WaitReady() = %v", err)
		}
	})

	t.Run("failed", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.BeginStart(t.Context()); err != nil {
			t.Fatal(err)
		}
		cause := errors.New("boom")
		b.Fail(cause)
		if err := b.WaitReady(t.Context()); !errors.Is(err, cause) {
			t.Errorf("WaitReady() = %v, want %v", err, cause)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()
		if err := b.WaitReady(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("WaitReady() = %v, want deadline exceeded", err)
		}
	})
}

func TestGoAndDrain(t *testing.T) {
	t.Parallel()

	b := NewBase()
	if err := b.BeginStart(t.Context()); err != nil {
		t.Fatal(err)
	}
	b.MarkRunning()

	var mu sync.Mutex
	finished := 0
	for range 5 {
		b.Go(func() {
			<-b.Context().Done()
			mu.Lock()
			finished++
			mu.Unlock()
		})
	}

	b.BeginStop()
	b.FinishStop()

	mu.Lock()
	defer mu.Unlock()
	if finished != 5 {
		t.Errorf("finished = %d, want 5", finished)
	}
}

func TestReportAfterStop(t *testing.T) {
	t.Parallel()

	b := NewBase(WithErrorBuffer(4))
	if err := b.BeginStart(t.Context()); err != nil {
		t.Fatal(err)
	}
	b.MarkRunning()
	b.Report(errors.New("first"))
	b.BeginStop()
	b.FinishStop()

	// Must not panic on the closed channel.
	b.Report(errors.New("late"))

	var got []error
	for err := range b.Err() {
		got = append(got, err)
	}
	if len(got) != 1 {
		t.Errorf("received %d errors, want 1", len(got))
	}
}

func TestConcurrentTransitions(t *testing.T) {
	t.Parallel()

	b := NewBase()
	if err := b.BeginStart(t.Context()); err != nil {
		t.Fatal(err)
	}
	b.MarkRunning()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for range 10 {
		wg.Go(func() {
			_ = b.State()
			if b.BeginStop() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("BeginStop winners = %d, want 1", winners)
	}
}

func TestState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    State
		name     string
		terminal bool
		valid    bool
	}{
		{StateCreated, "created", false, true},
		{StateRunning, "running", false, true},
		{StateStopped, "stopped", true, true},
		{StateFailed, "failed", true, true},
		{State(42), "unknown", false, false},
		{State(-1), "unknown", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.state.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.state.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
			err := tt.state.Validate()
			if tt.valid != (err == nil) {
				t.Errorf("Validate() = %v", err)
			}
			if err != nil && !errors.Is(err, ErrInvalidState) {
				t.Errorf("Validate() does not wrap ErrInvalidState: %v", err)
			}
		})
	}
}
