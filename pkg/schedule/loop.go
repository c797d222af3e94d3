// Package schedule provides the cooperative executor and cancellable timers
// that every edit-session component runs on.
package schedule

import (
	"context"
	"errors"
	"sync"
)

var ErrLoopClosed = errors.New("schedule: loop closed")

// Loop runs tasks one at a time, in the order they were posted. Inbound editor
// events, timer expiries and network continuations all become tasks, so session
// state is only ever touched from a single logical thread.
//
// A Loop is driven either by Run on a dedicated goroutine, or manually through
// RunPending/Settle (tests, scripted replays). Never both at once.
type Loop struct {
	mu       sync.Mutex
	queue    []func()
	closed   bool
	wake     chan struct{}
	inflight sync.WaitGroup
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post enqueues a task. It is safe to call from any goroutine.
func (l *Loop) Post(task func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Go runs blocking work on its own goroutine and posts the continuation it
// returns back onto the loop. A nil continuation posts nothing; a continuation
// arriving after Close is dropped.
func (l *Loop) Go(work func() func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.inflight.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.inflight.Done()
		if next := work(); next != nil {
			_ = l.Post(next)
		}
	}()
	return nil
}

// Run drives the loop until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()
		if l.Closed() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// RunPending executes queued tasks, including ones posted while running, until
// the queue is empty. It returns the number of tasks executed.
func (l *Loop) RunPending() int {
	n := 0
	for {
		l.mu.Lock()
		if l.closed {
			l.queue = nil
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		task()
		n++
	}
}

// Settle runs tasks and waits for off-loop work until nothing is queued and
// nothing is in flight. Only valid when the loop is driven manually.
func (l *Loop) Settle() {
	for {
		n := l.RunPending()
		l.inflight.Wait()
		if n == 0 && l.Len() == 0 {
			return
		}
	}
}

// Wait blocks until all work started with Go has returned.
func (l *Loop) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call posts fn and blocks until it has run. The loop must be driven by Run.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := l.Post(func() {
		fn()
		close(done)
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Close stops the loop. Queued tasks are discarded and later posts fail with ErrLoopClosed.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.queue = nil
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}
