package machine

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionClosed is returned for events submitted after Close.
var ErrSessionClosed = errors.New("session closed")

type request struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Session owns a Machine and applies events to it on a single worker
// goroutine, in submission order. Each event, including its remote calls,
// completes before the next one is examined.
type Session struct {
	m     *Machine
	queue chan request

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewSession starts the worker for m. queueSize bounds how many events may
// wait behind the one being applied.
func NewSession(m *Machine, queueSize int) *Session {
	if queueSize < 1 {
		queueSize = 1
	}
	s := &Session{
		m:     m,
		queue: make(chan request, queueSize),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Session) run() {
	defer s.wg.Done()
	for req := range s.queue {
		if err := req.ctx.Err(); err != nil {
			req.done <- err
			continue
		}
		req.done <- req.fn(req.ctx)
	}
}

func (s *Session) enqueue(ctx context.Context, fn func(context.Context) error) <-chan error {
	done := make(chan error, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		done <- ErrSessionClosed
		return done
	}
	select {
	case s.queue <- request{ctx: ctx, fn: fn, done: done}:
	case <-ctx.Done():
		done <- ctx.Err()
	}
	return done
}

// Submit queues ev and returns a channel that receives the outcome.
func (s *Session) Submit(ctx context.Context, ev Event) <-chan error {
	return s.enqueue(ctx, func(ctx context.Context) error {
		return s.m.Handle(ctx, ev)
	})
}

// Do queues ev and waits for it to be applied.
func (s *Session) Do(ctx context.Context, ev Event) error {
	select {
	case err := <-s.Submit(ctx, ev):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the machine state after every event queued before it.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	done := s.enqueue(ctx, func(context.Context) error {
		snap = s.m.Snapshot()
		return nil
	})
	select {
	case err := <-done:
		return snap, err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Close stops accepting events and waits for queued ones to finish.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
