package synth

import (
	"context"
	"io"
	"sync"
)

// Stream is the ordered event sequence produced by one synthesis call.
// It is single-producer, single-consumer: the backend drives Emit/Fail/
// Finish from one goroutine, the application pulls with Next from another.
//
// The sequence ends with io.EOF on normal completion or with a terminal
// error on backend failure. A terminal error is sticky: once observed, no
// further events are ever delivered. Abandoning the stream with Close
// cancels the producer's context so the backend releases sockets, processes,
// and buffers without the consumer draining remaining events.
type Stream struct {
	ch     chan Event
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	// term is the terminal outcome, written exactly once before cancel so
	// a consumer that observes ctx.Done also observes it.
	term error

	// sticky is consumer-side; Stream is single-consumer so no lock.
	sticky error
}

// NewStream creates a stream whose producer context is derived from ctx.
// Backends run their production goroutine against Context and must stop when
// it is cancelled.
func NewStream(ctx context.Context) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	return &Stream{
		ch:     make(chan Event),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context is the producer-side context. It is cancelled when the consumer
// closes the stream, when the stream terminates, or when the parent context
// ends.
func (s *Stream) Context() context.Context { return s.ctx }

// Next blocks until the next event is available. It returns io.EOF after the
// final event of a successful synthesis, or the stream's terminal error.
// Both outcomes are sticky. A ctx error only reflects the caller's own
// deadline; the stream itself stays usable.
func (s *Stream) Next(ctx context.Context) (Event, error) {
	if s.sticky != nil {
		return nil, s.sticky
	}
	select {
	case event := <-s.ch:
		return event, nil
	case <-s.ctx.Done():
		// Every emitted event was handed off before Fail or Finish ran, so
		// nothing is lost by resolving the terminal state here.
		if s.term != nil {
			s.sticky = s.term
		} else {
			s.sticky = s.ctx.Err()
		}
		return nil, s.sticky
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close abandons the stream. The producer context is cancelled immediately;
// the backend must stop emitting and release its resources. Close is safe to
// call more than once and after the stream has already terminated.
func (s *Stream) Close() error {
	s.cancel()
	return nil
}

// Emit delivers one event to the consumer, blocking until it is received.
// It returns the producer context's error when the stream has been abandoned
// or already terminated, at which point the backend must stop. Calling Emit
// after Fail or Finish returns an error rather than delivering.
func (s *Stream) Emit(event Event) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	select {
	case s.ch <- event:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// Fail records err as the stream's terminal outcome. The consumer observes
// it on the Next call after the last delivered event. Nothing can be emitted
// afterwards.
func (s *Stream) Fail(err error) {
	s.once.Do(func() {
		s.term = err
		s.cancel()
	})
}

// Finish ends the sequence normally. The consumer observes io.EOF once all
// previously emitted events have been read.
func (s *Stream) Finish() {
	s.once.Do(func() {
		s.term = io.EOF
		s.cancel()
	})
}
