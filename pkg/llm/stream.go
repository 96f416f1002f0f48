package llm

import (
	"context"
	"sync"
)

// Stream delivers text deltas from a streaming generation.
// Producers push via send and finish with finish; consumers range over
// Deltas() and then check Err(). Close cancels the underlying request and
// stops delivery; it is safe to call concurrently with consumption.
type Stream struct {
	deltas chan string
	cancel context.CancelFunc

	mu     sync.Mutex
	err    error
	closed bool
	done   chan struct{}
}

// NewStream creates a stream bound to cancel. Adapters call send for each
// delta and finish exactly once.
func NewStream(cancel context.CancelFunc) *Stream {
	return &Stream{
		deltas: make(chan string, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Deltas returns the channel of text deltas. It is closed on completion,
// error, or Close.
func (s *Stream) Deltas() <-chan string {
	return s.deltas
}

// Err reports the terminal error, if any. Valid after Deltas is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close cancels the in-flight backend request. No further deltas are
// delivered after the producer observes the cancellation.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	<-s.done
}

// Send delivers one delta. Returns false once the consumer is gone or the
// stream was closed, so producers can stop early.
func (s *Stream) Send(ctx context.Context, delta string) bool {
	select {
	case s.deltas <- delta:
		return true
	case <-ctx.Done():
		return false
	}
}

// Finish terminates the stream with err (nil on normal completion).
// Must be called exactly once by the producer.
func (s *Stream) Finish(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	close(s.deltas)
	close(s.done)
}
