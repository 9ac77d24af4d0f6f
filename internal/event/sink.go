package event

import (
	"context"
	"sync"

	rlerrors "github.com/michaelscutari/romlint/internal/errors"
)

// Sink receives events from the scanner. A Send error is fatal to the run.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Send(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })

// Channel is an ordered, multi-producer single-consumer event stream. The
// producer calls Close when done; the consumer calls Hangup when it stops
// reading. Send fails after either.
type Channel struct {
	ch   chan Event
	done chan struct{}

	// mu is held shared by Send and exclusively by Close, so ch is never
	// closed under a sender.
	mu     sync.RWMutex
	closed bool

	hangupOnce sync.Once
}

// NewChannel creates a stream holding up to buffer undelivered events.
func NewChannel(buffer int) *Channel {
	return &Channel{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Send delivers ev, blocking while the buffer is full.
func (c *Channel) Send(ctx context.Context, ev Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return rlerrors.New(rlerrors.ErrBrokenPipe, "event stream closed")
	}
	select {
	case <-c.done:
		return rlerrors.New(rlerrors.ErrBrokenPipe, "event consumer hung up")
	default:
	}

	select {
	case c.ch <- ev:
		return nil
	case <-c.done:
		return rlerrors.New(rlerrors.ErrBrokenPipe, "event consumer hung up")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events is the consumer side of the stream.
func (c *Channel) Events() <-chan Event {
	return c.ch
}

// Close ends the stream. It waits for in-flight sends; later sends fail.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// Hangup tells producers nobody is reading any more.
func (c *Channel) Hangup() {
	c.hangupOnce.Do(func() { close(c.done) })
}
