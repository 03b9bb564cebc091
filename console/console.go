// Package console implements the Console I/O Channel: the bounded queue of
// pending keystrokes, plus the "one reader may be suspended waiting for a
// key" rule, that lets the cooperative Scheduler park a guest's BDOS 1 call
// without stepping the CPU while nothing is typed.
//
// A buffered Go channel gives us the FIFO-queue-or-suspended-reader
// invariant for free: a receive on an empty channel blocks until a send
// arrives, and a send on a channel with room never blocks and is delivered
// to a waiting receiver (or to the buffer) in arrival order.
package console

import (
	"errors"
	"sync"
)

// ErrNestedRead is returned when Read is called while another Read is
// already suspended waiting for a key - a programming error in the caller.
var ErrNestedRead = errors.New("console: nested read")

// capacity bounds the pending-key queue. Interactive typing never comes
// close to filling it; it exists so a runaway producer can't grow memory
// without bound.
const capacity = 256

// Channel is the Console I/O Channel.
type Channel struct {
	pending chan byte

	mu      sync.Mutex
	reading bool
}

// NewChannel returns an empty Channel.
func NewChannel() *Channel {
	return &Channel{pending: make(chan byte, capacity)}
}

// Push enqueues a codepoint, delivering it to a suspended reader if one is
// waiting, or appending it to the queue otherwise.
func (c *Channel) Push(codepoint byte) {
	c.pending <- codepoint
}

// Status reports whether a key is available without consuming it or
// blocking.
func (c *Channel) Status() bool {
	return len(c.pending) > 0
}

// Read returns the next codepoint, suspending the caller if none is
// queued. It is fatal (ErrNestedRead) to call Read again while a previous
// call is still suspended.
func (c *Channel) Read() (byte, error) {
	c.mu.Lock()
	if c.reading {
		c.mu.Unlock()
		return 0, ErrNestedRead
	}
	c.reading = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.reading = false
		c.mu.Unlock()
	}()

	return <-c.pending, nil
}
