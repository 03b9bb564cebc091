// Package termkbd adapts a real terminal into the Console I/O Channel: a
// background goroutine polls raw keystrokes via termbox-go and pushes them
// into a console.Channel, so the Scheduler never has to poll the terminal
// itself.
package termkbd

import (
	"context"
	"fmt"
	"os"

	"github.com/nsf/termbox-go"
	"golang.org/x/term"

	"github.com/nullbyte-dev/cpmhost/console"
)

// ctrlC is the byte value of Ctrl-C, which this driver treats specially:
// instead of being pushed as input, it invokes the configured shutdown
// callback so a keyboard interrupt still reaches the scheduler even while
// the guest is blocked on a console read.
const ctrlC = 0x03

// Source drives a console.Channel from the real terminal, in raw mode.
type Source struct {
	ch *console.Channel

	// OnInterrupt is invoked (from the polling goroutine) when Ctrl-C is
	// read. It may be nil, in which case Ctrl-C is delivered as ordinary
	// input like any other key.
	OnInterrupt func()

	oldState *term.State
	cancel   context.CancelFunc
}

// New returns a Source that will feed ch once Setup is called.
func New(ch *console.Channel) *Source {
	return &Source{ch: ch}
}

// Setup switches the controlling terminal into raw mode, initializes
// termbox, and starts the background polling goroutine.
func (s *Source) Setup() error {
	var err error
	s.oldState, err = term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("termkbd: raw mode: %w", err)
	}

	if err := termbox.Init(); err != nil {
		_ = term.Restore(int(os.Stdin.Fd()), s.oldState)
		return fmt.Errorf("termkbd: termbox init: %w", err)
	}

	// termbox hides the cursor; CP/M programs expect to see one.
	fmt.Print("\x1b[?25h")

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.pollKeyboard(ctx)

	return nil
}

// pollKeyboard runs in its own goroutine for the life of the Source,
// pushing each keystroke into the console channel.
func (s *Source) pollKeyboard(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := termbox.PollEvent()
		if ev.Type != termbox.EventKey {
			continue
		}

		var b byte
		if ev.Ch != 0 {
			b = byte(ev.Ch)
		} else {
			b = byte(ev.Key)
		}

		s.handleByte(b)
	}
}

// handleByte routes one polled byte: Ctrl-C goes to OnInterrupt (if set),
// everything else is pushed to the channel. Split out from pollKeyboard so
// the routing decision can be tested without a real termbox event loop.
func (s *Source) handleByte(b byte) {
	if b == ctrlC && s.OnInterrupt != nil {
		s.OnInterrupt()
		return
	}
	s.ch.Push(b)
}

// PendingInput reports whether a keystroke is available, preferring the
// channel's own queue but falling back to a direct select(2) probe of
// stdin to cover the brief window after Setup before the first termbox
// event has been delivered.
func (s *Source) PendingInput() bool {
	return s.ch.Status() || rawPending()
}

// TearDown stops the polling goroutine, closes termbox, and restores the
// terminal's prior mode. Safe to call even if Setup failed partway.
func (s *Source) TearDown() {
	if s.cancel != nil {
		s.cancel()
	}
	termbox.Close()
	if s.oldState != nil {
		_ = term.Restore(int(os.Stdin.Fd()), s.oldState)
	}
}
