//go:build unix

package termkbd

import (
	"os"

	"golang.org/x/sys/unix"
)

// rawPending probes stdin directly with select(2), bypassing the
// termbox-fed channel entirely. termbox's own event loop can take a moment
// to spin up after Setup returns; CBIOS CONST callers that race Setup can
// consult this instead of trusting an empty console.Channel.
func rawPending() bool {
	fds := &unix.FdSet{}
	fds.Set(int(os.Stdin.Fd()))

	tv := unix.Timeval{Usec: 200}
	n, err := unix.Select(1, fds, nil, nil, &tv)
	if err != nil {
		return false
	}
	return n > 0
}
