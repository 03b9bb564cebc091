// Package drives maps CP/M drive letters onto host directories.
package drives

import (
	"errors"
	"fmt"
)

// ErrNotMapped is returned by Resolve when the requested drive has no
// registered host directory; the BDOS dispatcher treats this as fatal.
var ErrNotMapped = errors.New("drives: no directory mapped for drive")

// currentDriveSentinel is an FCB drive byte meaning "use the current
// drive": 0x3F is CP/M's other spelling of it (alongside 0).
const currentDriveSentinel = 0x3F

// Map associates a zero-based drive index (0=A, 1=B, ...) with a host
// directory. Insertion order is irrelevant; keys are unique.
type Map struct {
	dirs    map[uint8]string
	current uint8
}

// New returns an empty drive map with A: selected as current.
func New() *Map {
	return &Map{dirs: make(map[uint8]string)}
}

// Set registers dir as the host directory backing the given drive index.
func (m *Map) Set(drive uint8, dir string) {
	m.dirs[drive] = dir
}

// Exists reports whether drive has a registered directory.
func (m *Map) Exists(drive uint8) bool {
	_, ok := m.dirs[drive]
	return ok
}

// Current returns the currently selected drive index.
func (m *Map) Current() uint8 {
	return m.current
}

// SetCurrent selects drive as current, without checking it is mapped -
// callers are expected to check Exists first (this mirrors BDOS 14's
// contract: selecting an unmapped drive fails without changing state).
func (m *Map) SetCurrent(drive uint8) {
	m.current = drive
}

// Resolve returns the host directory an FCB's drive byte refers to: 0 and
// 0x3F both mean "the current drive"; otherwise the byte is 1-based
// (1=A, 2=B, ...).
func (m *Map) Resolve(fcbDrive uint8) (string, error) {
	drive := m.current
	if fcbDrive != 0 && fcbDrive != currentDriveSentinel {
		drive = fcbDrive - 1
	}

	dir, ok := m.dirs[drive]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrNotMapped, drive)
	}
	return dir, nil
}
