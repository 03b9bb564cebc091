// Package finder implements the Directory Iterator: the state machine
// behind CP/M's "search first" / "search next" BDOS calls.
//
// Wildcard matching against the FCB's name/type pattern is not implemented:
// every search returns all regular files in the resolved drive directory,
// sorted ascending, one per "search next" call.
package finder

import (
	"os"
	"sort"
	"strings"
)

// Bus is the subset of the Memory Bus the iterator needs to write a
// directory entry into the guest's DMA buffer.
type Bus interface {
	FillRange(addr uint16, size int, value uint8)
	SetRange(addr uint16, data ...uint8)
}

// entrySize is the size of one CP/M directory entry as written into the
// DMA area.
const entrySize = 32

// unusedMarker is CP/M's sentinel byte for an unused directory entry.
const unusedMarker = 0xE5

// Iterator holds the sorted snapshot of one in-progress search.
type Iterator struct {
	names []string
}

// First replaces the iterator's state with a fresh, sorted snapshot of the
// regular files in dir, and returns the first entry (if any).
func (it *Iterator) First(dir string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	it.names = names
	return it.Next()
}

// Next pops the head filename from the current snapshot, if any is left.
func (it *Iterator) Next() (string, bool, error) {
	if len(it.names) == 0 {
		return "", false, nil
	}
	name := it.names[0]
	it.names = it.names[1:]
	return name, true, nil
}

// WriteEntry renders filename (a host "name.ext" or "name" file) into the
// CP/M directory-entry wire format at dma:
//
//   - [dma, dma+32) zeroed
//   - [dma+32, dma+128) filled with 0xE5 (unused-entry sentinel)
//   - [dma+1, dma+12) space-filled
//   - the base name copied (truncated to 8 bytes) at dma+1
//   - the extension, without the dot, copied (truncated to 3 bytes) at dma+9
func WriteEntry(mem Bus, dma uint16, filename string) {
	name, ext, _ := strings.Cut(filename, ".")
	name = strings.ToUpper(name)
	ext = strings.ToUpper(ext)

	mem.FillRange(dma, entrySize, 0x00)
	mem.FillRange(dma+entrySize, 128-entrySize, unusedMarker)
	mem.FillRange(dma+1, 11, ' ')

	mem.SetRange(dma+1, []byte(truncate(name, 8))...)
	mem.SetRange(dma+9, []byte(truncate(ext, 3))...)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
