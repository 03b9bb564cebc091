// CBIOS jump-table dispatch. Reference: https://www.seasip.info/Cpm/bios.html
package cpm

import (
	"fmt"
	"log/slog"
)

// dispatchCBIOS maps a breakpoint PC inside the CBIOS jump table back to an
// entry index and runs the matching handler. pc not falling on a 3-byte
// boundary is a programming error: it means something jumped into the
// middle of a CBIOS stub, which should never happen with our fixed table.
func (c *CPM) dispatchCBIOS(pc uint16) error {
	offset := pc - cbiosAddress
	if offset%cbiosEntrySz != 0 {
		return fmt.Errorf("%w: cbios pc %#04x not entry-aligned", ErrProgrammingError, pc)
	}
	index := int(offset / cbiosEntrySz)
	name := cbiosNames[index]

	c.Logger.Debug("CBIOS call", slog.String("name", name), slog.Int("index", index))

	switch name {
	case "CONST":
		if c.Console.Status() {
			c.cpu.SetResult(0xFF)
		} else {
			c.cpu.SetResult(0x00)
		}
	case "CONIN":
		ch, err := c.Console.Read()
		if err != nil {
			return fmt.Errorf("cpm: console read: %w", err)
		}
		c.cpu.SetResult(ch)
	case "CONOUT":
		c.writeConsole(c.cpu.C())
	default:
		c.Logger.Error("unhandled CBIOS call", slog.String("name", name))
	}
	return nil
}
