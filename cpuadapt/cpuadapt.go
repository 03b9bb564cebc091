// Package cpuadapt adapts koron-go/z80's instruction-accurate Z80
// interpreter to the narrow stepper contract the Scheduler needs: reset to
// an entry point, run until one of a fixed set of breakpoints is reached,
// and read/write the handful of registers the BDOS/CBIOS dispatchers care
// about.
package cpuadapt

import (
	"context"
	"errors"

	"github.com/koron-go/z80"
)

// Bus is the subset of the Memory Bus the CPU needs: byte-addressable
// read/write over the full guest address space.
type Bus interface {
	Get(addr uint16) uint8
	Set(addr uint16, value uint8)
}

// CPU wraps a z80.CPU, hiding its States/BreakPoints plumbing behind
// named accessors.
type CPU struct {
	inner z80.CPU
}

// New constructs a CPU over mem (memory bus) and io (port I/O, typically
// satisfied by the same type that owns the BDOS dispatcher), with PC set
// to entry and the given breakpoint set installed.
func New(mem Bus, io z80.IO, entry uint16, breakpoints []uint16) *CPU {
	c := &CPU{
		inner: z80.CPU{
			States: z80.States{
				SPR: z80.SPR{PC: entry},
			},
			Memory: mem,
			IO:     io,
		},
	}
	c.inner.BreakPoints = make(map[uint16]struct{}, len(breakpoints))
	for _, bp := range breakpoints {
		c.inner.BreakPoints[bp] = struct{}{}
	}
	return c
}

// ErrHalted is returned by Run when the CPU executed a HALT instruction
// rather than hitting a breakpoint.
var ErrHalted = errors.New("cpuadapt: halted")

// Run executes instructions until a breakpoint address is reached (in
// which case it returns that address and a nil error) or the CPU halts
// (ErrHalted).
func (c *CPU) Run(ctx context.Context) (uint16, error) {
	err := c.inner.Run(ctx)
	if err == nil {
		return c.inner.PC, ErrHalted
	}
	if !errors.Is(err, z80.ErrBreakPoint) {
		return c.inner.PC, err
	}
	return c.inner.PC, nil
}

// PC returns the current program counter.
func (c *CPU) PC() uint16 { return c.inner.PC }

// SetPC overwrites the program counter, used to simulate the trailing
// RET after a BDOS/CBIOS dispatch completes.
func (c *CPU) SetPC(v uint16) { c.inner.PC = v }

// SP returns the current stack pointer.
func (c *CPU) SP() uint16 { return c.inner.SP }

// SetSP overwrites the stack pointer.
func (c *CPU) SetSP(v uint16) { c.inner.SP = v }

// C returns register C (the BDOS/CBIOS function-code register).
func (c *CPU) C() uint8 { return c.inner.States.BC.Lo }

// SetC sets register C.
func (c *CPU) SetC(v uint8) { c.inner.States.BC.Lo = v }

// E returns register E.
func (c *CPU) E() uint8 { return c.inner.States.DE.Lo }

// DE returns the 16-bit DE register pair.
func (c *CPU) DE() uint16 { return c.inner.States.DE.U16() }

// SetDE overwrites the 16-bit DE register pair, used by tests driving a
// BDOS handler directly without a running guest program.
func (c *CPU) SetDE(v uint16) { c.inner.States.DE.SetU16(v) }

// SetResult sets A (and mirrors into L, with H and B zeroed), the
// near-universal BDOS return convention.
func (c *CPU) SetResult(a uint8) {
	c.inner.States.AF.Hi = a
	c.inner.States.AF.Lo = 0
	c.inner.States.HL.Hi = 0
	c.inner.States.HL.Lo = a
	c.inner.States.BC.Hi = 0
}

// SetA sets register A without touching HL/B, for the rarer calls that
// don't mirror into L.
func (c *CPU) SetA(v uint8) { c.inner.States.AF.Hi = v }

// A returns register A.
func (c *CPU) A() uint8 { return c.inner.States.AF.Hi }
