// Package cpm is the CORE of the emulator: it installs the boot trampoline,
// dispatches BDOS and CBIOS calls, and runs the cooperative scheduler loop
// that interleaves CPU stepping with suspending console reads.
package cpm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/nullbyte-dev/cpmhost/console"
	"github.com/nullbyte-dev/cpmhost/cpuadapt"
	"github.com/nullbyte-dev/cpmhost/drives"
	"github.com/nullbyte-dev/cpmhost/fcb"
	"github.com/nullbyte-dev/cpmhost/finder"
	"github.com/nullbyte-dev/cpmhost/memory"
	"github.com/nullbyte-dev/cpmhost/sink"
)

var (
	// ErrExit is returned by the BDOS 0 (P_TERMCPM) handler. The scheduler
	// treats it as a clean exit and Execute returns nil, as it does when the
	// guest reaches the warm-boot vector.
	ErrExit = errors.New("cpm: exit")

	// ErrHalt is returned when the Z80 core executed a HALT instruction
	// rather than hitting one of our breakpoints.
	ErrHalt = errors.New("cpm: halt")

	// ErrProgrammingError wraps every fatal shim-level condition: invalid
	// FCB encodings, a CBIOS PC not aligned to an entry, a missing drive
	// mapping, or an operation against an unopened FCB.
	ErrProgrammingError = errors.New("cpm: programming error")
)

// Memory-layout constants.
const (
	loadAddress  = 0x0100
	bdosCallVec  = 0x0005
	bdosAddress  = 0xFE00
	cbiosAddress = 0xFF00
	cbiosEntrySz = 3
	defaultDMA   = 0x0080
	fcb1Address  = 0x005C
	fcb2Address  = 0x006C
)

// cbiosNames names the 17 CBIOS jump-table entries in order; only the
// console ones (indices 2, 3, 4) are live.
var cbiosNames = []string{
	"BOOT", "WBOOT", "CONST", "CONIN", "CONOUT", "LIST", "PUNCH", "READER",
	"HOME", "SELDSK", "SETTRK", "SETSEC", "SETDMA", "READ", "WRITE",
	"LISTST", "SECTRAN",
}

// yieldEvery is how many dispatch cycles the scheduler runs before giving
// the host scheduler a chance to run other goroutines (the keyboard
// producer, in particular).
const yieldEvery = 100_000

// openFile is a cached, still-open host file handle.
type openFile struct {
	f *os.File
}

// CPM holds the whole of the emulator's live state.
type CPM struct {
	Logger *slog.Logger

	Memory  *memory.Memory
	Drives  *drives.Map
	Console *console.Channel
	Printer sink.Sink

	// DumpAssembly switches on a best-effort per-breakpoint trace.
	DumpAssembly bool

	cpu    *cpuadapt.CPU
	dma    uint16
	files  map[uint16]*openFile
	nextFD uint16
	find   finder.Iterator
	ansi   ansiState
}

// New constructs an emulator around the given collaborators. Memory,
// Drives, Console and Printer must all be non-nil; Printer may be
// sink.Null{} to discard printer output.
func New(logger *slog.Logger, mem *memory.Memory, dr *drives.Map, con *console.Channel, printer sink.Sink) *CPM {
	return &CPM{
		Logger:  logger,
		Memory:  mem,
		Drives:  dr,
		Console: con,
		Printer: printer,
		dma:     defaultDMA,
		files:   make(map[uint16]*openFile),
	}
}

// breakpoints returns the fixed set of addresses the scheduler must stop
// at: the warm-boot vector, the BDOS trampoline, and all 17 CBIOS entries.
func (c *CPM) breakpoints() []uint16 {
	bps := make([]uint16, 0, 2+len(cbiosNames))
	bps = append(bps, 0x0000, bdosAddress)
	for k := range cbiosNames {
		bps = append(bps, uint16(cbiosAddress+k*cbiosEntrySz))
	}
	return bps
}

// install writes the boot/trampoline byte patterns and blanks the two
// command-line FCBs. Must run after the program image is loaded, since
// LoadFile zeroes the whole address space first.
func (c *CPM) install() {
	wboot := uint16(cbiosAddress + 1*cbiosEntrySz)
	c.Memory.SetRange(0x0000, 0xC3, uint8(wboot), uint8(wboot>>8)) // JP WBOOT
	c.Memory.SetRange(bdosCallVec, 0xC3, uint8(bdosAddress&0xFF), uint8(bdosAddress>>8))
	c.Memory.Set(bdosAddress, 0xC9)
	for k := range cbiosNames {
		c.Memory.Set(uint16(cbiosAddress+k*cbiosEntrySz), 0xC9)
	}

	fcb.BlankOut(c.Memory, fcb1Address)
	fcb.BlankOut(c.Memory, fcb2Address)
}

// setCommandLine populates FCB #1/#2 from the first two CLI arguments and
// writes the full tail as a Pascal (length-prefixed) string at the default
// DMA address, the command-tail convention every CP/M program expects.
func (c *CPM) setCommandLine(args []string) {
	if len(args) > 0 {
		fcb.ParseArg(c.Memory, fcb1Address, args[0])
	}
	if len(args) > 1 {
		fcb.ParseArg(c.Memory, fcb2Address, args[1])
	}

	tail := strings.ToUpper(strings.TrimSpace(strings.Join(args, " ")))
	if len(tail) > 127 {
		tail = tail[:127]
	}
	c.Memory.Set(defaultDMA, uint8(len(tail)))
	if len(tail) > 0 {
		c.Memory.SetRange(defaultDMA+1, []byte(tail)...)
	}
}

// Execute loads path at 0x0100, installs the boot trampoline, populates the
// command line, and runs the guest to completion.
func (c *CPM) Execute(ctx context.Context, path string, args []string) error {
	if err := c.Memory.LoadFile(loadAddress, path); err != nil {
		return fmt.Errorf("cpm: loading %s: %w", path, err)
	}
	c.install()
	c.setCommandLine(args)
	c.dma = defaultDMA

	c.cpu = cpuadapt.New(c.Memory, c, loadAddress, c.breakpoints())

	return c.run(ctx)
}

// run is the Scheduler: it steps the CPU to the next breakpoint, dispatches
// BDOS/CBIOS/exit on match, and yields to the host scheduler periodically
// so the keyboard producer goroutine gets a chance to run.
func (c *CPM) run(ctx context.Context) error {
	cycles := 0
	for {
		pc, err := c.cpu.Run(ctx)
		if errors.Is(err, cpuadapt.ErrHalted) {
			return ErrHalt
		}
		if err != nil {
			return err
		}

		if c.DumpAssembly {
			c.Logger.Debug("pc", slog.String("addr", fmt.Sprintf("0x%04X", pc)),
				slog.String("opcode", fmt.Sprintf("0x%02X", c.Memory.Get(pc))))
		}

		switch {
		case pc == 0:
			return nil
		case pc == bdosAddress:
			if err := c.dispatchBDOS(); err != nil {
				if errors.Is(err, ErrExit) {
					return nil
				}
				return err
			}
			c.returnFromCall()
		case pc >= cbiosAddress && pc < cbiosAddress+uint16(len(cbiosNames))*cbiosEntrySz:
			if err := c.dispatchCBIOS(pc); err != nil {
				return err
			}
			c.returnFromCall()
		default:
			c.Logger.Error("scheduler: unexpected breakpoint",
				slog.String("pc", fmt.Sprintf("0x%04X", pc)))
		}

		cycles++
		if cycles%yieldEvery == 0 {
			runtime.Gosched()
		}
	}
}

// returnFromCall simulates the trailing RET at the BDOS/CBIOS address: the
// byte is really there (for the boot-pattern invariant), but we pop the
// return address ourselves rather than letting the CPU fetch it, since our
// breakpoints fire before the RET opcode executes.
func (c *CPM) returnFromCall() {
	ret := c.Memory.GetU16(c.cpu.SP())
	c.cpu.SetSP(c.cpu.SP() + 2)
	c.cpu.SetPC(ret)
}

// In handles Z80 port reads. No supported program uses port I/O for
// anything but the RST trampoline (write-only); reads always return 0.
func (c *CPM) In(port uint8) uint8 {
	return 0
}

// Out handles Z80 port writes. Port 0xFF is the RST-compatibility
// trampoline some CP/M binaries (Microsoft BASIC derivatives among them)
// use instead of CALL 0x0005: val is the BDOS function code, dispatched
// exactly as if the guest had gone through 0x0005, with DE still carrying
// whatever argument the handler expects.
func (c *CPM) Out(port uint8, val uint8) {
	if port != 0xFF {
		return
	}
	if err := c.dispatchBDOSCode(val); err != nil && !errors.Is(err, ErrExit) {
		c.Logger.Error("RST-trampoline BDOS call failed",
			slog.Int("syscall", int(val)), slog.String("error", err.Error()))
	}
}
