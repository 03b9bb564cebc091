package cpm

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nullbyte-dev/cpmhost/console"
	"github.com/nullbyte-dev/cpmhost/cpuadapt"
	"github.com/nullbyte-dev/cpmhost/drives"
	"github.com/nullbyte-dev/cpmhost/memory"
	"github.com/nullbyte-dev/cpmhost/sink"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCPM(t *testing.T) *CPM {
	t.Helper()
	mem := new(memory.Memory)
	dr := drives.New()
	dr.Set(0, t.TempDir())
	c := New(testLogger(), mem, dr, console.NewChannel(), sink.Null{})
	c.cpu = cpuadapt.New(mem, c, 0, nil)
	return c
}

func TestInstallWritesBootPattern(t *testing.T) {
	c := newTestCPM(t)
	c.install()

	wboot := uint16(cbiosAddress + cbiosEntrySz)
	if got := c.Memory.Get(0x0000); got != 0xC3 {
		t.Fatalf("boot vector opcode = %#02x, want JP (0xC3)", got)
	}
	if got := c.Memory.GetU16(0x0001); got != wboot {
		t.Fatalf("boot vector target = %#04x, want %#04x", got, wboot)
	}

	if got := c.Memory.Get(bdosCallVec); got != 0xC3 {
		t.Fatalf("bdos call vector opcode = %#02x, want JP", got)
	}
	if got := c.Memory.GetU16(bdosCallVec + 1); got != bdosAddress {
		t.Fatalf("bdos call vector target = %#04x, want %#04x", got, uint16(bdosAddress))
	}

	if got := c.Memory.Get(bdosAddress); got != 0xC9 {
		t.Fatalf("bdos entry opcode = %#02x, want RET (0xC9)", got)
	}
	for k := range cbiosNames {
		addr := uint16(cbiosAddress + k*cbiosEntrySz)
		if got := c.Memory.Get(addr); got != 0xC9 {
			t.Fatalf("cbios entry %d opcode = %#02x, want RET", k, got)
		}
	}
}

func TestBreakpointsCoverBootBDOSAndAllCBIOSEntries(t *testing.T) {
	c := newTestCPM(t)
	bps := c.breakpoints()

	want := map[uint16]bool{0x0000: true, bdosAddress: true}
	for k := range cbiosNames {
		want[uint16(cbiosAddress+k*cbiosEntrySz)] = true
	}

	if len(bps) != len(want) {
		t.Fatalf("breakpoints() returned %d addresses, want %d", len(bps), len(want))
	}
	for _, bp := range bps {
		if !want[bp] {
			t.Fatalf("unexpected breakpoint %#04x", bp)
		}
	}
}

func TestExecuteExitsOnBdosTerminate(t *testing.T) {
	c := newTestCPM(t)

	// LD C, 0 ; CALL 0x0005 - BDOS 0 is P_TERMCPM.
	path := filepath.Join(t.TempDir(), "exit.com")
	if err := os.WriteFile(path, []byte{0x0E, 0x00, 0xCD, 0x05, 0x00}, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := c.Execute(context.Background(), path, nil); err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
}

func TestSetCommandLineWritesPascalTail(t *testing.T) {
	c := newTestCPM(t)
	c.install()
	c.setCommandLine([]string{"foo.com", "bar", "baz"})

	tailLen := c.Memory.Get(defaultDMA)
	if tailLen == 0 {
		t.Fatalf("command tail length byte is zero")
	}
	got := string(c.Memory.GetRange(defaultDMA+1, int(tailLen)))
	want := "FOO.COM BAR BAZ"
	if got != want {
		t.Fatalf("command tail = %q, want %q", got, want)
	}
}
