package cpuadapt

import (
	"context"
	"testing"
)

type testBus struct {
	buf [65536]uint8
}

func (b *testBus) Get(addr uint16) uint8        { return b.buf[addr] }
func (b *testBus) Set(addr uint16, value uint8) { b.buf[addr] = value }

type testIO struct{}

func (testIO) In(addr uint8) uint8       { return 0 }
func (testIO) Out(addr uint8, val uint8) {}

func TestRunStopsImmediatelyAtEntryBreakpoint(t *testing.T) {
	bus := &testBus{}
	// If Run() executed anything before honoring the breakpoint, this
	// HALT would surface as ErrHalted instead.
	bus.buf[0x0010] = 0x76 // HALT

	cpu := New(bus, testIO{}, 0x0010, []uint16{0x0010})

	pc, err := cpu.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want nil (breakpoint)", err)
	}
	if pc != 0x0010 {
		t.Fatalf("Run() PC = %#04x, want 0x0010", pc)
	}
}

func TestRunHaltsWithoutBreakpoints(t *testing.T) {
	bus := &testBus{}
	bus.buf[0x0100] = 0x76 // HALT

	cpu := New(bus, testIO{}, 0x0100, nil)

	_, err := cpu.Run(context.Background())
	if err != ErrHalted {
		t.Fatalf("Run() error = %v, want ErrHalted", err)
	}
}

func TestRegisterAccessors(t *testing.T) {
	bus := &testBus{}
	cpu := New(bus, testIO{}, 0, nil)

	cpu.SetC(5)
	if got := cpu.C(); got != 5 {
		t.Fatalf("C() = %d, want 5", got)
	}

	cpu.SetPC(0x1234)
	if got := cpu.PC(); got != 0x1234 {
		t.Fatalf("PC() = %#04x, want 0x1234", got)
	}

	cpu.SetSP(0xFFFE)
	if got := cpu.SP(); got != 0xFFFE {
		t.Fatalf("SP() = %#04x, want 0xFFFE", got)
	}

	cpu.SetResult(0x42)
	if got := cpu.A(); got != 0x42 {
		t.Fatalf("A() = %#02x, want 0x42", got)
	}
}
