package fcb

import "testing"

// testBus is a minimal in-memory Bus for exercising FCB views in isolation.
type testBus struct {
	buf [256]uint8
}

func (b *testBus) Get(addr uint16) uint8 { return b.buf[addr] }
func (b *testBus) Set(addr uint16, v uint8) { b.buf[addr] = v }
func (b *testBus) GetRange(addr uint16, size int) []uint8 {
	out := make([]uint8, size)
	copy(out, b.buf[addr:int(addr)+size])
	return out
}
func (b *testBus) SetRange(addr uint16, data ...uint8) {
	copy(b.buf[addr:], data)
}
func (b *testBus) FillRange(addr uint16, size int, v uint8) {
	for i := 0; i < size; i++ {
		b.buf[int(addr)+i] = v
	}
}

func TestNameTypeRoundTrip(t *testing.T) {
	bus := &testBus{}
	f := At(bus, 0)

	f.SetNameType("a", "dat")
	if got := f.Name(); got != "A" {
		t.Fatalf("Name() = %q, want %q", got, "A")
	}
	if got := f.Type(); got != "DAT" {
		t.Fatalf("Type() = %q, want %q", got, "DAT")
	}
	if got := f.FileName(); got != "A.DAT" {
		t.Fatalf("FileName() = %q, want %q", got, "A.DAT")
	}
}

func TestZeroCopyView(t *testing.T) {
	bus := &testBus{}
	f1 := At(bus, 0)
	f2 := At(bus, 0)

	f1.SetNameType("hello", "com")

	if got := f2.Name(); got != "HELLO" {
		t.Fatalf("second view didn't observe first view's write: got %q", got)
	}
}

func TestCurrentRecordRoundTrip(t *testing.T) {
	bus := &testBus{}
	f := At(bus, 0)

	cases := []struct {
		cr, ex, s2 uint8
	}{
		{0, 0, 0},
		{127, 31, 15},
		{1, 2, 3},
	}

	for _, c := range cases {
		if err := f.SetCr(c.cr); err != nil {
			t.Fatalf("SetCr(%d): %v", c.cr, err)
		}
		if err := f.SetEx(c.ex); err != nil {
			t.Fatalf("SetEx(%d): %v", c.ex, err)
		}
		if err := f.SetS2(c.s2); err != nil {
			t.Fatalf("SetS2(%d): %v", c.s2, err)
		}

		rec, err := f.CurrentRecord()
		if err != nil {
			t.Fatalf("CurrentRecord(): %v", err)
		}

		if err := f.SetCurrentRecord(rec); err != nil {
			t.Fatalf("SetCurrentRecord(%d): %v", rec, err)
		}
		if f.Cr() != c.cr || f.Ex() != c.ex || f.S2() != c.s2 {
			t.Fatalf("round-trip mismatch: got (%d,%d,%d) want (%d,%d,%d)",
				f.Cr(), f.Ex(), f.S2(), c.cr, c.ex, c.s2)
		}
	}
}

func TestSetCrRejectsOutOfRange(t *testing.T) {
	bus := &testBus{}
	f := At(bus, 0)

	if err := f.SetCr(128); err == nil {
		t.Fatalf("expected error setting cr=128")
	}
}

func TestS2SixteenRequiresZeroCrEx(t *testing.T) {
	bus := &testBus{}
	f := At(bus, 0)

	_ = f.SetS2(16)
	_ = f.SetCr(0)
	_ = f.SetEx(0)

	if _, err := f.CurrentRecord(); err != nil {
		t.Fatalf("expected valid triple, got %v", err)
	}

	_ = f.SetCr(1)
	if _, err := f.CurrentRecord(); err == nil {
		t.Fatalf("expected invalid triple with s2=16, cr=1")
	}
}

func TestIncrementCurrentRecord(t *testing.T) {
	bus := &testBus{}
	f := At(bus, 0)

	for i := uint32(0); i < 130; i++ {
		if err := f.IncrementCurrentRecord(); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	rec, err := f.CurrentRecord()
	if err != nil {
		t.Fatalf("CurrentRecord(): %v", err)
	}
	if rec != 130 {
		t.Fatalf("CurrentRecord() = %d, want 130", rec)
	}
}

func TestRandomRecordOverflowFlag(t *testing.T) {
	bus := &testBus{}
	f := At(bus, 0)

	f.SetRandomRecord(5)
	if f.mem.Get(f.addr + offR0 + 2) != 0 {
		t.Fatalf("overflow byte set for small record")
	}

	f.SetRandomRecord(0x10001)
	if f.mem.Get(f.addr + offR0 + 2) != 1 {
		t.Fatalf("overflow byte not set for record > 0xFFFF")
	}
	if got := f.RandomRecord(); got != 1 {
		t.Fatalf("RandomRecord() = %d, want 1 (low 16 bits)", got)
	}
}

func TestFDSignature(t *testing.T) {
	bus := &testBus{}
	f := At(bus, 0)

	fd, err := f.FD()
	if err != nil || fd != 0 {
		t.Fatalf("fresh FCB should read fd=0, got (%d, %v)", fd, err)
	}

	f.SetFD(42)
	fd, err = f.FD()
	if err != nil || fd != 42 {
		t.Fatalf("FD() = (%d, %v), want (42, nil)", fd, err)
	}

	// Corrupt the signature word directly and confirm it's fatal.
	bus.Set(f.addr+offD+2, 0xFF)
	bus.Set(f.addr+offD+3, 0xFF)
	if _, err := f.FD(); err != ErrInvalidFD {
		t.Fatalf("expected ErrInvalidFD, got %v", err)
	}
}

func TestClear(t *testing.T) {
	bus := &testBus{}
	f := At(bus, 0)

	f.SetFD(7)
	_ = f.SetS2(3)
	f.Clear()

	if f.S2() != 0 {
		t.Fatalf("Clear() left S2 = %d, want 0", f.S2())
	}
	if fd, err := f.FD(); err != nil || fd != 0 {
		t.Fatalf("Clear() left fd = (%d, %v), want (0, nil)", fd, err)
	}
}

func TestBlankOut(t *testing.T) {
	bus := &testBus{}
	BlankOut(bus, 0)

	f := At(bus, 0)
	if f.Drive() != 0 {
		t.Fatalf("BlankOut left drive = %d, want 0", f.Drive())
	}
	if f.Name() != "" || f.Type() != "" {
		t.Fatalf("BlankOut left non-blank name/type: %q/%q", f.Name(), f.Type())
	}
}

func TestParseArg(t *testing.T) {
	bus := &testBus{}
	ParseArg(bus, 0, "b:hello.com")

	f := At(bus, 0)
	if f.Drive() != 2 {
		t.Fatalf("Drive() = %d, want 2 (B:)", f.Drive())
	}
	if f.Name() != "HELLO" || f.Type() != "COM" {
		t.Fatalf("Name/Type = %q/%q, want HELLO/COM", f.Name(), f.Type())
	}
}
