package finder

import (
	"os"
	"path/filepath"
	"testing"
)

type testBus struct {
	buf [256]uint8
}

func (b *testBus) FillRange(addr uint16, size int, v uint8) {
	for i := 0; i < size; i++ {
		b.buf[int(addr)+i] = v
	}
}
func (b *testBus) SetRange(addr uint16, data ...uint8) {
	copy(b.buf[addr:], data)
}

func TestFirstNextAscendingOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"BETA.TXT", "ALPHA.DAT"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	var it Iterator
	name, ok, err := it.First(dir)
	if err != nil || !ok {
		t.Fatalf("First() = (%q, %v, %v)", name, ok, err)
	}
	if name != "ALPHA.DAT" {
		t.Fatalf("First() = %q, want ALPHA.DAT", name)
	}

	name, ok, err = it.Next()
	if err != nil || !ok {
		t.Fatalf("Next() = (%q, %v, %v)", name, ok, err)
	}
	if name != "BETA.TXT" {
		t.Fatalf("Next() = %q, want BETA.TXT", name)
	}

	_, ok, err = it.Next()
	if err != nil || ok {
		t.Fatalf("expected exhausted iterator, got ok=%v err=%v", ok, err)
	}
}

func TestWriteEntryLayout(t *testing.T) {
	bus := &testBus{}
	WriteEntry(bus, 0, "alpha.dat")

	if bus.buf[0] != 0x00 {
		t.Fatalf("entry index byte = %#x, want 0x00", bus.buf[0])
	}

	name := string(bus.buf[1:9])
	if name != "ALPHA   " {
		t.Fatalf("name field = %q, want %q", name, "ALPHA   ")
	}

	ext := string(bus.buf[9:12])
	if ext != "DAT" {
		t.Fatalf("ext field = %q, want DAT", ext)
	}

	for i := 32; i < 128; i++ {
		if bus.buf[i] != unusedMarker {
			t.Fatalf("byte %d = %#x, want 0xE5", i, bus.buf[i])
		}
	}
}
