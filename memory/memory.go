// Package memory implements the Memory Bus: the flat 64KiB address space
// the emulated Z80 CPU and the BDOS/CBIOS dispatchers read and write.
//
// There is no contention modelling, no port I/O, and no alignment
// requirement - every address is readable and writable as a single byte.
package memory

import "os"

// Size is the size, in bytes, of the address space we emulate.
const Size = 65536

// Memory provides the flat 64KiB byte array our guest runs within.
type Memory struct {
	buf [Size]uint8
}

// Get returns a byte at addr of memory.
func (m *Memory) Get(addr uint16) uint8 {
	return m.buf[addr]
}

// Set sets a byte at addr of memory.
func (m *Memory) Set(addr uint16, value uint8) {
	m.buf[addr] = value
}

// GetU16 returns a little-endian word from the given address of memory.
func (m *Memory) GetU16(addr uint16) uint16 {
	l := m.Get(addr)
	h := m.Get(addr + 1)
	return (uint16(h) << 8) | uint16(l)
}

// SetRange copies bytes from data into memory, starting at addr.
func (m *Memory) SetRange(addr uint16, data ...uint8) {
	copy(m.buf[int(addr):int(addr)+len(data)], data)
}

// FillRange fills size bytes of memory, from addr, with value.
func (m *Memory) FillRange(addr uint16, size int, value uint8) {
	for size > 0 {
		m.buf[addr] = value
		addr++
		size--
	}
}

// GetRange returns a copy of size bytes of memory, starting at addr.
func (m *Memory) GetRange(addr uint16, size int) []uint8 {
	ret := make([]uint8, 0, size)
	for size > 0 {
		ret = append(ret, m.buf[addr])
		addr++
		size--
	}
	return ret
}

// LoadFile zeroes the address space and loads the named file at addr.
func (m *Memory) LoadFile(addr uint16, name string) error {
	for i := range m.buf {
		m.buf[i] = 0x00
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}

	m.SetRange(addr, data...)
	return nil
}
