// Package fcb implements the CP/M File Control Block as a zero-copy view
// over the guest's Memory Bus, rather than as a struct that is decoded from
// and re-encoded back into memory on every access.
//
// A guest program is free to treat unused bytes of its FCB as scratch space
// between BDOS calls (many CCP-derived programs do exactly this), so the
// host must recover its own bookkeeping - in particular the open file
// handle - reliably from whatever bytes happen to be there. That's what the
// signed file-descriptor trick in bytes 16..19 is for.
package fcb

import (
	"errors"
	"strings"
)

// Size is the length, in bytes, of an FCB structure.
const Size = 36

// Field offsets within the 36-byte structure.
const (
	offDrive = 0
	offName  = 1
	offType  = 9
	offEx    = 12
	offS1    = 13
	offS2    = 14
	offRC    = 15
	offD     = 16
	offCr    = 32
	offR0    = 33
)

// fdSignature is XORed with the low word of an embedded file descriptor to
// produce the high word; it lets us tell "this looks like a real handle"
// from "this is scratch memory the guest wrote something else into".
const fdSignature = 0xBEEF

// ErrInvalidRecord is returned when a cr/ex/s2 triple (or a combined
// current-record value) violates the encoding invariant.
var ErrInvalidRecord = errors.New("fcb: invalid current-record encoding")

// ErrInvalidFD is returned when the embedded file-descriptor signature
// doesn't check out and the field isn't the all-zero "unopened" pattern.
var ErrInvalidFD = errors.New("fcb: invalid embedded file descriptor")

// Bus is the subset of the Memory Bus that an FCB view needs to read and
// write through to guest memory.
type Bus interface {
	Get(addr uint16) uint8
	Set(addr uint16, value uint8)
	GetRange(addr uint16, size int) []uint8
	SetRange(addr uint16, data ...uint8)
	FillRange(addr uint16, size int, value uint8)
}

// FCB is a view over 36 bytes of a Bus at a fixed address. It holds no
// state of its own: every accessor reads or writes straight through to the
// backing memory, so mutations made by BDOS are visible to the guest (and
// vice versa) immediately.
type FCB struct {
	mem  Bus
	addr uint16
}

// At returns a view over the FCB living at addr in mem.
func At(mem Bus, addr uint16) *FCB {
	return &FCB{mem: mem, addr: addr}
}

// Addr returns the guest address this view is backed by.
func (f *FCB) Addr() uint16 {
	return f.addr
}

// Drive returns the raw drive byte: 0 means "current drive", 1 means A:,
// 2 means B:, and so on. 0x3F is also treated as "current drive" by callers.
func (f *FCB) Drive() uint8 {
	return f.mem.Get(f.addr + offDrive)
}

// SetDrive sets the raw drive byte.
func (f *FCB) SetDrive(d uint8) {
	f.mem.Set(f.addr+offDrive, d)
}

// Name returns the 8-character filename component, space-trimmed, with the
// high bit of every byte ignored (CP/M programs sometimes use bit 7 of the
// filename bytes for attribute flags).
func (f *FCB) Name() string {
	return decodeField(f.mem.GetRange(f.addr+offName, 8))
}

// Type returns the 3-character extension component, decoded the same way
// as Name.
func (f *FCB) Type() string {
	return decodeField(f.mem.GetRange(f.addr+offType, 3))
}

// SetNameType writes the name and extension fields, upper-casing and
// space-padding/truncating them to 8 and 3 characters respectively.
func (f *FCB) SetNameType(name, ext string) {
	f.mem.SetRange(f.addr+offName, padField(name, 8)...)
	f.mem.SetRange(f.addr+offType, padField(ext, 3)...)
}

// FileName returns "NAME.EXT" (no extension: just "NAME"), the form used to
// build a host path.
func (f *FCB) FileName() string {
	name := f.Name()
	typ := f.Type()
	if typ == "" {
		return name
	}
	return name + "." + typ
}

func decodeField(raw []uint8) string {
	var b strings.Builder
	for _, c := range raw {
		c &= 0x7F
		if c > 0x20 {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func padField(s string, n int) []uint8 {
	s = strings.ToUpper(strings.TrimSpace(s))
	out := make([]uint8, n)
	for i := range out {
		out[i] = ' '
	}
	copy(out, s[:min(len(s), n)])
	return out
}

// Ex returns the low byte of the current extent.
func (f *FCB) Ex() uint8 { return f.mem.Get(f.addr + offEx) }

// SetEx sets the low byte of the current extent; ex must be < 32.
func (f *FCB) SetEx(v uint8) error {
	if v >= 32 {
		return ErrInvalidRecord
	}
	f.mem.Set(f.addr+offEx, v)
	return nil
}

// S1 returns the reserved byte.
func (f *FCB) S1() uint8 { return f.mem.Get(f.addr + offS1) }

// S2 returns the high byte of the current extent.
func (f *FCB) S2() uint8 { return f.mem.Get(f.addr + offS2) }

// SetS2 sets the high byte of the current extent; s2 must be <= 16.
func (f *FCB) SetS2(v uint8) error {
	if v > 16 {
		return ErrInvalidRecord
	}
	f.mem.Set(f.addr+offS2, v)
	return nil
}

// RC returns the record count in the current extent.
func (f *FCB) RC() uint8 { return f.mem.Get(f.addr + offRC) }

// SetRC sets the record count in the current extent.
func (f *FCB) SetRC(v uint8) { f.mem.Set(f.addr+offRC, v) }

// Cr returns the current-record-within-extent byte.
func (f *FCB) Cr() uint8 { return f.mem.Get(f.addr + offCr) }

// SetCr sets the current-record-within-extent byte; cr must be < 128.
func (f *FCB) SetCr(v uint8) error {
	if v >= 128 {
		return ErrInvalidRecord
	}
	f.mem.Set(f.addr+offCr, v)
	return nil
}

// CurrentRecord decodes the sequential record position encoded across the
// cr/ex/s2 fields: cr | ex<<7 | s2<<12. It returns ErrInvalidRecord if the
// stored triple violates the invariant (cr<128, ex<32, s2<=16, and s2==16
// implies cr==0 && ex==0).
func (f *FCB) CurrentRecord() (uint32, error) {
	cr, ex, s2 := f.Cr(), f.Ex(), f.S2()

	if cr >= 128 || ex >= 32 || s2 > 16 {
		return 0, ErrInvalidRecord
	}
	if s2 == 16 && (cr != 0 || ex != 0) {
		return 0, ErrInvalidRecord
	}

	return uint32(cr) | uint32(ex)<<7 | uint32(s2)<<12, nil
}

// SetCurrentRecord encodes v back across the cr/ex/s2 fields. v must be in
// [0, 65536].
func (f *FCB) SetCurrentRecord(v uint32) error {
	if v > 65536 {
		return ErrInvalidRecord
	}

	cr := uint8(v & 0x7F)
	ex := uint8((v >> 7) & 0x1F)
	s2 := uint8((v >> 12) & 0x1F)

	if s2 == 16 && (cr != 0 || ex != 0) {
		return ErrInvalidRecord
	}

	f.mem.Set(f.addr+offCr, cr)
	f.mem.Set(f.addr+offEx, ex)
	f.mem.Set(f.addr+offS2, s2)
	return nil
}

// IncrementCurrentRecord advances the sequential record position by one.
func (f *FCB) IncrementCurrentRecord() error {
	rec, err := f.CurrentRecord()
	if err != nil {
		return err
	}
	return f.SetCurrentRecord(rec + 1)
}

// RandomRecord decodes the random-access record number from the three
// r-bytes (little-endian, the third byte is an overflow flag we ignore on
// read).
func (f *FCB) RandomRecord() uint32 {
	r0 := f.mem.Get(f.addr + offR0)
	r1 := f.mem.Get(f.addr + offR0 + 1)
	return uint32(r0) | uint32(r1)<<8
}

// SetRandomRecord encodes v into the three r-bytes, setting the overflow
// byte iff v doesn't fit in 16 bits.
func (f *FCB) SetRandomRecord(v uint32) {
	f.mem.Set(f.addr+offR0, uint8(v))
	f.mem.Set(f.addr+offR0+1, uint8(v>>8))
	if v > 0xFFFF {
		f.mem.Set(f.addr+offR0+2, 1)
	} else {
		f.mem.Set(f.addr+offR0+2, 0)
	}
}

// FD returns the host file descriptor embedded in the allocation area
// (bytes 16..19), validating its signature. A fresh/unopened FCB - all four
// bytes zero - reads back as fd 0 with no error; any other pattern that
// fails the signature check is ErrInvalidFD.
func (f *FCB) FD() (uint16, error) {
	n1 := uint16(f.mem.Get(f.addr+offD)) | uint16(f.mem.Get(f.addr+offD+1))<<8
	n2 := uint16(f.mem.Get(f.addr+offD+2)) | uint16(f.mem.Get(f.addr+offD+3))<<8

	if n1 == 0 && n2 == 0 {
		return 0, nil
	}
	if n1^fdSignature != n2 {
		return 0, ErrInvalidFD
	}
	return n1, nil
}

// SetFD embeds fd into the allocation area, along with its signature word.
// SetFD(0) writes the all-zero "unopened" pattern.
func (f *FCB) SetFD(fd uint16) {
	n2 := uint16(0)
	if fd != 0 {
		n2 = fd ^ fdSignature
	}
	f.mem.Set(f.addr+offD, uint8(fd))
	f.mem.Set(f.addr+offD+1, uint8(fd>>8))
	f.mem.Set(f.addr+offD+2, uint8(n2))
	f.mem.Set(f.addr+offD+3, uint8(n2>>8))
}

// Clear resets the extent-high byte and the embedded file descriptor,
// leaving the name/type/drive fields untouched.
func (f *FCB) Clear() {
	_ = f.SetS2(0)
	f.SetFD(0)
}

// BlankOut writes a "no filename" FCB (drive 0, eleven spaces) at addr -
// the shape the two command-line FCBs at 0x005C/0x006C start out as.
func BlankOut(mem Bus, addr uint16) {
	mem.Set(addr+offDrive, 0)
	mem.FillRange(addr+offName, 11, ' ')
}

// ParseArg decodes a CP/M-style command-line argument ("d:NAME.EXT") and
// writes the drive/name/type fields of the FCB at addr accordingly.
// Wildcards are preserved verbatim in the name/type fields; matching them
// is out of scope (see the Directory Iterator).
func ParseArg(mem Bus, addr uint16, arg string) {
	view := At(mem, addr)

	arg = strings.ToUpper(strings.TrimSpace(arg))

	if len(arg) > 2 && arg[1] == ':' {
		view.SetDrive(arg[0] - 'A' + 1)
		arg = arg[2:]
	} else {
		view.SetDrive(0)
	}

	name, ext, _ := strings.Cut(arg, ".")
	view.SetNameType(name, ext)
}
