// BDOS function-call dispatch. Reference: https://www.seasip.info/Cpm/bdos.html
package cpm

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nullbyte-dev/cpmhost/fcb"
	"github.com/nullbyte-dev/cpmhost/finder"
)

// bdosHandler is the signature every BDOS function implements.
type bdosHandler func(c *CPM) error

var bdosTable = map[uint8]struct {
	desc string
	fn   bdosHandler
}{
	0:  {"P_TERMCPM", bdosExit},
	1:  {"C_READ", bdosConin},
	2:  {"C_WRITE", bdosConout},
	5:  {"L_WRITE", bdosListWrite},
	6:  {"C_RAWIO", bdosRawIO},
	11: {"C_STAT", bdosConsoleStatus},
	13: {"DRV_ALLRESET", bdosDriveAllReset},
	14: {"DRV_SET", bdosDriveSet},
	15: {"F_OPEN", bdosOpen},
	16: {"F_CLOSE", bdosClose},
	17: {"F_SFIRST", bdosSearchFirst},
	18: {"F_SNEXT", bdosSearchNext},
	19: {"F_DELETE", bdosDelete},
	20: {"F_READ", bdosReadSeq},
	21: {"F_WRITE", bdosWriteSeq},
	22: {"F_MAKE", bdosMake},
	23: {"F_RENAME", bdosRename},
	25: {"DRV_GET", bdosGetDrive},
	26: {"F_DMAOFF", bdosSetDMA},
	33: {"F_READRAND", bdosReadRand},
	34: {"F_WRITERAND", bdosWriteRand},
	35: {"F_SIZE", bdosComputeSize},
}

// dispatchBDOS reads the function code from register C and runs the
// matching handler. An unrecognized code is logged and otherwise ignored,
// per the non-fatal contract for unhandled calls.
func (c *CPM) dispatchBDOS() error {
	return c.dispatchBDOSCode(c.cpu.C())
}

func (c *CPM) dispatchBDOSCode(code uint8) error {
	entry, ok := bdosTable[code]
	if !ok {
		c.Logger.Error("unhandled BDOS call", slog.Int("function", int(code)))
		return nil
	}
	c.Logger.Debug("BDOS call", slog.String("name", entry.desc), slog.Int("function", int(code)))
	return entry.fn(c)
}

func bdosExit(c *CPM) error {
	return ErrExit
}

func bdosConin(c *CPM) error {
	ch, err := c.Console.Read()
	if err != nil {
		return fmt.Errorf("cpm: console read: %w", err)
	}
	c.cpu.SetResult(ch)
	return nil
}

func bdosConout(c *CPM) error {
	c.writeConsole(c.cpu.E())
	return nil
}

func bdosListWrite(c *CPM) error {
	if err := c.Printer.Write([]byte{c.cpu.E()}); err != nil {
		return fmt.Errorf("cpm: printer write: %w", err)
	}
	return nil
}

// bdosRawIO implements the one sub-case that matters here: E=0xFF is a
// non-blocking poll-and-dequeue, anything else writes a character to the
// console.
func bdosRawIO(c *CPM) error {
	if c.cpu.E() == 0xFF {
		if c.Console.Status() {
			ch, err := c.Console.Read()
			if err != nil {
				return fmt.Errorf("cpm: console read: %w", err)
			}
			c.cpu.SetResult(ch)
		} else {
			c.cpu.SetResult(0x00)
		}
		return nil
	}
	c.writeConsole(c.cpu.E())
	c.cpu.SetResult(0x00)
	return nil
}

func bdosConsoleStatus(c *CPM) error {
	if c.Console.Status() {
		c.cpu.SetResult(0xFF)
	} else {
		c.cpu.SetResult(0x00)
	}
	return nil
}

func bdosDriveAllReset(c *CPM) error {
	c.Drives.SetCurrent(0)
	c.dma = defaultDMA
	c.cpu.SetResult(0x00)
	return nil
}

// bdosDriveSet selects the current drive. DE's low byte is 0-based (0=A:),
// the same convention drives.Map keys on directly.
func bdosDriveSet(c *CPM) error {
	drive := c.cpu.E()
	if !c.Drives.Exists(drive) {
		c.cpu.SetResult(0xFF)
		return nil
	}
	c.Drives.SetCurrent(drive)
	c.cpu.SetResult(0x00)
	return nil
}

func (c *CPM) hostPath(view *fcb.FCB) (string, error) {
	dir, err := c.Drives.Resolve(view.Drive())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProgrammingError, err)
	}
	return filepath.Join(dir, view.FileName()), nil
}

func (c *CPM) allocFD(f *os.File) uint16 {
	c.nextFD++
	c.files[c.nextFD] = &openFile{f: f}
	return c.nextFD
}

func bdosOpen(c *CPM) error {
	view := fcb.At(c.Memory, c.cpu.DE())
	view.Clear()

	path, err := c.hostPath(view)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		c.cpu.SetResult(0xFF)
		return nil
	}

	fd := c.allocFD(f)
	view.SetFD(fd)
	c.cpu.SetResult(0x00)
	return nil
}

func bdosClose(c *CPM) error {
	view := fcb.At(c.Memory, c.cpu.DE())
	fd, err := view.FD()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProgrammingError, err)
	}
	obj, ok := c.files[fd]
	if fd == 0 || !ok {
		return fmt.Errorf("%w: close of an unopened FCB", ErrProgrammingError)
	}

	if err := obj.f.Close(); err != nil {
		return fmt.Errorf("cpm: closing file: %w", err)
	}
	delete(c.files, fd)
	view.SetFD(0)
	c.cpu.SetResult(0x00)
	return nil
}

func bdosSearchFirst(c *CPM) error {
	view := fcb.At(c.Memory, c.cpu.DE())
	dir, err := c.Drives.Resolve(view.Drive())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProgrammingError, err)
	}

	name, ok, err := c.find.First(dir)
	if err != nil || !ok {
		c.cpu.SetResult(0xFF)
		return nil
	}
	finder.WriteEntry(c.Memory, c.dma, name)
	c.cpu.SetResult(0x00)
	return nil
}

func bdosSearchNext(c *CPM) error {
	name, ok, err := c.find.Next()
	if err != nil || !ok {
		c.cpu.SetResult(0xFF)
		return nil
	}
	finder.WriteEntry(c.Memory, c.dma, name)
	c.cpu.SetResult(0x00)
	return nil
}

func bdosDelete(c *CPM) error {
	view := fcb.At(c.Memory, c.cpu.DE())
	path, err := c.hostPath(view)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		c.cpu.SetResult(0xFF)
		return nil
	}
	c.cpu.SetResult(0x00)
	return nil
}

func (c *CPM) openFileForFCB(view *fcb.FCB) (*openFile, error) {
	fd, err := view.FD()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProgrammingError, err)
	}
	obj, ok := c.files[fd]
	if fd == 0 || !ok {
		return nil, fmt.Errorf("%w: operation on an unopened FCB", ErrProgrammingError)
	}
	return obj, nil
}

func bdosReadSeq(c *CPM) error {
	view := fcb.At(c.Memory, c.cpu.DE())
	obj, err := c.openFileForFCB(view)
	if err != nil {
		return err
	}

	rec, err := view.CurrentRecord()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProgrammingError, err)
	}

	buf := make([]byte, blockSize)
	n, rerr := obj.f.ReadAt(buf, int64(rec)*blockSize)
	if rerr != nil && !errors.Is(rerr, io.EOF) {
		return fmt.Errorf("cpm: reading file: %w", rerr)
	}

	switch {
	case n == 0:
		c.cpu.SetResult(0x01)
		return nil
	case n < blockSize:
		for i := n; i < blockSize; i++ {
			buf[i] = 0x1A
		}
	}

	c.Memory.SetRange(c.dma, buf...)
	if err := view.IncrementCurrentRecord(); err != nil {
		return fmt.Errorf("%w: %v", ErrProgrammingError, err)
	}
	c.cpu.SetResult(0x00)
	return nil
}

func bdosWriteSeq(c *CPM) error {
	view := fcb.At(c.Memory, c.cpu.DE())
	obj, err := c.openFileForFCB(view)
	if err != nil {
		return err
	}

	rec, err := view.CurrentRecord()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProgrammingError, err)
	}

	data := c.Memory.GetRange(c.dma, blockSize)
	if _, err := obj.f.WriteAt(data, int64(rec)*blockSize); err != nil {
		return fmt.Errorf("cpm: writing file: %w", err)
	}

	if err := view.IncrementCurrentRecord(); err != nil {
		return fmt.Errorf("%w: %v", ErrProgrammingError, err)
	}
	c.cpu.SetResult(0x00)
	return nil
}

func bdosMake(c *CPM) error {
	view := fcb.At(c.Memory, c.cpu.DE())
	view.Clear()

	path, err := c.hostPath(view)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		c.cpu.SetResult(0xFF)
		return nil
	}

	fd := c.allocFD(f)
	view.SetFD(fd)
	c.cpu.SetResult(0x00)
	return nil
}

func bdosRename(c *CPM) error {
	srcView := fcb.At(c.Memory, c.cpu.DE())
	dstView := fcb.At(c.Memory, c.cpu.DE()+16)

	src, err := c.hostPath(srcView)
	if err != nil {
		return err
	}
	dst, err := c.hostPath(dstView)
	if err != nil {
		return err
	}

	if err := os.Rename(src, dst); err != nil {
		c.cpu.SetResult(0xFF)
		return nil
	}
	c.cpu.SetResult(0x00)
	return nil
}

func bdosGetDrive(c *CPM) error {
	c.cpu.SetResult(c.Drives.Current())
	return nil
}

func bdosSetDMA(c *CPM) error {
	c.dma = c.cpu.DE()
	c.cpu.SetResult(0x00)
	return nil
}

const blockSize = 128

func bdosReadRand(c *CPM) error {
	view := fcb.At(c.Memory, c.cpu.DE())
	obj, err := c.openFileForFCB(view)
	if err != nil {
		return err
	}

	record := view.RandomRecord()
	buf := make([]byte, blockSize)
	n, rerr := obj.f.ReadAt(buf, int64(record)*blockSize)
	if rerr != nil && !errors.Is(rerr, io.EOF) {
		return fmt.Errorf("cpm: reading file: %w", rerr)
	}

	switch {
	case n == 0:
		c.cpu.SetResult(0x01)
		return nil
	case n < blockSize:
		for i := n; i < blockSize; i++ {
			buf[i] = 0x1A
		}
	}

	c.Memory.SetRange(c.dma, buf...)
	if err := view.SetCurrentRecord(record); err != nil {
		return fmt.Errorf("%w: %v", ErrProgrammingError, err)
	}
	c.cpu.SetResult(0x00)
	return nil
}

func bdosWriteRand(c *CPM) error {
	view := fcb.At(c.Memory, c.cpu.DE())
	obj, err := c.openFileForFCB(view)
	if err != nil {
		return err
	}

	record := view.RandomRecord()
	fpos := int64(record) * blockSize

	fi, err := obj.f.Stat()
	if err != nil {
		return fmt.Errorf("cpm: stat for write-rand: %w", err)
	}

	if padding := fpos - fi.Size(); padding > 0 {
		zeros := make([]byte, padding)
		if _, err := obj.f.WriteAt(zeros, fi.Size()); err != nil {
			return fmt.Errorf("cpm: extending file: %w", err)
		}
	}

	data := c.Memory.GetRange(c.dma, blockSize)
	if _, err := obj.f.WriteAt(data, fpos); err != nil {
		return fmt.Errorf("cpm: writing file: %w", err)
	}
	if err := view.SetCurrentRecord(record); err != nil {
		return fmt.Errorf("%w: %v", ErrProgrammingError, err)
	}
	c.cpu.SetResult(0x00)
	return nil
}

func bdosComputeSize(c *CPM) error {
	view := fcb.At(c.Memory, c.cpu.DE())
	path, err := c.hostPath(view)
	if err != nil {
		return err
	}

	fi, err := os.Stat(path)
	if err != nil {
		c.cpu.SetResult(0xFF)
		return nil
	}

	records := uint32(fi.Size() / blockSize)
	if fi.Size()%blockSize != 0 {
		records++
	}
	view.SetRandomRecord(records)
	c.cpu.SetResult(0x00)
	return nil
}
