package detect

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pkgarch/archscan/pkg/arch"
	"github.com/pkgarch/archscan/pkg/filesystem"
)

const (
	dosMagic       uint16 = 0x5A4D     // "MZ"
	peMagic        uint32 = 0x00004550 // "PE\0\0"
	peOffsetOffset        = 0x3C       // e_lfanew, points to the PE header
)

// ExecutableDetector reads the machine field of a PE image header.
type ExecutableDetector struct{}

func (d *ExecutableDetector) Name() string { return "executable" }

func (d *ExecutableDetector) Match(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".exe")
}

// Detect walks the DOS and PE headers just far enough to read the machine
// field. A file that is too short or whose signatures do not match is not a
// PE image and yields "unknown"; only I/O failures yield an error.
func (d *ExecutableDetector) Detect(ctx context.Context, fsys filesystem.FileSystem, path string) (architecture string, err error) {
	f, err := fsys.Open(ctx, path)
	if err != nil {
		return
	}
	defer func() {
		if e := f.Close(); e != nil {
			Logger.Warn("could not close file correctly", slog.String("file", path), slog.String("error", e.Error()))
		}
	}()

	var buf [4]byte

	if ok, readErr := readAt(f, 0, buf[:2]); readErr != nil || !ok {
		err = readErr
		architecture = string(arch.Unknown)
		return
	}
	if binary.LittleEndian.Uint16(buf[:2]) != dosMagic {
		architecture = string(arch.Unknown)
		return
	}

	if ok, readErr := readAt(f, peOffsetOffset, buf[:4]); readErr != nil || !ok {
		err = readErr
		architecture = string(arch.Unknown)
		return
	}
	peOffset := binary.LittleEndian.Uint32(buf[:4])

	if ok, readErr := readAt(f, int64(peOffset), buf[:4]); readErr != nil || !ok {
		err = readErr
		architecture = string(arch.Unknown)
		return
	}
	if binary.LittleEndian.Uint32(buf[:4]) != peMagic {
		architecture = string(arch.Unknown)
		return
	}

	// Machine field immediately follows the PE signature
	if ok, readErr := readAt(f, int64(peOffset)+4, buf[:2]); readErr != nil || !ok {
		err = readErr
		architecture = string(arch.Unknown)
		return
	}
	architecture = string(arch.FromMachine(binary.LittleEndian.Uint16(buf[:2])))
	return
}

// readAt fills buf from the absolute offset off. ok is false when the file
// ends before buf is full, which header walking reports as "unknown" rather
// than an error: a short file cannot be a PE image, but it was readable.
func readAt(rs io.ReadSeeker, off int64, buf []byte) (ok bool, err error) {
	if _, err = rs.Seek(off, io.SeekStart); err != nil {
		return
	}
	_, err = io.ReadFull(rs, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
		return
	}
	if err != nil {
		return
	}
	ok = true
	return
}
