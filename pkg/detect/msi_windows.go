//go:build windows

package detect

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/pkgarch/archscan/pkg/arch"
	"github.com/pkgarch/archscan/pkg/filesystem"
)

var (
	modMsi = windows.NewLazySystemDLL("msi.dll")

	procMsiOpenDatabaseW           = modMsi.NewProc("MsiOpenDatabaseW")
	procMsiGetSummaryInformationW  = modMsi.NewProc("MsiGetSummaryInformationW")
	procMsiSummaryInfoGetPropertyW = modMsi.NewProc("MsiSummaryInfoGetPropertyW")
	procMsiCloseHandle             = modMsi.NewProc("MsiCloseHandle")
)

const (
	msiDBOpenReadOnly = 0
	// PID_TEMPLATE, the "<arch>;<LCID>" platform/locale string
	pidTemplate = 7
	vtLPWSTR    = 31
	vtLPSTR     = 30
)

func readInstallerTemplate(ctx context.Context, fsys filesystem.FileSystem, path string) (architecture string, err error) {
	local := path
	if !fsys.IsLocal() {
		if local, err = spoolToTemp(ctx, fsys, path); err != nil {
			return
		}
		defer func() {
			if e := os.Remove(local); e != nil {
				Logger.Warn("could not remove spooled installer", "file", local, "error", e.Error())
			}
		}()
	}

	template, err := summaryTemplate(local)
	if err != nil {
		return
	}
	token, _, _ := strings.Cut(template, ";")
	architecture = string(arch.Normalize(token))
	return
}

// summaryTemplate reads summary-information property 7 from the installer
// database at path. Both the database and property-set handles are closed on
// every exit path.
func summaryTemplate(path string) (template string, err error) {
	pathW, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return
	}

	var db uintptr
	r, _, _ := procMsiOpenDatabaseW.Call(
		uintptr(unsafe.Pointer(pathW)),
		uintptr(msiDBOpenReadOnly),
		uintptr(unsafe.Pointer(&db)),
	)
	if r != 0 {
		err = fmt.Errorf("could not open installer database: %w", syscall.Errno(r))
		return
	}
	defer procMsiCloseHandle.Call(db) //nolint:errcheck // best effort release

	var summary uintptr
	r, _, _ = procMsiGetSummaryInformationW.Call(db, 0, 0, uintptr(unsafe.Pointer(&summary)))
	if r != 0 {
		err = fmt.Errorf("could not open summary information: %w", syscall.Errno(r))
		return
	}
	defer procMsiCloseHandle.Call(summary) //nolint:errcheck // best effort release

	var dataType uint32
	var intValue int32
	var ft windows.Filetime
	buf := make([]uint16, 256)
	size := uint32(len(buf))

	getProperty := func() uintptr {
		r, _, _ := procMsiSummaryInfoGetPropertyW.Call(
			summary,
			uintptr(pidTemplate),
			uintptr(unsafe.Pointer(&dataType)),
			uintptr(unsafe.Pointer(&intValue)),
			uintptr(unsafe.Pointer(&ft)),
			uintptr(unsafe.Pointer(&buf[0])),
			uintptr(unsafe.Pointer(&size)),
		)
		return r
	}

	r = getProperty()
	if r == uintptr(windows.ERROR_MORE_DATA) {
		buf = make([]uint16, size+1)
		size = uint32(len(buf))
		r = getProperty()
	}
	if r != 0 {
		err = fmt.Errorf("could not read template property: %w", syscall.Errno(r))
		return
	}
	if dataType != vtLPWSTR && dataType != vtLPSTR {
		err = fmt.Errorf("template property has unexpected type %d", dataType)
		return
	}
	template = windows.UTF16ToString(buf)
	return
}
