package detect

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkgarch/archscan/pkg/filesystem"
)

// InstallerDetector reads the template summary-information property of a
// Windows Installer package. The structured-storage reader only exists on
// Windows (msi.dll); every other platform reports ErrUnavailable so the
// result is distinguishable from a parse failure.
type InstallerDetector struct{}

func (d *InstallerDetector) Name() string { return "installer" }

func (d *InstallerDetector) Match(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".msi")
}

func (d *InstallerDetector) Detect(ctx context.Context, fsys filesystem.FileSystem, path string) (architecture string, err error) {
	return readInstallerTemplate(ctx, fsys, path)
}

// spoolToTemp copies a remote file to a local temp file so detectors backed
// by native APIs can open it by path. The caller removes the returned file.
func spoolToTemp(ctx context.Context, fsys filesystem.FileSystem, path string) (local string, err error) {
	src, err := fsys.Open(ctx, path)
	if err != nil {
		return
	}
	defer func() {
		if e := src.Close(); e != nil {
			Logger.Warn("could not close file correctly", slog.String("file", path), slog.String("error", e.Error()))
		}
	}()

	tmp, err := os.CreateTemp("", "archscan-*"+filepath.Ext(path))
	if err != nil {
		return
	}
	local = tmp.Name()

	if _, err = io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(local)
		err = fmt.Errorf("could not spool %s: %w", path, err)
		return
	}
	err = tmp.Close()
	return
}
