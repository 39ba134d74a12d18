//go:build !windows

package detect

import (
	"context"

	"github.com/pkgarch/archscan/pkg/filesystem"
)

// Reading the summary-information property set needs the native structured
// storage API; a portable reader is out of scope, so non-Windows hosts
// report the capability gap unconditionally.
func readInstallerTemplate(ctx context.Context, fsys filesystem.FileSystem, path string) (architecture string, err error) {
	err = ErrUnavailable
	return
}
