// Package detect identifies the target CPU architecture of Windows
// application packages from their binary structure: PE executables, Windows
// Installer packages and appx/msix packages or bundles.
package detect

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/pkgarch/archscan/pkg/filesystem"
)

var Logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{}))

// Architecture field values reported alongside canonical tokens.
const (
	StatusError       = "error"
	StatusUnavailable = "unavailable-on-platform"
)

var (
	// ErrNotApplicable reports that no detector handles the file's extension.
	ErrNotApplicable = errors.New("file extension not handled by any detector")
	// ErrUnavailable reports that detection needs a host capability missing
	// on the current platform.
	ErrUnavailable = errors.New("detection unavailable on this platform")
	// ErrTooBig reports that the file exceeds the configured read bound.
	ErrTooBig = errors.New("file exceeds the configured read size limit")
)

// Result is the outcome of detecting one file. It is built once per scanned
// file and never mutated afterwards.
type Result struct {
	FileName     string `json:"file-name"`
	SourcePath   string `json:"source-path"`
	SizeBytes    int64  `json:"size"`
	Architecture string `json:"architecture"`
}

// Detector extracts the architecture of one package family.
type Detector interface {
	Name() string
	// Match reports whether the detector handles path, judged by extension
	// only; contents are never sniffed.
	Match(path string) bool
	// Detect returns the canonical architecture declared by the package at
	// path. Bundles may return several comma-joined tokens. A readable file
	// with no recognizable architecture marker yields "unknown" and a nil
	// error; an unreadable or malformed file yields an error.
	Detect(ctx context.Context, fsys filesystem.FileSystem, path string) (string, error)
}

var detectors = []Detector{
	&ExecutableDetector{},
	&InstallerDetector{},
	&AppPackageDetector{},
}

// Match reports whether any detector handles path.
func Match(path string) bool {
	for _, d := range detectors {
		if d.Match(path) {
			return true
		}
	}
	return false
}

// Detect routes path to the detector matching its extension and runs it.
func Detect(ctx context.Context, fsys filesystem.FileSystem, path string) (architecture string, err error) {
	for _, d := range detectors {
		if d.Match(path) {
			return d.Detect(ctx, fsys, path)
		}
	}
	err = ErrNotApplicable
	return
}
