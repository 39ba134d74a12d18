// Package filesystem abstracts the source a scan reads packages from, so the
// same detection code serves local directories and S3 buckets.
package filesystem

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
)

var Logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

type FileSystem interface {
	// Open opens a file for shared read access.
	Open(ctx context.Context, name string) (io.ReadSeekCloser, error)
	Stat(ctx context.Context, name string) (fs.FileInfo, error)
	Lstat(ctx context.Context, name string) (fs.FileInfo, error)
	WalkDir(ctx context.Context, root string, fn fs.WalkDirFunc) error
	// IsLocal reports whether paths name files on the local disk. Detectors
	// needing a real on-disk path spool remote files to a temp file first.
	IsLocal() bool
}
