package filesystem

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalFileSystem implements FileSystem for the local disk.
type LocalFileSystem struct{}

func NewLocalFileSystem() *LocalFileSystem {
	return &LocalFileSystem{}
}

// localReadSeekCloser wraps os.File to implement io.ReadSeekCloser
type localReadSeekCloser struct {
	*os.File
}

// Open opens a file for reading. os.Open does not take an exclusive lock, so
// other readers are never blocked.
func (l *LocalFileSystem) Open(ctx context.Context, name string) (reader io.ReadSeekCloser, err error) {
	file, err := os.Open(filepath.Clean(name))
	if err != nil {
		return
	}
	reader = &localReadSeekCloser{file}
	return
}

func (l *LocalFileSystem) Stat(ctx context.Context, name string) (info fs.FileInfo, err error) {
	info, err = os.Stat(name)
	return
}

// Lstat returns file info without following symlinks
func (l *LocalFileSystem) Lstat(ctx context.Context, name string) (info fs.FileInfo, err error) {
	info, err = os.Lstat(name)
	return
}

// WalkDir walks the file tree rooted at root.
func (l *LocalFileSystem) WalkDir(ctx context.Context, root string, fn fs.WalkDirFunc) (err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fn(path, d, err)
	})
	return
}

func (l *LocalFileSystem) IsLocal() bool {
	return true
}
