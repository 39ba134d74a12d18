// Package scanner walks a file tree, routes each package file to its
// architecture detector and collects one result per file.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkgarch/archscan/pkg/cache"
	"github.com/pkgarch/archscan/pkg/detect"
	"github.com/pkgarch/archscan/pkg/filesystem"
)

var (
	LogLevel = &slog.LevelVar{}
	Logger   = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: LogLevel}))
)

const (
	logReasonKey = "reason"
	logErrorKey  = "error"
)

type Config struct {
	Workers        int
	Recursive      bool
	FollowSymlinks bool
	MaxReadSize    int64
	ScanValidity   time.Duration
}

const (
	defaultMaxReadSize int64 = 100 * 1024 * 1024
	defaultWorkers           = 4
)

type fileToDetect struct {
	path    string
	size    int64
	modTime time.Time
}

type Scanner struct {
	fsys  filesystem.FileSystem
	cache cache.Cacher

	config Config

	started     bool
	stopWorker  chan struct{}
	workerWg    sync.WaitGroup
	fileChan    chan fileToDetect
	resultMutex sync.Mutex
	results     []detect.Result
	ongoing     *sync.Map
}

func New(config Config, fsys filesystem.FileSystem, cacher cache.Cacher) *Scanner {
	if config.Workers < 1 {
		config.Workers = defaultWorkers
	}
	if config.MaxReadSize <= 0 {
		config.MaxReadSize = defaultMaxReadSize
	}
	return &Scanner{
		fsys:       fsys,
		cache:      cacher,
		config:     config,
		fileChan:   make(chan fileToDetect),
		stopWorker: make(chan struct{}),
		ongoing:    new(sync.Map),
	}
}

func (s *Scanner) Start() {
	s.started = true
	for i := 0; i < s.config.Workers; i++ {
		s.workerWg.Add(1)
		go func() {
			defer s.workerWg.Done()
			s.worker()
		}()
	}
}

// Close stops the workers after in-flight detections finish.
func (s *Scanner) Close() {
	s.started = false
	close(s.stopWorker)
	s.workerWg.Wait()
}

// Results returns the detections collected so far, sorted by file name for
// deterministic display regardless of worker interleaving.
func (s *Scanner) Results() []detect.Result {
	s.resultMutex.Lock()
	defer s.resultMutex.Unlock()
	results := make([]detect.Result, len(s.results))
	copy(results, s.results)
	sort.Slice(results, func(i, j int) bool {
		if results[i].FileName != results[j].FileName {
			return results[i].FileName < results[j].FileName
		}
		return results[i].SourcePath < results[j].SourcePath
	})
	return results
}

// ScanPath enqueues the package files under input, a file or directory. A
// non-existent input is the only failure that propagates; every per-file
// problem becomes a result category instead.
func (s *Scanner) ScanPath(ctx context.Context, input string) (err error) {
	if !s.started {
		err = errors.New("scanner is stopped")
		return
	}

	inputLogger := Logger.With(slog.String("input", input))

	linfo, err := s.fsys.Lstat(ctx, input)
	if err != nil {
		err = fmt.Errorf("could not check input %s: %w", input, err)
		return
	}

	if linfo.Mode()&fs.ModeSymlink != 0 && !s.config.FollowSymlinks {
		inputLogger.Debug("skip file", slog.String(logReasonKey, "symbolic link"))
		return
	}

	info, err := s.fsys.Stat(ctx, input)
	if err != nil {
		return
	}

	if info.IsDir() {
		return s.scanDir(ctx, input)
	}

	if !detect.Match(input) {
		inputLogger.Debug("skip file", slog.String(logReasonKey, "extension not handled"))
		return
	}

	return s.enqueue(ctx, fileToDetect{path: input, size: info.Size(), modTime: info.ModTime()})
}

func (s *Scanner) scanDir(ctx context.Context, input string) (err error) {
	root := strings.TrimRight(input, `/\`)
	err = s.fsys.WalkDir(ctx, input, func(path string, d fs.DirEntry, walkErr error) (err error) {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if !s.config.Recursive && path != input && path != root {
				return fs.SkipDir
			}
			return
		}
		if !s.config.Recursive && !directChild(root, path) {
			return
		}
		if !detect.Match(path) {
			return
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			s.addResult(detect.Result{
				FileName:     filepath.Base(path),
				SourcePath:   path,
				Architecture: detect.StatusError,
			})
			return
		}

		if info.Mode()&fs.ModeSymlink != 0 {
			if !s.config.FollowSymlinks {
				return
			}
			// size and mtime of the target, not the link
			if info, infoErr = s.fsys.Stat(ctx, path); infoErr != nil {
				s.addResult(detect.Result{
					FileName:     filepath.Base(path),
					SourcePath:   path,
					Architecture: detect.StatusError,
				})
				return
			}
		}

		return s.enqueue(ctx, fileToDetect{path: path, size: info.Size(), modTime: info.ModTime()})
	})
	return
}

// directChild reports whether path sits immediately under root, with either
// path separator.
func directChild(root, path string) bool {
	rel := strings.TrimPrefix(path, root)
	rel = strings.TrimLeft(rel, `/\`)
	return !strings.ContainsAny(rel, `/\`)
}

func (s *Scanner) enqueue(ctx context.Context, input fileToDetect) (err error) {
	if _, loaded := s.ongoing.LoadOrStore(input.path, struct{}{}); loaded {
		Logger.Debug("skip file", slog.String("file", input.path), slog.String(logReasonKey, "ongoing detection"))
		return
	}
	select {
	case <-ctx.Done():
		s.ongoing.Delete(input.path)
		return context.Canceled
	case <-s.stopWorker:
		s.ongoing.Delete(input.path)
		return errors.New("scanner is stopped")
	case s.fileChan <- input:
		return
	}
}

func (s *Scanner) worker() {
	for {
		select {
		case <-s.stopWorker:
			return
		case input := <-s.fileChan:
			result := s.DetectFile(context.Background(), input.path, input.size, input.modTime)
			s.ongoing.Delete(input.path)
			s.addResult(result)
		}
	}
}

// DetectFile runs detection for a single file and maps every failure to a
// result category. It never fails: a file that cannot be processed yields an
// "error" result so the rest of the scan continues.
func (s *Scanner) DetectFile(ctx context.Context, path string, size int64, modTime time.Time) (result detect.Result) {
	fileLogger := Logger.With(slog.String("file", path))
	result = detect.Result{
		FileName:   filepath.Base(strings.ReplaceAll(path, `\`, "/")),
		SourcePath: path,
		SizeBytes:  size,
	}

	if entry, ok := s.cachedEntry(path, size, modTime); ok {
		fileLogger.Debug("detection served from cache")
		result.Architecture = entry.Architecture
		return
	}

	if size > s.config.MaxReadSize {
		fileLogger.Error("could not detect architecture", slog.String(logErrorKey, detect.ErrTooBig.Error()))
		result.Architecture = detect.StatusError
		return
	}

	architecture, err := detect.Detect(ctx, s.fsys, path)
	switch {
	case errors.Is(err, detect.ErrUnavailable):
		result.Architecture = detect.StatusUnavailable
	case errors.Is(err, detect.ErrNotApplicable):
		fileLogger.Debug("skip file", slog.String(logReasonKey, "extension not handled"))
		result.Architecture = detect.StatusError
	case err != nil:
		fileLogger.Error("could not detect architecture", slog.String(logErrorKey, err.Error()))
		result.Architecture = detect.StatusError
	default:
		result.Architecture = architecture
		s.storeEntry(path, size, modTime, architecture)
	}
	return
}

func (s *Scanner) cachedEntry(path string, size int64, modTime time.Time) (entry *cache.Entry, ok bool) {
	if s.cache == nil {
		return
	}
	entry, err := s.cache.Get(path)
	if err != nil {
		if !errors.Is(err, cache.ErrEntryNotFound) {
			Logger.Warn("could not read cache", slog.String("file", path), slog.String(logErrorKey, err.Error()))
		}
		return nil, false
	}
	// cache persists times at millisecond precision
	if entry.SizeBytes != size || !entry.ModTime.Equal(modTime.Truncate(time.Millisecond)) {
		return nil, false
	}
	if s.config.ScanValidity > 0 && time.Since(entry.CreatedAt) > s.config.ScanValidity {
		return nil, false
	}
	return entry, true
}

func (s *Scanner) storeEntry(path string, size int64, modTime time.Time, architecture string) {
	if s.cache == nil {
		return
	}
	err := s.cache.Set(&cache.Entry{
		Path:         path,
		SizeBytes:    size,
		ModTime:      modTime,
		Architecture: architecture,
	})
	if err != nil {
		Logger.Warn("could not update cache", slog.String("file", path), slog.String(logErrorKey, err.Error()))
	}
}

func (s *Scanner) addResult(result detect.Result) {
	s.resultMutex.Lock()
	defer s.resultMutex.Unlock()
	s.results = append(s.results, result)
}
