// Package monitor watches directories for new or rewritten package files and
// hands them to a callback once their content has settled.
package monitor

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var Logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

type Monitorer interface {
	Start()
	Close()
	Add(path string) error
	Remove(path string) error
}

// OnFileFunc receives a file once it has been stable for the configured
// modification delay.
type OnFileFunc func(file string) error

type Monitor struct {
	watcher  *fsnotify.Watcher
	wg       sync.WaitGroup
	cb       OnFileFunc
	preScan  bool
	modDelay time.Duration

	stop   context.Context
	cancel context.CancelFunc

	paths map[string]struct{}

	pendingLock sync.Mutex
	pending     map[string]struct{}
}

func NewMonitor(onFile OnFileFunc, preScan bool, modDelay time.Duration) (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	stop, cancel := context.WithCancel(context.Background())
	return &Monitor{
		watcher:  watcher,
		cb:       onFile,
		preScan:  preScan,
		modDelay: modDelay,
		paths:    map[string]struct{}{},
		pending:  map[string]struct{}{},
		stop:     stop,
		cancel:   cancel,
	}, nil
}

func (m *Monitor) Start() {
	m.wg.Add(2)
	go m.collect()
	go m.flush()
}

func (m *Monitor) Close() {
	if err := m.watcher.Close(); err != nil {
		Logger.Warn("could not close watcher", "error", err)
	}
	m.cancel()
	m.wg.Wait()
}

// collect records created and written files; they stay pending until their
// modification time stops moving.
func (m *Monitor) collect() {
	defer m.wg.Done()
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			Logger.Debug("new event", "event", event)
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				m.pendingLock.Lock()
				m.pending[event.Name] = struct{}{}
				m.pendingLock.Unlock()
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			Logger.Error("watcher error", "error", err)
		}
	}
}

var (
	FlushPause = time.Millisecond * 100
	Since      = time.Since
)

func (m *Monitor) flush() {
	defer m.wg.Done()
	ticker := time.NewTicker(FlushPause)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop.Done():
			return
		case <-ticker.C:
			for _, path := range m.stablePending() {
				if err := m.cb(path); err != nil {
					Logger.Error("could not handle file", "file", path, "error", err)
				}
			}
		}
	}
}

// stablePending removes and returns the pending files whose last write is
// older than the modification delay.
func (m *Monitor) stablePending() (stable []string) {
	m.pendingLock.Lock()
	defer m.pendingLock.Unlock()
	for path := range m.pending {
		info, err := os.Stat(path)
		if err != nil {
			// vanished before it settled
			delete(m.pending, path)
			continue
		}
		if Since(info.ModTime()) > m.modDelay {
			stable = append(stable, path)
			delete(m.pending, path)
		}
	}
	return
}

func (m *Monitor) Add(path string) error {
	if err := m.watcher.Add(path); err != nil {
		return err
	}
	m.paths[path] = struct{}{}
	if m.preScan {
		go func() {
			if err := m.cb(path); err != nil {
				Logger.Error("could not prescan path", "path", path, "error", err)
			}
		}()
	}
	return nil
}

func (m *Monitor) Remove(path string) error {
	delete(m.paths, path)
	return m.watcher.Remove(path)
}
