// Package cache persists detection results between scans so unchanged
// packages are not re-parsed.
package cache

import (
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"modernc.org/sqlite"
)

var Logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{}))

// Entry is one cached detection. Size and modification time validate the
// entry against the current file before it is trusted.
type Entry struct {
	Path         string
	SizeBytes    int64
	ModTime      time.Time
	Architecture string
	CreatedAt    time.Time
}

type Cacher interface {
	// Set adds or updates a cache entry
	Set(entry *Entry) error

	// Get fetches the cache entry for a source path
	Get(path string) (entry *Entry, err error)

	// Clear removes every entry
	Clear() error

	Close() error
}

var ErrEntryNotFound = errors.New("entry not found")

type Cache struct {
	db *sql.DB
	sync.Mutex
}

var createTable = `CREATE TABLE IF NOT EXISTS results (
	path TEXT PRIMARY KEY,
	size INT NOT NULL,
	mod_time INT NOT NULL,
	architecture TEXT NOT NULL,
	created_at INT NOT NULL );`

// NewCache opens the cache DB at location, creating it if needed. An empty
// location yields an in-memory cache.
func NewCache(location string) (c *Cache, err error) {
	if location == "" {
		location = "file::memory:"
	} else {
		_, err = os.Stat(location)
		if errors.Is(err, os.ErrNotExist) {
			dir, _ := filepath.Split(location)
			if err = os.MkdirAll(dir, 0o755); err != nil {
				return
			}
			if _, err = os.Create(location); err != nil {
				return
			}
		}
	}
	db, err := sql.Open("sqlite", location)
	if err != nil {
		return
	}

	if _, err = db.Exec(createTable); err != nil {
		return
	}

	c = &Cache{db: db}
	return
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) Get(path string) (entry *Entry, err error) {
	c.Lock()
	defer c.Unlock()
	entry = &Entry{}
	var modTime, createdAt int64
	err = c.db.QueryRow("SELECT path, size, mod_time, architecture, created_at FROM results WHERE path = ?", path).Scan(
		&entry.Path,
		&entry.SizeBytes,
		&modTime,
		&entry.Architecture,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return
	}
	entry.ModTime = time.UnixMilli(modTime)
	entry.CreatedAt = time.UnixMilli(createdAt)
	return
}

var Now = time.Now

func (c *Cache) Set(entry *Entry) (err error) {
	c.Lock()
	defer c.Unlock()
	tx, err := c.db.Begin()
	if err != nil {
		return
	}
	defer tx.Commit()
	if entry.CreatedAt.UnixMilli() <= 0 {
		entry.CreatedAt = Now()
	}
	sqlStatement := `
INSERT INTO results (path, size, mod_time, architecture, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err = tx.Exec(sqlStatement,
		entry.Path,
		entry.SizeBytes,
		entry.ModTime.UnixMilli(),
		entry.Architecture,
		entry.CreatedAt.UnixMilli(),
	)
	if err == nil {
		return
	}
	// primary key conflict: update in place
	if e, ok := err.(*sqlite.Error); ok && e.Code() == 1555 {
		sqlStatement := `
		UPDATE results SET size=$2, mod_time=$3, architecture=$4, created_at=$5
		WHERE path = $1`
		_, err = tx.Exec(sqlStatement,
			entry.Path,
			entry.SizeBytes,
			entry.ModTime.UnixMilli(),
			entry.Architecture,
			entry.CreatedAt.UnixMilli(),
		)
	}
	return
}

func (c *Cache) Clear() (err error) {
	c.Lock()
	defer c.Unlock()
	_, err = c.db.Exec("DELETE FROM results")
	return
}
