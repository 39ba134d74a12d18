package cache

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestCache(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{
			name: "test in memory",
			test: func(t *testing.T) {
				cache, err := NewCache("")
				if err != nil {
					t.Errorf("NewCache() error = %v", err)
					return
				}
				defer cache.Close()
				entry1 := Entry{
					Path:         "/test/alpha.exe",
					SizeBytes:    1234,
					ModTime:      time.UnixMilli(1700000000000),
					Architecture: "amd64",
				}
				err = cache.Set(&entry1)
				if err != nil {
					t.Errorf("cache.Set(entry1) error = %v", err)
					return
				}
				entry2, err := cache.Get(entry1.Path)
				if err != nil {
					t.Errorf("cache.Get(entry1.Path) error = %v", err)
					return
				}
				if entry2.Architecture != entry1.Architecture {
					t.Errorf("cache.Get(entry1.Path) != entry1, want = %v, got = %v", entry1, entry2)
					return
				}
				if !entry2.ModTime.Equal(entry1.ModTime) {
					t.Errorf("cache.Get(entry1.Path).ModTime = %v, want %v", entry2.ModTime, entry1.ModTime)
					return
				}

				entry2.Architecture = "arm64"
				err = cache.Set(entry2)
				if err != nil {
					t.Errorf("cache.Set(entry2) error = %v", err)
					return
				}
				entry3, err := cache.Get(entry2.Path)
				if err != nil {
					t.Errorf("cache.Get(entry2.Path) error = %v", err)
					return
				}
				if entry3.Architecture != entry2.Architecture {
					t.Errorf("cache.Get(entry2.Path) != entry2, want = %v, got = %v", entry2, entry3)
					return
				}
			},
		},
		{
			name: "test file",
			test: func(t *testing.T) {
				tfile, err := os.CreateTemp(os.TempDir(), "test_db_*.db")
				if err != nil {
					t.Errorf("NewCache() error = %v", err)
					return
				}
				tfile.Close()
				defer os.Remove(tfile.Name())
				cache, err := NewCache(tfile.Name())
				if err != nil {
					t.Errorf("NewCache() error = %v", err)
					return
				}
				entry1 := Entry{
					Path:         "/test/bravo.msix",
					SizeBytes:    99,
					ModTime:      time.UnixMilli(1700000000000),
					Architecture: "neutral",
				}
				err = cache.Set(&entry1)
				if err != nil {
					t.Errorf("cache.Set(entry1) error = %v", err)
					return
				}

				cache.Close()
				cache2, err := NewCache(tfile.Name())
				if err != nil {
					t.Errorf("NewCache() error = %v", err)
					return
				}
				defer cache2.Close()
				entry, err := cache2.Get(entry1.Path)
				if err != nil {
					t.Errorf("cache.Get(entry1.Path) error = %v", err)
					return
				}
				if entry.Architecture != entry1.Architecture {
					t.Errorf("cache.Get(entry1.Path) != entry1, want = %v, got = %v", entry1, entry)
					return
				}
			},
		},
		{
			name: "entry not found",
			test: func(t *testing.T) {
				cache, err := NewCache("")
				if err != nil {
					t.Errorf("NewCache() error = %v", err)
					return
				}
				defer cache.Close()
				_, err = cache.Get("/missing")
				if !errors.Is(err, ErrEntryNotFound) {
					t.Errorf("cache.Get() error = %v, want ErrEntryNotFound", err)
					return
				}
			},
		},
		{
			name: "clear",
			test: func(t *testing.T) {
				cache, err := NewCache("")
				if err != nil {
					t.Errorf("NewCache() error = %v", err)
					return
				}
				defer cache.Close()
				err = cache.Set(&Entry{Path: "/test/charlie.appx", Architecture: "intel32"})
				if err != nil {
					t.Errorf("cache.Set() error = %v", err)
					return
				}
				if err = cache.Clear(); err != nil {
					t.Errorf("cache.Clear() error = %v", err)
					return
				}
				_, err = cache.Get("/test/charlie.appx")
				if !errors.Is(err, ErrEntryNotFound) {
					t.Errorf("cache.Get() after Clear() error = %v, want ErrEntryNotFound", err)
					return
				}
			},
		},
		{
			name: "created at set on insert",
			test: func(t *testing.T) {
				defer func() { Now = time.Now }()
				fixed := time.UnixMilli(1700000123456)
				Now = func() time.Time { return fixed }
				cache, err := NewCache("")
				if err != nil {
					t.Errorf("NewCache() error = %v", err)
					return
				}
				defer cache.Close()
				err = cache.Set(&Entry{Path: "/test/delta.exe", Architecture: "amd64"})
				if err != nil {
					t.Errorf("cache.Set() error = %v", err)
					return
				}
				entry, err := cache.Get("/test/delta.exe")
				if err != nil {
					t.Errorf("cache.Get() error = %v", err)
					return
				}
				if !entry.CreatedAt.Equal(fixed) {
					t.Errorf("entry.CreatedAt = %v, want %v", entry.CreatedAt, fixed)
					return
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}
