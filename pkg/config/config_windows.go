//go:build windows

package config

import (
	"os"
	"path/filepath"
)

var (
	DefaultConfigPath    = filepath.Join(os.Getenv("AppData"), "archscan", "config.yml")
	DefaultCacheLocation = filepath.Join(os.Getenv("AppData"), "archscan", "cache.db")
)

func GetConfigFile() (config string, err error) {
	config = DefaultConfigPath
	cfg := filepath.Join(os.Getenv("APPDATA"), "archscan", "config.yml")
	if _, err := os.Stat(cfg); err == nil {
		return cfg, nil
	}
	return
}
