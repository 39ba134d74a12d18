// Package config holds the archscan configuration model and its per-platform
// default locations.
package config

import "time"

var Version = "dev"

var (
	DefaultWorkers      = 4
	DefaultScanValidity = time.Hour * 24 * 7
	DefaultModDelay     = time.Second * 30
	DefaultMaxReadSize  = "100MiB"
)

type Config struct {
	Config         string   `yaml:"config" mapstructure:"config" desc:"path to configuration file"`
	Paths          []string `yaml:"paths" mapstructure:"paths" desc:"default paths to scan"`
	Recursive      bool     `yaml:"recursive" mapstructure:"recursive" desc:"descend into subdirectories"`
	Quiet          bool     `yaml:"quiet" mapstructure:"quiet" desc:"suppress informational notices"`
	NoColor        bool     `yaml:"no-color" mapstructure:"no-color" desc:"disable color output"`
	Debug          bool     `yaml:"debug" mapstructure:"debug" desc:"print debug logs"`
	Workers        int      `yaml:"workers" mapstructure:"workers" desc:"number of files detected at the same time"`
	FollowSymlinks bool     `yaml:"follow-symlinks" mapstructure:"follow-symlinks" desc:"follow symbolic links"`
	MaxReadSize    string   `yaml:"max-read-size" mapstructure:"max-read-size" desc:"largest file the detectors will read"`
	Report         string   `yaml:"report" mapstructure:"report" desc:"path of the JSON report to append to"`

	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`
	S3    S3Config    `yaml:"s3" mapstructure:"s3"`
	Watch WatchConfig `yaml:"watch" mapstructure:"watch"`
}

type CacheConfig struct {
	Disabled     bool          `yaml:"disabled" mapstructure:"disabled" desc:"do not reuse previous detections"`
	Location     string        `yaml:"location" mapstructure:"location" desc:"location of the cache DB"`
	ScanValidity time.Duration `yaml:"scan-validity" mapstructure:"scan-validity" desc:"validity duration of each cached detection"`
}

type S3Config struct {
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	Region          string `yaml:"region" mapstructure:"region"`
	AccessKeyID     string `yaml:"access-key-id" mapstructure:"access-key-id"`
	SecretAccessKey string `yaml:"secret-access-key" mapstructure:"secret-access-key"`
	Insecure        bool   `yaml:"insecure" mapstructure:"insecure"`
	UsePathStyle    bool   `yaml:"use-path-style" mapstructure:"use-path-style"`
}

type WatchConfig struct {
	PreScan           bool          `yaml:"pre-scan" mapstructure:"pre-scan" desc:"scan watched directories on startup"`
	ModificationDelay time.Duration `yaml:"modification-delay" mapstructure:"modification-delay" desc:"time a file must stay unchanged before detection"`
}
