package store

import (
	"fmt"

	"github.com/flemzord/pulse/internal/snapshot"
)

// Supported backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

const (
	defaultDir    = "snapshots"
	defaultDBFile = "snapshots.db"
)

// Config holds the snapshot store module configuration.
type Config struct {
	// Backend selects the storage: "file" (default), "sqlite" or "redis".
	Backend string `yaml:"backend"`

	// Dir is the directory of the file backend. Defaults to {DataDir}/snapshots.
	Dir string `yaml:"dir"`

	// Path is the sqlite database file. Defaults to {DataDir}/snapshots.db.
	Path string `yaml:"path"`

	// BusyTimeout is the sqlite busy timeout in milliseconds. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

func (c *Config) defaults() {
	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = snapshot.DefaultBusyTimeout
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = snapshot.DefaultRedisPrefix
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendFile, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("snapshot.store: unknown backend %q (want file, sqlite or redis)", c.Backend)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("snapshot.store: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("snapshot.store: redis db must be non-negative, got %d", c.Redis.DB)
	}
	return nil
}
