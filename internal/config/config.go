// Package config loads the shellcached configuration file.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config is the full daemon configuration.
type Config struct {
	// ListenPort is the port the shell is served on.
	ListenPort int
	// Origin is the upstream application origin,
	// e.g. "http://127.0.0.1:3000".
	Origin string
	// ManifestPath points at the build's asset manifest.
	ManifestPath string

	// UpstreamTimeout bounds one upstream fetch including body read.
	UpstreamTimeout Duration
	// DisableRefresh turns off background revalidation after cache hits.
	DisableRefresh bool

	Store StoreConfig

	LogLevel      string
	LogFilePath   string
	LogMaxSize    int // megabytes per rotated file
	LogMaxBackups int
	LogCompress   bool
}

// StoreConfig selects and parameterizes the cache backend.
type StoreConfig struct {
	// Backend is one of "memory", "sqlite", "redis".
	Backend string
	// Path is the database file for the sqlite backend.
	Path string
	// RedisAddr is the server address for the redis backend.
	RedisAddr string
}

// Duration unmarshals from "30s" strings or bare second counts.
type Duration time.Duration

func (d Duration) DurationValue() time.Duration { return time.Duration(d) }

// Validate checks cross-field invariants after defaults are applied.
func (c *Config) Validate() error {
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("config: invalid listen port %d", c.ListenPort)
	}
	if strings.TrimSpace(c.Origin) == "" {
		return fmt.Errorf("config: origin is required")
	}
	if strings.TrimSpace(c.ManifestPath) == "" {
		return fmt.Errorf("config: manifest path is required")
	}
	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(c.Store.Path) == "" {
			return fmt.Errorf("config: sqlite backend requires store.path")
		}
	case "redis":
		if strings.TrimSpace(c.Store.RedisAddr) == "" {
			return fmt.Errorf("config: redis backend requires store.redis_addr")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	return nil
}

func (c *Config) normalizePaths() error {
	abs, err := filepath.Abs(c.ManifestPath)
	if err != nil {
		return fmt.Errorf("config: resolve manifest path: %w", err)
	}
	c.ManifestPath = abs
	if c.Store.Backend == "sqlite" {
		abs, err := filepath.Abs(c.Store.Path)
		if err != nil {
			return fmt.Errorf("config: resolve store path: %w", err)
		}
		c.Store.Path = abs
	}
	return nil
}
