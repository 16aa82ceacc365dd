// Package config loads environment-driven configuration for the replication
// engine: database location, cache backend, logging, and default pipeline
// tuning knobs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CacheBackend selects the ReplicationCache implementation.
type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
)

// Config holds all process-wide configuration. Duration fields are
// env-only (yaml:"-"): YAML has no native duration scalar, and the
// operator-facing config file is meant for the knobs that vary by
// deployment, not by environment.
type Config struct {
	// Database
	DatabaseDSN      string        `yaml:"database_dsn"`
	DBMaxConnections int           `yaml:"db_max_connections"`
	DBIdleTimeout    time.Duration `yaml:"-"`
	RunMigrations    bool          `yaml:"run_migrations"`

	// Cache
	CacheBackend CacheBackend `yaml:"cache_backend"`
	RedisAddr    string       `yaml:"redis_addr"`
	RedisDB      int          `yaml:"redis_db"`

	// Logging
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	LogOutput    string `yaml:"log_output"`
	LogDirectory string `yaml:"log_directory"`

	// HTTP status surface
	ListenAddr string `yaml:"listen_addr"`

	// Pipeline defaults
	DefaultPageSize      int           `yaml:"default_page_size"`
	AggregateChunkSize   int           `yaml:"aggregate_chunk_size"`
	EventChunkSize       int           `yaml:"event_chunk_size"`
	TrackerOrgUnitCap    int           `yaml:"tracker_org_unit_cap"`
	DefaultCheckInterval time.Duration `yaml:"-"`
}

// Load reads configuration from the environment, optionally preceded by a
// ".env" file in the working directory (absence is not an error).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("warning: could not load .env: %v\n", err)
	}

	cfg := &Config{
		DatabaseDSN:          getEnv("HISSYNC_DATABASE_DSN", ""),
		DBMaxConnections:     getIntEnv("HISSYNC_DB_MAX_CONNECTIONS", 20),
		DBIdleTimeout:        getDurationEnv("HISSYNC_DB_IDLE_TIMEOUT", 5*time.Minute),
		RunMigrations:        getBoolEnv("HISSYNC_RUN_MIGRATIONS", true),
		CacheBackend:         CacheBackend(getEnv("HISSYNC_CACHE_BACKEND", string(CacheMemory))),
		RedisAddr:            getEnv("HISSYNC_REDIS_ADDR", "localhost:6379"),
		RedisDB:              getIntEnv("HISSYNC_REDIS_DB", 0),
		LogLevel:             getEnv("HISSYNC_LOG_LEVEL", "info"),
		LogFormat:            getEnv("HISSYNC_LOG_FORMAT", "text"),
		LogOutput:            getEnv("HISSYNC_LOG_OUTPUT", "stdout"),
		LogDirectory:         getEnv("HISSYNC_LOG_DIR", "logs"),
		ListenAddr:           getEnv("HISSYNC_LISTEN_ADDR", ":8090"),
		DefaultPageSize:      getIntEnv("HISSYNC_DEFAULT_PAGE_SIZE", 50),
		AggregateChunkSize:   getIntEnv("HISSYNC_AGGREGATE_CHUNK_SIZE", 1000),
		EventChunkSize:       getIntEnv("HISSYNC_EVENT_CHUNK_SIZE", 500),
		TrackerOrgUnitCap:    getIntEnv("HISSYNC_TRACKER_ORGUNIT_CAP", 10),
		DefaultCheckInterval: getDurationEnv("HISSYNC_DEFAULT_CHECK_INTERVAL", 60*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile reads Load's environment-derived defaults, then overlays any
// fields present in a YAML file at path, following the teacher's
// env-first-then-file layering (cmd/appserver's loadConfigFile).
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configuration combinations the pipelines cannot honor.
func (c *Config) Validate() error {
	if c.CacheBackend != CacheMemory && c.CacheBackend != CacheRedis {
		return fmt.Errorf("unknown cache backend %q", c.CacheBackend)
	}
	if c.DefaultPageSize < 1 || c.DefaultPageSize > 1000 {
		return fmt.Errorf("default page size %d out of range [1,1000]", c.DefaultPageSize)
	}
	if c.AggregateChunkSize < 1 {
		return fmt.Errorf("aggregate chunk size must be positive")
	}
	if c.EventChunkSize < 1 {
		return fmt.Errorf("event chunk size must be positive")
	}
	if c.TrackerOrgUnitCap < 1 {
		return fmt.Errorf("tracker org unit cap must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
