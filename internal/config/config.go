/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// LockBackend selects how schedule writes are serialized.
type LockBackend string

const (
	LockLocal LockBackend = "local"
	LockRedis LockBackend = "redis"
)

// Config covers process level configuration read from environment variables
// and an optional YAML file.
type Config struct {
	Environment    string
	HTTPBind       string
	HTTPPort       int
	DBBackend      DatabaseBackend
	DBDSN          string
	DBMaxIdleConns int
	DBMaxOpenConns int
	AutoInstall    bool // install the schedule table on startup when missing

	MetricsEnabled bool

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Redis is shared by the distributed lock and the playlist cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LockBackend LockBackend
	LockTTL     time.Duration
	LockWait    time.Duration

	PlaylistCacheEnabled bool
	PlaylistCacheTTL     time.Duration

	// NATS fan-out of schedule events. Empty URL disables it.
	NATSURL           string
	NATSSubjectPrefix string

	LegacyEnvWarnings []string
}

// fileConfig mirrors Config for the YAML overlay. Unset fields keep defaults.
type fileConfig struct {
	Environment    string `yaml:"environment"`
	HTTPBind       string `yaml:"http_bind"`
	HTTPPort       int    `yaml:"http_port"`
	DBBackend      string `yaml:"db_backend"`
	DBDSN          string `yaml:"db_dsn"`
	DBMaxIdleConns int    `yaml:"db_max_idle_conns"`
	DBMaxOpenConns int    `yaml:"db_max_open_conns"`
	AutoInstall    *bool  `yaml:"auto_install"`

	MetricsEnabled *bool `yaml:"metrics_enabled"`

	Tracing struct {
		Enabled    *bool    `yaml:"enabled"`
		Endpoint   string   `yaml:"otlp_endpoint"`
		SampleRate *float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Lock struct {
		Backend string `yaml:"backend"`
		TTL     string `yaml:"ttl"`
		Wait    string `yaml:"wait"`
	} `yaml:"lock"`

	PlaylistCache struct {
		Enabled *bool  `yaml:"enabled"`
		TTL     string `yaml:"ttl"`
	} `yaml:"playlist_cache"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

func defaults() *Config {
	return &Config{
		Environment:       "development",
		HTTPBind:          "0.0.0.0",
		HTTPPort:          8080,
		DBBackend:         DatabasePostgres,
		DBMaxIdleConns:    10,
		DBMaxOpenConns:    50,
		MetricsEnabled:    true,
		OTLPEndpoint:      "localhost:4317",
		TracingSampleRate: 1.0,
		RedisAddr:         "localhost:6379",
		LockBackend:       LockLocal,
		LockTTL:           10 * time.Second,
		LockWait:          5 * time.Second,
		PlaylistCacheTTL:  time.Minute,
		NATSSubjectPrefix: "grimnir.schedule",
	}
}

// Load reads the optional config file, then environment variables, applies
// defaults, and validates the result. Environment values win over the file.
func Load() (*Config, error) {
	cfg := defaults()

	if path := getEnvAny([]string{"GRIMNIR_SCHED_CONFIG_FILE", "SCHED_CONFIG_FILE"}, ""); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.Environment = getEnvAny([]string{"GRIMNIR_SCHED_ENV", "SCHED_ENV"}, cfg.Environment)
	cfg.HTTPBind = getEnvAny([]string{"GRIMNIR_SCHED_HTTP_BIND", "SCHED_HTTP_BIND"}, cfg.HTTPBind)
	cfg.HTTPPort = getEnvIntAny([]string{"GRIMNIR_SCHED_HTTP_PORT", "SCHED_HTTP_PORT"}, cfg.HTTPPort)
	cfg.DBBackend = DatabaseBackend(getEnvAny([]string{"GRIMNIR_SCHED_DB_BACKEND", "SCHED_DB_BACKEND"}, string(cfg.DBBackend)))
	cfg.DBDSN = getEnvAny([]string{"GRIMNIR_SCHED_DB_DSN", "SCHED_DB_DSN"}, cfg.DBDSN)
	cfg.DBMaxIdleConns = getEnvIntAny([]string{"GRIMNIR_SCHED_DB_MAX_IDLE_CONNS"}, cfg.DBMaxIdleConns)
	cfg.DBMaxOpenConns = getEnvIntAny([]string{"GRIMNIR_SCHED_DB_MAX_OPEN_CONNS"}, cfg.DBMaxOpenConns)
	cfg.AutoInstall = getEnvBoolAny([]string{"GRIMNIR_SCHED_AUTO_INSTALL", "SCHED_AUTO_INSTALL"}, cfg.AutoInstall)

	cfg.MetricsEnabled = getEnvBoolAny([]string{"GRIMNIR_SCHED_METRICS_ENABLED", "SCHED_METRICS_ENABLED"}, cfg.MetricsEnabled)

	cfg.TracingEnabled = getEnvBoolAny([]string{"GRIMNIR_SCHED_TRACING_ENABLED", "SCHED_TRACING_ENABLED"}, cfg.TracingEnabled)
	cfg.OTLPEndpoint = getEnvAny([]string{"GRIMNIR_SCHED_OTLP_ENDPOINT", "SCHED_OTLP_ENDPOINT"}, cfg.OTLPEndpoint)
	cfg.TracingSampleRate = getEnvFloatAny([]string{"GRIMNIR_SCHED_TRACING_SAMPLE_RATE", "SCHED_TRACING_SAMPLE_RATE"}, cfg.TracingSampleRate)

	cfg.RedisAddr = getEnvAny([]string{"GRIMNIR_SCHED_REDIS_ADDR", "SCHED_REDIS_ADDR"}, cfg.RedisAddr)
	cfg.RedisPassword = getEnvAny([]string{"GRIMNIR_SCHED_REDIS_PASSWORD", "SCHED_REDIS_PASSWORD"}, cfg.RedisPassword)
	cfg.RedisDB = getEnvIntAny([]string{"GRIMNIR_SCHED_REDIS_DB", "SCHED_REDIS_DB"}, cfg.RedisDB)

	cfg.LockBackend = LockBackend(getEnvAny([]string{"GRIMNIR_SCHED_LOCK_BACKEND", "SCHED_LOCK_BACKEND"}, string(cfg.LockBackend)))
	cfg.LockTTL = getEnvDurationAny([]string{"GRIMNIR_SCHED_LOCK_TTL", "SCHED_LOCK_TTL"}, cfg.LockTTL)
	cfg.LockWait = getEnvDurationAny([]string{"GRIMNIR_SCHED_LOCK_WAIT", "SCHED_LOCK_WAIT"}, cfg.LockWait)

	cfg.PlaylistCacheEnabled = getEnvBoolAny([]string{"GRIMNIR_SCHED_PLAYLIST_CACHE_ENABLED", "SCHED_PLAYLIST_CACHE_ENABLED"}, cfg.PlaylistCacheEnabled)
	cfg.PlaylistCacheTTL = getEnvDurationAny([]string{"GRIMNIR_SCHED_PLAYLIST_CACHE_TTL", "SCHED_PLAYLIST_CACHE_TTL"}, cfg.PlaylistCacheTTL)

	cfg.NATSURL = getEnvAny([]string{"GRIMNIR_SCHED_NATS_URL", "SCHED_NATS_URL"}, cfg.NATSURL)
	cfg.NATSSubjectPrefix = getEnvAny([]string{"GRIMNIR_SCHED_NATS_SUBJECT_PREFIX", "SCHED_NATS_SUBJECT_PREFIX"}, cfg.NATSSubjectPrefix)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBBackend != DatabasePostgres && c.DBBackend != DatabaseMySQL && c.DBBackend != DatabaseSQLite {
		return fmt.Errorf("unsupported database backend %q", c.DBBackend)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("GRIMNIR_SCHED_DB_DSN or SCHED_DB_DSN must be provided")
	}
	if c.LockBackend != LockLocal && c.LockBackend != LockRedis {
		return fmt.Errorf("unsupported lock backend %q", c.LockBackend)
	}
	if c.LockTTL <= 0 || c.LockWait <= 0 {
		return fmt.Errorf("lock ttl and wait must be positive")
	}
	if c.PlaylistCacheEnabled && c.PlaylistCacheTTL <= 0 {
		return fmt.Errorf("playlist cache ttl must be positive")
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be between 0 and 1, got %v", c.TracingSampleRate)
	}
	return nil
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// RedisRequired reports whether any component needs a Redis client.
func (c *Config) RedisRequired() bool {
	return c.LockBackend == LockRedis || c.PlaylistCacheEnabled
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.Environment, fc.Environment)
	setString(&cfg.HTTPBind, fc.HTTPBind)
	setInt(&cfg.HTTPPort, fc.HTTPPort)
	if fc.DBBackend != "" {
		cfg.DBBackend = DatabaseBackend(fc.DBBackend)
	}
	setString(&cfg.DBDSN, fc.DBDSN)
	setInt(&cfg.DBMaxIdleConns, fc.DBMaxIdleConns)
	setInt(&cfg.DBMaxOpenConns, fc.DBMaxOpenConns)
	setBool(&cfg.AutoInstall, fc.AutoInstall)
	setBool(&cfg.MetricsEnabled, fc.MetricsEnabled)

	setBool(&cfg.TracingEnabled, fc.Tracing.Enabled)
	setString(&cfg.OTLPEndpoint, fc.Tracing.Endpoint)
	if fc.Tracing.SampleRate != nil {
		cfg.TracingSampleRate = *fc.Tracing.SampleRate
	}

	setString(&cfg.RedisAddr, fc.Redis.Addr)
	setString(&cfg.RedisPassword, fc.Redis.Password)
	setInt(&cfg.RedisDB, fc.Redis.DB)

	if fc.Lock.Backend != "" {
		cfg.LockBackend = LockBackend(fc.Lock.Backend)
	}
	if err := setDuration(&cfg.LockTTL, fc.Lock.TTL); err != nil {
		return fmt.Errorf("lock.ttl: %w", err)
	}
	if err := setDuration(&cfg.LockWait, fc.Lock.Wait); err != nil {
		return fmt.Errorf("lock.wait: %w", err)
	}

	setBool(&cfg.PlaylistCacheEnabled, fc.PlaylistCache.Enabled)
	if err := setDuration(&cfg.PlaylistCacheTTL, fc.PlaylistCache.TTL); err != nil {
		return fmt.Errorf("playlist_cache.ttl: %w", err)
	}

	setString(&cfg.NATSURL, fc.NATS.URL)
	setString(&cfg.NATSSubjectPrefix, fc.NATS.SubjectPrefix)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"SCHEDULE_DB_DSN": "use GRIMNIR_SCHED_DB_DSN (or SCHED_DB_DSN)",
		"SCHEDULE_ENV":    "use GRIMNIR_SCHED_ENV (or SCHED_ENV)",
		"TRACING_ENABLED": "use GRIMNIR_SCHED_TRACING_ENABLED (or SCHED_TRACING_ENABLED)",
		"OTLP_ENDPOINT":   "use GRIMNIR_SCHED_OTLP_ENDPOINT (or SCHED_OTLP_ENDPOINT)",
		"REDIS_ADDR":      "use GRIMNIR_SCHED_REDIS_ADDR (or SCHED_REDIS_ADDR)",
		"NATS_URL":        "use GRIMNIR_SCHED_NATS_URL (or SCHED_NATS_URL)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvDurationAny accepts Go duration strings ("30s") or bare seconds.
func getEnvDurationAny(keys []string, def time.Duration) time.Duration {
	for _, k := range keys {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}
