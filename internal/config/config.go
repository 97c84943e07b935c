// Package config loads server configuration: defaults, then an optional
// YAML file, then TALLY_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	Env        string           `yaml:"env"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Dashboards DashboardsConfig `yaml:"dashboards"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
}

type HTTPConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type DashboardsConfig struct {
	Dir string `yaml:"dir"`
}

type IngestConfig struct {
	MaxBatch int `yaml:"max_batch"`
}

type AuthConfig struct {
	// Required gates ingest endpoints behind API keys.
	Required bool `yaml:"required"`
}

type LogConfig struct {
	// Level is debug, info, warn or error. Empty derives it from Env.
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	defaultEnv               = "development"
	defaultHTTPAddr          = ":8080"
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultMaxBodyBytes      = 10 << 20
	defaultDatabasePath      = "tally.db"
	defaultDashboardsDir     = "dashboards"
	defaultMaxBatch          = 10000
	defaultLogFormat         = "json"
)

// Envs lists the accepted values of Env.
var Envs = []string{"development", "test", "staging", "production"}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Env: defaultEnv,
		HTTP: HTTPConfig{
			Addr:              defaultHTTPAddr,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
			ShutdownTimeout:   defaultShutdownTimeout,
			MaxBodyBytes:      defaultMaxBodyBytes,
		},
		Database:   DatabaseConfig{Path: defaultDatabasePath},
		Dashboards: DashboardsConfig{Dir: defaultDashboardsDir},
		Ingest:     IngestConfig{MaxBatch: defaultMaxBatch},
		Auth:       AuthConfig{Required: true},
		Log:        LogConfig{Format: defaultLogFormat},
	}
}

// Load builds the configuration. path may be empty to skip the file.
// Unknown YAML fields are rejected so typos do not silently fall back to
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	e := envReader{lookup: lookup}
	e.setString("TALLY_ENV", &cfg.Env)
	e.setString("TALLY_HTTP_ADDR", &cfg.HTTP.Addr)
	e.setDuration("TALLY_READ_HEADER_TIMEOUT", &cfg.HTTP.ReadHeaderTimeout)
	e.setDuration("TALLY_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)
	e.setInt64("TALLY_MAX_BODY_BYTES", &cfg.HTTP.MaxBodyBytes)
	e.setString("TALLY_DB_PATH", &cfg.Database.Path)
	e.setString("TALLY_DASHBOARDS_DIR", &cfg.Dashboards.Dir)
	e.setInt("TALLY_MAX_BATCH", &cfg.Ingest.MaxBatch)
	e.setBool("TALLY_AUTH_REQUIRED", &cfg.Auth.Required)
	e.setString("TALLY_LOG_LEVEL", &cfg.Log.Level)
	e.setString("TALLY_LOG_FORMAT", &cfg.Log.Format)
	return errors.Join(e.errs...)
}

type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
}

func (e *envReader) setInt64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
			return
		}
		*dst = d
	}
}

func (e *envReader) setBool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
			return
		}
		*dst = b
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if !contains(Envs, c.Env) {
		errs = append(errs, fmt.Errorf("env %q: must be one of %v", c.Env, Envs))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		errs = append(errs, errors.New("http.read_header_timeout must be positive"))
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("http.shutdown_timeout must be positive"))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("http.max_body_bytes must be positive"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Ingest.MaxBatch <= 0 {
		errs = append(errs, errors.New("ingest.max_batch must be positive"))
	}
	if c.Log.Level != "" && !contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level %q: must be debug, info, warn or error", c.Log.Level))
	}
	if !contains([]string{"json", "text"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format %q: must be json or text", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
