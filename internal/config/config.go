// Package config loads loader settings from a YAML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, command-line
// flags (applied by the CLI), DB_* environment variables. A DSN, when set,
// is used as is and the DB_* connection parts do not apply to it.
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

	"github.com/roach88/genesis/internal/store"
)

// Config represents the loader configuration.
type Config struct {
	Database Database `yaml:"database"`

	Load struct {
		// Concurrency bounds the entities loaded at the same time.
		Concurrency int `yaml:"concurrency"`

		// Timeout aborts the whole job. Zero disables it.
		Timeout time.Duration `yaml:"timeout"`

		// Entities restricts the load to these entities and their
		// dependencies. Empty loads everything.
		Entities []string `yaml:"entities"`

		// Specs is a directory of CUE entity declarations.
		Specs string `yaml:"specs"`
	} `yaml:"load"`

	Logging struct {
		Level  string `yaml:"level"`  // debug, info, warn, error
		Format string `yaml:"format"` // console or json
	} `yaml:"logging"`

	Metrics struct {
		// Textfile is written with all metrics at the end of a run.
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

// Database holds connection settings.
type Database struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"` // Overrides the parts below when set
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"` // Database name; file path for sqlite3
	SSLMode  string `yaml:"sslmode"`
	Schema   string `yaml:"schema"`
}

// Defaults.
const (
	DefaultDriver      = store.DialectPostgres
	DefaultSchema      = "app"
	DefaultConcurrency = 3
	DefaultTimeout     = 30 * time.Minute
)

// Default returns the built-in configuration.
func Default() Config {
	var cfg Config
	cfg.Database = Database{
		Driver:  DefaultDriver,
		Host:    "localhost",
		Port:    5432,
		User:    "postgres",
		Name:    "postgres",
		SSLMode: "disable",
		Schema:  DefaultSchema,
	}
	cfg.Load.Concurrency = DefaultConcurrency
	cfg.Load.Timeout = DefaultTimeout
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	return cfg
}

// Load reads the YAML file at path on top of the defaults. An empty path
// returns the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvHost   = "DB_HOST"
	EnvPort   = "DB_PORT"
	EnvUser   = "DB_USER"
	EnvPass   = "DB_PASS"
	EnvSchema = "DB_SCHEMA"
	EnvName   = "DB_NAME"
)

// ApplyEnv overrides database settings from the environment. getenv is
// usually os.Getenv. Empty variables are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	set := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(EnvHost, &c.Database.Host)
	set(EnvUser, &c.Database.User)
	set(EnvPass, &c.Database.Password)
	set(EnvSchema, &c.Database.Schema)
	set(EnvName, &c.Database.Name)

	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Database.Port = port
	}
	return nil
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if _, err := store.DialectFor(c.Database.Driver); err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	if c.Database.DSN == "" && c.Database.Name == "" {
		return fmt.Errorf("database.name or database.dsn is required")
	}
	if c.Database.Port < 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port %d out of range", c.Database.Port)
	}
	if c.Load.Concurrency < 1 {
		return fmt.Errorf("load.concurrency must be at least 1, got %d", c.Load.Concurrency)
	}
	if c.Load.Timeout < 0 {
		return fmt.Errorf("load.timeout must not be negative")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// ConnString returns the data source name for the configured driver: DSN
// when set, the file name for sqlite3, otherwise a keyword/value string
// that also sets the search path to Schema.
func (d Database) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	dialect, err := store.DialectFor(d.Driver)
	if err == nil && dialect.Name() == store.DialectSQLite {
		return d.Name
	}

	parts := []string{
		kv("host", d.Host),
		kv("port", strconv.Itoa(d.Port)),
		kv("user", d.User),
		kv("dbname", d.Name),
		kv("sslmode", d.SSLMode),
	}
	if d.Password != "" {
		parts = append(parts, kv("password", d.Password))
	}
	if d.Schema != "" {
		parts = append(parts, kv("search_path", d.Schema))
	}

	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// kv renders one keyword/value pair, quoting values that need it.
func kv(key, value string) string {
	if value == "" {
		return ""
	}
	if strings.ContainsAny(value, ` '\`) {
		value = "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value) + "'"
	}
	return key + "=" + value
}

// Store returns the store configuration.
func (c Config) Store() store.Config {
	return store.Config{Driver: c.Database.Driver, DSN: c.Database.ConnString()}
}
