// Package config handles loading and resolving periodic configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flags (--db, --format, ...)
//  2. Environment variables PERIODIC_*
//  3. The config file: $PERIODIC_CONFIG, else config.json in the current
//     working directory. JSON, YAML, TOML and EDN are accepted by extension.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/derickschaefer/periodic/internal/validate"
)

const (
	DefaultConfigFile  = "config.json"
	DefaultFormat      = "table"
	DefaultTimeAnchor  = "point"
	DefaultDuplicates  = "error"
	DefaultMaxReported = validate.DefaultMaxReported

	EnvConfig = "PERIODIC_CONFIG"
	EnvDBPath = "PERIODIC_DB_PATH"
)

// File is the on-disk representation of config.json.
type File struct {
	DefaultFormat string `json:"default_format" yaml:"default_format" toml:"default_format"`
	DBPath        string `json:"db_path" yaml:"db_path" toml:"db_path"`
	TimeAnchor    string `json:"time_anchor" yaml:"time_anchor" toml:"time_anchor"`
	OnDuplicates  string `json:"on_duplicates" yaml:"on_duplicates" toml:"on_duplicates"`
	Workers       int    `json:"workers" yaml:"workers" toml:"workers"`
	MaxReported   int    `json:"max_reported" yaml:"max_reported" toml:"max_reported"`
	LogLevel      string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// envLayer is read from the environment by cleanenv. Unset variables keep
// their zero value and do not override the file.
type envLayer struct {
	DBPath       string `env:"PERIODIC_DB_PATH"`
	Format       string `env:"PERIODIC_FORMAT"`
	TimeAnchor   string `env:"PERIODIC_TIME_ANCHOR"`
	OnDuplicates string `env:"PERIODIC_ON_DUPLICATES"`
	Workers      int    `env:"PERIODIC_WORKERS"`
	MaxReported  int    `env:"PERIODIC_MAX_REPORTED"`
	LogLevel     string `env:"PERIODIC_LOG_LEVEL"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	Format       string
	DBPath       string
	TimeAnchor   string
	OnDuplicates string
	Workers      int // 0 means GOMAXPROCS
	MaxReported  int
	LogLevel     string
	ConfigPath   string // path of the config file that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Load resolves configuration from all sources.
// flagDBPath is the value of --db (empty string if not set).
func Load(flagDBPath string) (*Config, error) {
	cfg := defaults()

	// Layer 1: config file (lowest priority). A missing file is not an error.
	f, path, err := loadFile()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if f != nil {
		applyFile(cfg, f, path)
	}

	// Layer 2: environment
	var env envLayer
	if err := cleanenv.ReadEnv(&env); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	applyEnv(cfg, env)

	// Layer 3: CLI flag (highest priority)
	if flagDBPath != "" {
		cfg.DBPath = flagDBPath
	}

	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".periodic", "periodic.db")
		}
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Format:       DefaultFormat,
		TimeAnchor:   DefaultTimeAnchor,
		OnDuplicates: DefaultDuplicates,
		MaxReported:  DefaultMaxReported,
		LogLevel:     "warn",
	}
}

// Resolve returns the configuration f describes on top of the defaults,
// ignoring the environment. Used to check a file before writing it.
func (f File) Resolve() *Config {
	cfg := defaults()
	applyFile(cfg, &f, "")
	return cfg
}

// Validate returns an error if any resolved value is out of range.
func (c *Config) Validate() error {
	switch c.Format {
	case "table", "json", "jsonl", "csv", "tsv", "md":
	default:
		return fmt.Errorf("invalid format %q: must be table, json, jsonl, csv, tsv or md", c.Format)
	}
	if _, err := validate.ParseTimeAnchor(c.TimeAnchor); err != nil {
		return err
	}
	if _, err := validate.ParseDuplicateStrategy(c.OnDuplicates); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.MaxReported < 1 {
		return fmt.Errorf("max_reported must be >= 1, got %d", c.MaxReported)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level for the resolved settings. --debug and
// --verbose lower the configured level; --quiet raises it to error.
func (c *Config) Level() (slog.Level, error) {
	switch {
	case c.Debug:
		return slog.LevelDebug, nil
	case c.Verbose:
		return slog.LevelInfo, nil
	case c.Quiet:
		return slog.LevelError, nil
	}
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelWarn, fmt.Errorf("invalid log_level %q: must be debug, info, warn or error", c.LogLevel)
	}
	return lvl, nil
}

// ValidatorOptions converts the validation settings into validator options.
// Call Validate first; unparsable values fall back to the defaults.
func (c *Config) ValidatorOptions() []validate.Option {
	anchor, _ := validate.ParseTimeAnchor(c.TimeAnchor)
	dups, _ := validate.ParseDuplicateStrategy(c.OnDuplicates)
	return []validate.Option{
		validate.WithTimeAnchor(anchor),
		validate.WithDuplicates(dups),
		validate.WithWorkers(c.Workers),
		validate.WithMaxReported(c.MaxReported),
	}
}

// FilePath returns the config file path Load reads: $PERIODIC_CONFIG if
// set, else config.json in the current working directory.
func FilePath() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return filepath.Abs(p)
	}
	return filepath.Abs(DefaultConfigFile)
}

// loadFile reads the config file with cleanenv, which picks the decoder
// from the extension.
func loadFile() (*File, string, error) {
	path, err := FilePath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, "", err
	}
	var f File
	if err := cleanenv.ReadConfig(path, &f); err != nil {
		return nil, "", fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return &f, path, nil
}

// ReadFile loads the config file at path.
func ReadFile(path string) (*File, error) {
	var f File
	if err := cleanenv.ReadConfig(path, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return &f, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.TimeAnchor != "" {
		cfg.TimeAnchor = f.TimeAnchor
	}
	if f.OnDuplicates != "" {
		cfg.OnDuplicates = f.OnDuplicates
	}
	if f.Workers > 0 {
		cfg.Workers = f.Workers
	}
	if f.MaxReported > 0 {
		cfg.MaxReported = f.MaxReported
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
}

func applyEnv(cfg *Config, e envLayer) {
	if e.DBPath != "" {
		cfg.DBPath = e.DBPath
	}
	if e.Format != "" {
		cfg.Format = e.Format
	}
	if e.TimeAnchor != "" {
		cfg.TimeAnchor = e.TimeAnchor
	}
	if e.OnDuplicates != "" {
		cfg.OnDuplicates = e.OnDuplicates
	}
	if e.Workers > 0 {
		cfg.Workers = e.Workers
	}
	if e.MaxReported > 0 {
		cfg.MaxReported = e.MaxReported
	}
	if e.LogLevel != "" {
		cfg.LogLevel = e.LogLevel
	}
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `periodic config init`.
func Template() File {
	return File{
		DefaultFormat: DefaultFormat,
		TimeAnchor:    DefaultTimeAnchor,
		OnDuplicates:  DefaultDuplicates,
		MaxReported:   DefaultMaxReported,
		LogLevel:      "warn",
	}
}

// WriteFile serialises a File to the given path as JSON.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
