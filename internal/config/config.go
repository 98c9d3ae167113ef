package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configurable capturectl settings.
type Config struct {
	ServerURL      string        `mapstructure:"server_url" json:"server_url"`
	BaseSavePath   string        `mapstructure:"base_save_path" json:"base_save_path"`
	DeviceAddress  string        `mapstructure:"device_address" json:"device_address"`
	OutputDir      string        `mapstructure:"output_dir" json:"output_dir"`
	DefaultFormat  string        `mapstructure:"default_format" json:"default_format"` // "markdown" | "json"
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"`
	ArchivePath    string        `mapstructure:"archive_path" json:"archive_path"` // empty: history.db in the data dir
}

// EnvPrefix is the prefix of environment overrides, e.g. CAPTURE_SERVER_URL.
const EnvPrefix = "CAPTURE"

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		ServerURL:      "http://localhost:8000",
		BaseSavePath:   "data",
		DeviceAddress:  "192.168.4.245",
		OutputDir:      ".",
		DefaultFormat:  "markdown",
		RequestTimeout: 30 * time.Second,
	}
}

// GlobalPath returns ~/.config/capturectl/config.json.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "capturectl", "config.json"), nil
}

// LoadGlobal reads ~/.config/capturectl/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path, true)
}

// LoadProject reads .capturectl.json in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".capturectl.json", false)
}

// loadFile reads and parses a JSON config file at path through viper.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Save writes cfg to path as JSON, creating the parent directory.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigType("json")
	v.Set("server_url", cfg.ServerURL)
	v.Set("base_save_path", cfg.BaseSavePath)
	v.Set("device_address", cfg.DeviceAddress)
	v.Set("output_dir", cfg.OutputDir)
	v.Set("default_format", cfg.DefaultFormat)
	v.Set("request_timeout", cfg.RequestTimeout.String())
	if cfg.ArchivePath != "" {
		v.Set("archive_path", cfg.ArchivePath)
	}
	return v.WriteConfigAs(path)
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, c := range []*Config{global, project} {
		if c == nil {
			continue
		}
		overlay(&result, c)
	}
	return result
}

func overlay(dst *Config, src *Config) {
	if src.ServerURL != "" {
		dst.ServerURL = src.ServerURL
	}
	if src.BaseSavePath != "" {
		dst.BaseSavePath = src.BaseSavePath
	}
	if src.DeviceAddress != "" {
		dst.DeviceAddress = src.DeviceAddress
	}
	if src.OutputDir != "" {
		dst.OutputDir = src.OutputDir
	}
	if src.DefaultFormat != "" {
		dst.DefaultFormat = src.DefaultFormat
	}
	if src.RequestTimeout > 0 {
		dst.RequestTimeout = src.RequestTimeout
	}
	if src.ArchivePath != "" {
		dst.ArchivePath = src.ArchivePath
	}
}

// ApplyEnv overlays CAPTURE_* environment variables onto cfg.
func ApplyEnv(cfg Config) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	keys := []string{"server_url", "base_save_path", "device_address", "output_dir", "default_format", "request_timeout", "archive_path"}
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return cfg, err
		}
	}
	var env Config
	if err := v.Unmarshal(&env); err != nil {
		return cfg, &ParseError{Path: "environment", Err: err}
	}
	overlay(&cfg, &env)
	return cfg, nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
