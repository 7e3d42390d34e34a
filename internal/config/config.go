// ABOUTME: Configuration management for logbook with viper loading and YAML saving.
// ABOUTME: Handles storage backend selection, history limits, logging, and ~ expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/2389-research/logbook/internal/storage"
)

const (
	envPrefix = "LOGBOOK"
	appName   = "logbook"

	defaultBackend      = storage.BackendJSON
	defaultHistoryLimit = 10
	defaultLogLevel     = "warn"
)

// Config stores logbook configuration loaded from ~/.config/logbook/config.yaml.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	History HistoryConfig `yaml:"history"`
	Entries EntriesConfig `yaml:"entries"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig selects the backend and where each backend keeps its data.
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	JSONPath   string `yaml:"json_path"`
	FilesDir   string `yaml:"files_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// HistoryConfig bounds the undo and redo stacks.
type HistoryConfig struct {
	Limit int `yaml:"limit"`
}

// EntriesConfig holds defaults applied to new entries.
type EntriesConfig struct {
	DefaultPriority *uint32 `yaml:"default_priority,omitempty"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	if err := ApplyDefaults(v); err != nil {
		return nil, err
	}
	return v, nil
}

// ApplyDefaults configures defaults and LOGBOOK_* env bindings on v.
func ApplyDefaults(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dataDir, err := DataDir()
	if err != nil {
		return err
	}

	v.SetDefault("storage.backend", defaultBackend)
	v.SetDefault("storage.json_path", filepath.Join(dataDir, "entries.json"))
	v.SetDefault("storage.files_dir", filepath.Join(dataDir, "entries"))
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "entries.db"))
	v.SetDefault("history.limit", defaultHistoryLimit)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.file", "")
	return nil
}

// ReadFile merges the YAML file at path into v. An empty path means the default location,
// which may be missing. An explicit path must exist.
func ReadFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// FromViper builds a validated Config from v. Paths have ~ expanded.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Storage: StorageConfig{
			Backend:    strings.ToLower(strings.TrimSpace(v.GetString("storage.backend"))),
			JSONPath:   v.GetString("storage.json_path"),
			FilesDir:   v.GetString("storage.files_dir"),
			SQLitePath: v.GetString("storage.sqlite_path"),
		},
		History: HistoryConfig{Limit: v.GetInt("history.limit")},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			File:  v.GetString("log.file"),
		},
	}
	if v.IsSet("entries.default_priority") {
		p := v.GetUint32("entries.default_priority")
		cfg.Entries.DefaultPriority = &p
	}

	for _, p := range []*string{&cfg.Storage.JSONPath, &cfg.Storage.FilesDir, &cfg.Storage.SQLitePath, &cfg.Log.File} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads defaults, environment, and the config file at path (default location when
// empty).
func Load(path string) (*Config, error) {
	v, err := NewViper()
	if err != nil {
		return nil, err
	}
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() (*Config, error) {
	v, err := NewViper()
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Validate checks the backend name, the history limit, and the selected storage path.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case storage.BackendJSON, storage.BackendFiles, storage.BackendSQLite:
	default:
		return fmt.Errorf("storage.backend must be one of %s, %s, %s (got %q)",
			storage.BackendJSON, storage.BackendFiles, storage.BackendSQLite, c.Storage.Backend)
	}
	if c.History.Limit < 1 {
		return fmt.Errorf("history.limit must be at least 1 (got %d)", c.History.Limit)
	}
	if strings.TrimSpace(c.StoragePath()) == "" {
		return fmt.Errorf("storage path for backend %q is required", c.Storage.Backend)
	}
	return nil
}

// StoragePath returns the file or directory used by the selected backend.
func (c *Config) StoragePath() string {
	switch c.Storage.Backend {
	case storage.BackendFiles:
		return c.Storage.FilesDir
	case storage.BackendSQLite:
		return c.Storage.SQLitePath
	default:
		return c.Storage.JSONPath
	}
}

// DataDir returns the default data directory.
func DataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, appName), nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, appName, "config.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// Save writes config to the default location.
func (c *Config) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes config to path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
