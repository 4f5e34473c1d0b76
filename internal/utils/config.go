package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config.yaml"

// Config is the full runtime configuration of svg2img.
type Config struct {
	Output  OutputConfig  `yaml:"output"`
	Browser BrowserConfig `yaml:"browser"`
	Logger  LoggerConfig  `yaml:"logger"`
	Cache   CacheConfig   `yaml:"cache"`
	History HistoryConfig `yaml:"history"`
	Cleanup CleanupConfig `yaml:"cleanup"`
}

// OutputConfig controls which rasters are produced and where.
type OutputConfig struct {
	// Formats lists the requested output formats in processing order.
	// Unknown entries are skipped at run time, not rejected here.
	Formats     []string `yaml:"formats"`
	Dir         string   `yaml:"dir"`
	WorkDir     string   `yaml:"work_dir"`
	JPEGQuality float64  `yaml:"jpeg_quality"`
}

type BrowserConfig struct {
	ChromePath  string `yaml:"chrome_path"`
	Headless    bool   `yaml:"headless"`
	NoSandbox   bool   `yaml:"no_sandbox"`
	UserDataDir string `yaml:"user_data_dir"`
	// TimeoutSecs bounds a single format's render. Zero waits forever.
	TimeoutSecs int `yaml:"timeout_secs"`
}

type LoggerConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	RedisHost string        `yaml:"redis_host"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

type HistoryConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig describes the optional conversion history database.
// History is disabled when Host is empty.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type CleanupConfig struct {
	UseTrash bool `yaml:"use_trash"`
}

// AppConfig holds the most recently loaded configuration.
var AppConfig Config

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Output: OutputConfig{
			Formats:     []string{"png", "jpg"},
			Dir:         ".",
			WorkDir:     ".",
			JPEGQuality: 0.95,
		},
		Browser: BrowserConfig{
			Headless: true,
		},
		Logger: LoggerConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Cache: CacheConfig{
			RedisHost: "127.0.0.1:6379",
			TTL:       24 * time.Hour,
		},
		Cleanup: CleanupConfig{
			UseTrash: true,
		},
	}
}

// LoadConfig reads the file named by CONFIG_PATH, falling back to
// config.yaml. A missing default file is not an error.
func LoadConfig() (Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		cfg, err := LoadFrom(defaultConfigPath)
		if errors.Is(err, os.ErrNotExist) {
			cfg = DefaultConfig()
			applyEnv(&cfg)
			AppConfig = cfg
			return cfg, nil
		}
		return cfg, err
	}
	return LoadFrom(path)
}

// LoadFrom reads and validates the YAML configuration at path. Keys absent
// from the file keep their defaults.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}

	AppConfig = cfg
	return cfg, nil
}

// GetConfig returns the last configuration loaded.
func GetConfig() Config {
	return AppConfig
}

// Validate checks value ranges. Format names are deliberately not checked.
func (c Config) Validate() error {
	if len(c.Output.Formats) == 0 {
		return errors.New("output.formats must not be empty")
	}
	if c.Output.JPEGQuality <= 0 || c.Output.JPEGQuality > 1 {
		return fmt.Errorf("output.jpeg_quality must be in (0,1], got %v", c.Output.JPEGQuality)
	}
	if c.Browser.TimeoutSecs < 0 {
		return fmt.Errorf("browser.timeout_secs must not be negative, got %d", c.Browser.TimeoutSecs)
	}
	if c.Cache.Enabled && strings.TrimSpace(c.Cache.RedisHost) == "" {
		return errors.New("cache.redis_host is required when cache is enabled")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL)
	}
	return nil
}

func applyEnv(cfg *Config) {
	// Same override the container images use for the Chrome binary.
	if cfg.Browser.ChromePath == "" {
		if v := os.Getenv("CHROME_BIN"); v != "" {
			cfg.Browser.ChromePath = v
		}
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}
	if cfg.Output.WorkDir == "" {
		cfg.Output.WorkDir = "."
	}
}
