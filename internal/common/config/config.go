// Package config loads and validates the agentwebd YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/agentweb/agentweb/internal/common/yamlutil"
)

// Log level constants
const (
	LogLevelDebug  = "debug"
	LogLevelInfo   = "info"
	LogLevelWarn   = "warn"
	LogLevelError  = "error"
	LogLevelDPanic = "dpanic"
	LogLevelPanic  = "panic"
	LogLevelFatal  = "fatal"
)

// Log format constants
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatText    = "text"
)

// Cache compression constants
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	CompressionLZ4    = "lz4"
)

const (
	defaultListen     = ":8090"
	defaultCacheTTL   = 10 * time.Minute
	defaultMaxEntries = 500
	defaultTimeout    = 15 * time.Second
	defaultChunkLimit = 8
)

// Config represents the agentwebd daemon configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Cache   CacheConfig   `yaml:"cache"`
	Browser BrowserConfig `yaml:"browser"`
	Render  RenderConfig  `yaml:"render"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	ID     string `yaml:"id,omitempty"`
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level,omitempty"`
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Level    string         `yaml:"level,omitempty"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

// CacheConfig configures the persistent result cache
type CacheConfig struct {
	Path        string   `yaml:"path,omitempty"`
	TTL         Duration `yaml:"ttl,omitempty"`
	MaxEntries  int      `yaml:"max_entries,omitempty"`
	Compression string   `yaml:"compression,omitempty"` // none, snappy, lz4
}

// BrowserConfig configures the headless browser backend
type BrowserConfig struct {
	Concurrency string `yaml:"concurrency,omitempty"` // "auto" or positive integer
}

// RenderConfig configures per-request render defaults
type RenderConfig struct {
	Timeout    Duration `yaml:"timeout,omitempty"`
	ChunkLimit int      `yaml:"chunk_limit,omitempty"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace,omitempty"`
}

// Load reads, defaults, and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, suitable for
// running without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults applies default values to configuration fields
func (cfg *Config) applyDefaults() {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaultListen
	}

	// If both log outputs are disabled (zero values), enable console by default
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = LogLevelInfo
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = LogFormatConsole
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = LogFormatText
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = Duration(defaultCacheTTL)
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = defaultMaxEntries
	}
	if cfg.Cache.Compression == "" {
		cfg.Cache.Compression = CompressionSnappy
	}

	if cfg.Browser.Concurrency == "" {
		cfg.Browser.Concurrency = "auto"
	}

	if cfg.Render.Timeout == 0 {
		cfg.Render.Timeout = Duration(defaultTimeout)
	}
	if cfg.Render.ChunkLimit == 0 {
		cfg.Render.ChunkLimit = defaultChunkLimit
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "agentweb"
	}
}

// Validate checks configuration validity
func (cfg *Config) Validate() error {
	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	} else if err := ValidateListenAddress(cfg.Server.Listen); err != nil {
		return fmt.Errorf("invalid server.listen: %w", err)
	}

	validLogLevels := map[string]bool{
		LogLevelDebug:  true,
		LogLevelInfo:   true,
		LogLevelWarn:   true,
		LogLevelError:  true,
		LogLevelDPanic: true,
		LogLevelPanic:  true,
		LogLevelFatal:  true,
	}
	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log.level: %s (must be debug, info, warn, error, dpanic, panic, or fatal)", cfg.Log.Level)
	}

	validConsoleFormats := map[string]bool{
		LogFormatJSON:    true,
		LogFormatConsole: true,
	}
	if cfg.Log.Console.Enabled && cfg.Log.Console.Format != "" && !validConsoleFormats[cfg.Log.Console.Format] {
		return fmt.Errorf("invalid log.console.format: %s (must be json or console)", cfg.Log.Console.Format)
	}

	if cfg.Log.File.Enabled {
		if cfg.Log.File.Path == "" {
			return fmt.Errorf("log.file.path must be specified when file logging is enabled")
		}

		validFileFormats := map[string]bool{
			LogFormatJSON: true,
			LogFormatText: true,
		}
		if cfg.Log.File.Format != "" && !validFileFormats[cfg.Log.File.Format] {
			return fmt.Errorf("invalid log.file.format: %s (must be json or text)", cfg.Log.File.Format)
		}

		if cfg.Log.File.Rotation.MaxSize < 0 {
			return fmt.Errorf("log.file.rotation.max_size must be >= 0, got %d", cfg.Log.File.Rotation.MaxSize)
		}
		if cfg.Log.File.Rotation.MaxAge < 0 {
			return fmt.Errorf("log.file.rotation.max_age must be >= 0, got %d", cfg.Log.File.Rotation.MaxAge)
		}
		if cfg.Log.File.Rotation.MaxBackups < 0 {
			return fmt.Errorf("log.file.rotation.max_backups must be >= 0, got %d", cfg.Log.File.Rotation.MaxBackups)
		}
	}

	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if cfg.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must be >= 0")
	}
	validCompression := map[string]bool{
		CompressionNone:   true,
		CompressionSnappy: true,
		CompressionLZ4:    true,
	}
	if !validCompression[cfg.Cache.Compression] {
		return fmt.Errorf("invalid cache.compression: %s (must be none, snappy, or lz4)", cfg.Cache.Compression)
	}

	if cfg.Browser.Concurrency != "auto" {
		size, err := strconv.Atoi(cfg.Browser.Concurrency)
		if err != nil || size <= 0 {
			return fmt.Errorf("browser.concurrency must be 'auto' or positive integer")
		}
	}

	if cfg.Render.Timeout <= 0 {
		return fmt.Errorf("render.timeout must be positive")
	}
	if cfg.Render.ChunkLimit <= 0 {
		return fmt.Errorf("render.chunk_limit must be positive")
	}

	if cfg.Metrics.Namespace != "" {
		// Prometheus namespace must match: [a-zA-Z_][a-zA-Z0-9_]*
		if matched, _ := regexp.MatchString(`^[a-zA-Z_][a-zA-Z0-9_]*$`, cfg.Metrics.Namespace); !matched {
			return fmt.Errorf("invalid metrics.namespace: %s (must match [a-zA-Z_][a-zA-Z0-9_]*)", cfg.Metrics.Namespace)
		}
	}

	return nil
}

// GetConfigPath resolves the config file path
func GetConfigPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("config path cannot be empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path: %w", err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("config file does not exist: %s", absPath)
	}

	return absPath, nil
}
