// Package config loads glance configuration from YAML, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spherical/glance/internal/domain"
)

// Config holds all glance settings.
type Config struct {
	Display       DisplayConfig       `yaml:"display"`
	Capture       CaptureConfig       `yaml:"capture"`
	Extraction    ExtractionConfig    `yaml:"extraction"`
	Transport     TransportConfig     `yaml:"transport"`
	Cache         CacheConfig         `yaml:"cache"`
	Archive       ArchiveConfig       `yaml:"archive"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// DisplayConfig describes the accessory screen.
type DisplayConfig struct {
	WidthChars int       `yaml:"width_chars"`
	MaxLines   int       `yaml:"max_lines"`
	Prompt     [2]string `yaml:"prompt"`
}

// CaptureConfig holds camera settings sent with each request.
type CaptureConfig struct {
	Quality         int                     `yaml:"quality"`
	Exposure        domain.ExposureSettings `yaml:"exposure"`
	RotationDegrees int                     `yaml:"rotation_degrees"`
	CycleTimeout    time.Duration           `yaml:"cycle_timeout"`
	MaxImageBytes   int                     `yaml:"max_image_bytes"`
	Source          string                  `yaml:"source"` // image file or directory for the simulator
}

// ExtractionConfig holds recognition and translation settings.
type ExtractionConfig struct {
	Translate  bool      `yaml:"translate"`
	TargetLang string    `yaml:"target_lang"`
	LLM        LLMConfig `yaml:"llm"`
}

// LLMConfig holds the vision model backend settings.
type LLMConfig struct {
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// TransportConfig selects how glance reaches the accessory.
type TransportConfig struct {
	Driver string      `yaml:"driver"` // memory or redis
	Redis  RedisConfig `yaml:"redis"`
}

// CacheConfig holds translation cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// ArchiveConfig controls the capture archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"` // sqlite or postgres
	Path    string `yaml:"path"`
	DSN     string `yaml:"dsn"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.ConfigError("read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ConfigError("parse config file", err)
		}
	}

	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.ConfigError("load env file", err)
	}
	return nil
}

// DefaultConfig returns settings for a local simulator run.
func DefaultConfig() *Config {
	return &Config{
		Display: DisplayConfig{
			WidthChars: 25,
			MaxLines:   5,
			Prompt:     [2]string{"Triple-tap to read text", "Tap: next  Double-tap: back"},
		},
		Capture: CaptureConfig{
			Quality: 80,
			Exposure: domain.ExposureSettings{
				AutoExpGainTimes: 1,
				MeteringMode:     "center_weighted",
				ExposureSpeed:    0.45,
				ShutterLimit:     16383,
				GainLimit:        16,
			},
			RotationDegrees: 90,
			CycleTimeout:    45 * time.Second,
			MaxImageBytes:   8 << 20,
		},
		Extraction: ExtractionConfig{
			Translate:  false,
			TargetLang: "English",
			LLM: LLMConfig{
				Model:      "google/gemini-2.5-flash",
				BaseURL:    "https://openrouter.ai/api/v1/chat/completions",
				Timeout:    60 * time.Second,
				MaxRetries: 3,
			},
		},
		Transport: TransportConfig{
			Driver: "memory",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "glance:",
			},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        24 * time.Hour,
			MaxEntries: 1000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "glance:",
			},
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Driver:  "sqlite",
			Path:    "glance.db",
		},
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8090,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Display.WidthChars < 1 {
		return domain.ConfigError(fmt.Sprintf("display width must be positive, got %d", c.Display.WidthChars), nil)
	}
	if c.Display.MaxLines < 1 {
		return domain.ConfigError(fmt.Sprintf("display max_lines must be positive, got %d", c.Display.MaxLines), nil)
	}
	if c.Capture.Quality < 1 || c.Capture.Quality > 100 {
		return domain.ConfigError(fmt.Sprintf("capture quality must be between 1 and 100, got %d", c.Capture.Quality), nil)
	}
	switch c.Capture.RotationDegrees {
	case 0, 90, 180, 270:
	default:
		return domain.ConfigError(fmt.Sprintf("rotation must be 0, 90, 180 or 270, got %d", c.Capture.RotationDegrees), nil)
	}
	if c.Extraction.Translate && strings.TrimSpace(c.Extraction.TargetLang) == "" {
		return domain.ConfigError("target_lang is required when translation is enabled", nil)
	}
	if c.Transport.Driver != "memory" && c.Transport.Driver != "redis" {
		return domain.ConfigError(fmt.Sprintf("invalid transport driver: %s", c.Transport.Driver), nil)
	}
	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return domain.ConfigError(fmt.Sprintf("invalid cache driver: %s", c.Cache.Driver), nil)
	}
	if c.Archive.Enabled && c.Archive.Driver != "sqlite" && c.Archive.Driver != "postgres" {
		return domain.ConfigError(fmt.Sprintf("invalid archive driver: %s", c.Archive.Driver), nil)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return domain.ConfigError(fmt.Sprintf("invalid server port: %d", c.Server.Port), nil)
	}
	return nil
}

// ArchiveDSN returns the driver name and connection string for the archive.
func (c *Config) ArchiveDSN() (driver, dsn string) {
	if c.Archive.Driver == "postgres" {
		return "postgres", c.Archive.DSN
	}
	return "sqlite3", c.Archive.Path
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ApplyEnv applies environment variable overrides to cfg.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Extraction.LLM.APIKey = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Extraction.LLM.Model = v
	}

	if v := os.Getenv("TARGET_LANG"); v != "" {
		cfg.Extraction.TargetLang = v
		cfg.Extraction.Translate = true
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		addr := strings.TrimPrefix(v, "redis://")
		cfg.Transport.Driver = "redis"
		cfg.Transport.Redis.Addr = addr
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = addr
	}

	if v := os.Getenv("ARCHIVE_URL"); v != "" {
		cfg.Archive.Enabled = true
		if strings.HasPrefix(v, "postgres") {
			cfg.Archive.Driver = "postgres"
			cfg.Archive.DSN = v
		} else {
			cfg.Archive.Driver = "sqlite"
			cfg.Archive.Path = strings.TrimPrefix(v, "sqlite:")
		}
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
