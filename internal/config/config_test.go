package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spherical/glance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"OPENROUTER_API_KEY", "LLM_MODEL", "REDIS_URL", "ARCHIVE_URL",
	"LOG_LEVEL", "LOG_FORMAT", "TARGET_LANG", "SERVER_PORT", "GLANCE_TEST_ONLY",
}

// clearEnv unsets the variables config reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 25, cfg.Display.WidthChars)
	assert.Equal(t, 5, cfg.Display.MaxLines)
	assert.Equal(t, 90, cfg.Capture.RotationDegrees)
	assert.Equal(t, "memory", cfg.Transport.Driver)
	assert.Equal(t, "127.0.0.1:8090", cfg.Addr())
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "glance.yaml")
	yaml := `
display:
  width_chars: 30
  max_lines: 4
capture:
  quality: 60
  rotation_degrees: 0
  cycle_timeout: 10s
extraction:
  translate: true
  target_lang: French
archive:
  enabled: true
  driver: sqlite
  path: /tmp/captures.db
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Display.WidthChars)
	assert.Equal(t, 4, cfg.Display.MaxLines)
	assert.Equal(t, 60, cfg.Capture.Quality)
	assert.Equal(t, 0, cfg.Capture.RotationDegrees)
	assert.Equal(t, 10*time.Second, cfg.Capture.CycleTimeout)
	assert.True(t, cfg.Extraction.Translate)
	assert.Equal(t, "French", cfg.Extraction.TargetLang)
	assert.Equal(t, "google/gemini-2.5-flash", cfg.Extraction.LLM.Model)

	driver, dsn := cfg.ArchiveDSN()
	assert.Equal(t, "sqlite3", driver)
	assert.Equal(t, "/tmp/captures.db", dsn)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("LLM_MODEL", "openai/gpt-4o-mini")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("ARCHIVE_URL", "postgres://glance@db/glance")
	t.Setenv("TARGET_LANG", "German")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Extraction.LLM.APIKey)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.Extraction.LLM.Model)
	assert.Equal(t, "redis", cfg.Transport.Driver)
	assert.Equal(t, "cache:6379", cfg.Transport.Redis.Addr)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.True(t, cfg.Archive.Enabled)
	driver, dsn := cfg.ArchiveDSN()
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "postgres://glance@db/glance", dsn)
	assert.True(t, cfg.Extraction.Translate)
	assert.Equal(t, "German", cfg.Extraction.TargetLang)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "json", cfg.Observability.LogFormat)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.Display.WidthChars = 0 }},
		{"zero lines", func(c *Config) { c.Display.MaxLines = 0 }},
		{"quality", func(c *Config) { c.Capture.Quality = 101 }},
		{"rotation", func(c *Config) { c.Capture.RotationDegrees = 45 }},
		{"translate without language", func(c *Config) {
			c.Extraction.Translate = true
			c.Extraction.TargetLang = " "
		}},
		{"transport driver", func(c *Config) { c.Transport.Driver = "ble" }},
		{"cache driver", func(c *Config) { c.Cache.Driver = "disk" }},
		{"archive driver", func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Driver = "mysql"
		}},
		{"port", func(c *Config) { c.Server.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
		})
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("display: [unterminated"), 0o600))
	_, err = Load(path)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("GLANCE_TEST_ONLY=from-file\n"), 0o600))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("GLANCE_TEST_ONLY"))

	require.NoError(t, LoadEnvFile(filepath.Join(dir, "absent.env")))
}
