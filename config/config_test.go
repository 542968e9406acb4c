package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 120*time.Second, cfg.RenderTimeout())
	assert.Equal(t, 10*time.Minute, cfg.LeaseTimeout())
}

func TestLoad_Files(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "quire.toml",
			content: `
[database]
driver = "sqlite"
dsn = "file:quire.db"

[generation]
async = true
workers = 2
`,
		},
		{
			name: "yaml",
			file: "quire.yaml",
			content: `
database:
  driver: sqlite
  dsn: "file:quire.db"
generation:
  async: true
  workers: 2
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, "sqlite", cfg.Database.Driver)
			assert.Equal(t, "file:quire.db", cfg.Database.DSN)
			assert.True(t, cfg.Generation.Async)
			assert.Equal(t, 2, cfg.Generation.Workers)
			// untouched sections keep their defaults
			assert.Equal(t, "8080", cfg.Server.Port)
			assert.Equal(t, 64, cfg.Generation.QueueSize)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("unknown extension", func(t *testing.T) {
		_, err := Load(writeFile(t, "quire.ini", "port=1"))
		assert.ErrorContains(t, err, "unsupported config format")
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		assert.ErrorContains(t, err, "not found")
	})
	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(writeFile(t, "quire.toml", "[database]\ndriver = \"mysql\"\n"))
		assert.ErrorContains(t, err, "database.driver")
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":                 "9090",
		"DB_DRIVER":            "sqlite",
		"DB_CONNECTION_STRING": "file:env.db",
		"GENERATED_DIR":        "/tmp/generated",
		"ROD_BROWSER_BIN":      "/usr/bin/chromium",
		"LOG_LEVEL":            "debug",
		"GENERATION_ASYNC":     "true",
	}
	cfg := Default()
	cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:env.db", cfg.Database.DSN)
	assert.Equal(t, "/tmp/generated", cfg.Storage.GeneratedDir)
	assert.Equal(t, "/usr/bin/chromium", cfg.PDF.BrowserBin)
	assert.True(t, cfg.Generation.Async)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = "http" }, "server.port"},
		{"dsn", func(c *Config) { c.Database.DSN = " " }, "database.dsn"},
		{"queue", func(c *Config) { c.Generation.QueueSize = 0 }, "queue_size"},
		{"lease shorter than render", func(c *Config) { c.Generation.LeaseTimeoutSeconds = 60 }, "lease_timeout_seconds"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
