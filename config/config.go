// Package config loads service settings from an optional TOML or YAML file
// followed by environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Server contains HTTP listener settings.
type Server struct {
	Port                   string `toml:"port" yaml:"port"`
	RequestTimeoutSeconds  int    `toml:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// Database selects the driver and pool sizing.
type Database struct {
	Driver                 string `toml:"driver" yaml:"driver"` // postgres | sqlite
	DSN                    string `toml:"dsn" yaml:"dsn"`
	MaxOpenConns           int    `toml:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns           int    `toml:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `toml:"conn_max_lifetime_minutes" yaml:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `toml:"auto_migrate" yaml:"auto_migrate"`
}

// Storage locates generated artifacts on disk.
type Storage struct {
	GeneratedDir string `toml:"generated_dir" yaml:"generated_dir"`
}

// Generation tunes the generation state machine and its worker pool.
type Generation struct {
	Async                  bool   `toml:"async" yaml:"async"`
	Workers                int    `toml:"workers" yaml:"workers"` // 0 = derive from GOMAXPROCS
	QueueSize              int    `toml:"queue_size" yaml:"queue_size"`
	RenderTimeoutSeconds   int    `toml:"render_timeout_seconds" yaml:"render_timeout_seconds"`
	LeaseTimeoutSeconds    int    `toml:"lease_timeout_seconds" yaml:"lease_timeout_seconds"`
	ReclaimIntervalSeconds int    `toml:"reclaim_interval_seconds" yaml:"reclaim_interval_seconds"`
	EmbedRemoteImages      bool   `toml:"embed_remote_images" yaml:"embed_remote_images"`
	Publisher              string `toml:"publisher" yaml:"publisher"`
	Language               string `toml:"language" yaml:"language"`
}

// PDF configures the headless browser backend.
type PDF struct {
	BrowserBin string `toml:"browser_bin" yaml:"browser_bin"`
	NoSandbox  bool   `toml:"no_sandbox" yaml:"no_sandbox"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // text | json
}

// Config encapsulates all configuration values for the service.
type Config struct {
	Server     Server     `toml:"server" yaml:"server"`
	Database   Database   `toml:"database" yaml:"database"`
	Storage    Storage    `toml:"storage" yaml:"storage"`
	Generation Generation `toml:"generation" yaml:"generation"`
	PDF        PDF        `toml:"pdf" yaml:"pdf"`
	Logging    Logging    `toml:"logging" yaml:"logging"`
}

// Default returns the configuration used when no file or env override is set.
func Default() Config {
	return Config{
		Server: Server{
			Port:                   "8080",
			RequestTimeoutSeconds:  60,
			ShutdownTimeoutSeconds: 15,
		},
		Database: Database{
			Driver:                 "postgres",
			DSN:                    "user=postgres password=password dbname=quire host=localhost port=5432 sslmode=disable",
			MaxOpenConns:           25,
			MaxIdleConns:           25,
			ConnMaxLifetimeMinutes: 5,
		},
		Storage: Storage{
			GeneratedDir: "public/generated",
		},
		Generation: Generation{
			QueueSize:              64,
			RenderTimeoutSeconds:   120,
			LeaseTimeoutSeconds:    600,
			ReclaimIntervalSeconds: 60,
			Language:               "en",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the optional config file at path, applies environment overrides
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %q not found: %w", path, err)
		}
		return fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("PORT", &c.Server.Port)
	set("DB_DRIVER", &c.Database.Driver)
	set("DB_CONNECTION_STRING", &c.Database.DSN)
	set("GENERATED_DIR", &c.Storage.GeneratedDir)
	set("ROD_BROWSER_BIN", &c.PDF.BrowserBin)
	set("LOG_LEVEL", &c.Logging.Level)

	if v, ok := lookup("GENERATION_ASYNC"); ok {
		if async, err := strconv.ParseBool(v); err == nil {
			c.Generation.Async = async
		}
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("server.port must be numeric, got %q", c.Server.Port))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if strings.TrimSpace(c.Storage.GeneratedDir) == "" {
		errs = append(errs, errors.New("storage.generated_dir is required"))
	}
	if c.Generation.Workers < 0 {
		errs = append(errs, errors.New("generation.workers must not be negative"))
	}
	if c.Generation.QueueSize <= 0 {
		errs = append(errs, errors.New("generation.queue_size must be positive"))
	}
	if c.Generation.RenderTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("generation.render_timeout_seconds must be positive"))
	}
	if c.Generation.LeaseTimeoutSeconds <= c.Generation.RenderTimeoutSeconds {
		errs = append(errs, errors.New("generation.lease_timeout_seconds must exceed the render timeout"))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

func (c *Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.Database.ConnMaxLifetimeMinutes) * time.Minute
}

func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Generation.RenderTimeoutSeconds) * time.Second
}

func (c *Config) LeaseTimeout() time.Duration {
	return time.Duration(c.Generation.LeaseTimeoutSeconds) * time.Second
}

func (c *Config) ReclaimInterval() time.Duration {
	return time.Duration(c.Generation.ReclaimIntervalSeconds) * time.Second
}
