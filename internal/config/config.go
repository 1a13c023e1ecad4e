// Package config loads trrsurvey settings from TOML with TRR_* environment
// overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains HTTP listener settings.
type Server struct {
	Addr            string   `toml:"addr"`
	AllowedOrigins  []string `toml:"allowed_origins"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	// StaticDir serves a built frontend at / when set.
	StaticDir string `toml:"static_dir"`
}

// Database selects the row store.
type Database struct {
	Driver        string `toml:"driver"`
	DSN           string `toml:"dsn"`
	MigrationsDir string `toml:"migrations_dir"`
}

// Redis configures the survey read cache. An empty addr disables it.
type Redis struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	TTL      Duration `toml:"ttl"`
}

// Auth holds the identity and admin credentials.
type Auth struct {
	JWTSecret      string `toml:"jwt_secret"`
	AdminTokenHash string `toml:"admin_token_hash"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Scheduler controls the weekly run creator started by serve.
type Scheduler struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
}

// Config is the full application configuration.
type Config struct {
	Server    Server    `toml:"server"`
	Database  Database  `toml:"database"`
	Redis     Redis     `toml:"redis"`
	Auth      Auth      `toml:"auth"`
	Logging   Logging   `toml:"logging"`
	Scheduler Scheduler `toml:"scheduler"`
}

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Load reads path (when it exists) over the defaults, applies environment
// overrides, normalizes and validates. It reports whether the file existed.
func Load(path string) (*Config, bool, error) {
	cfg := Default()
	exists := false
	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
				return nil, false, fmt.Errorf("parse config: %w", err)
			}
			exists = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, false, fmt.Errorf("open config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, exists, err
	}
	return &cfg, exists, nil
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
