// Package config handles reading and writing ~/.config/daystreak/config.yaml and
// applying DAYSTREAK_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/utils"
)

// Config is the top-level structure for config.yaml.
type Config struct {
	Gateway string `yaml:"gateway" validate:"oneof=sqlite postgres supabase"`
	// Database is the SQLite file path or a password-free PostgreSQL connection string
	Database    string         `yaml:"database"`
	Supabase    SupabaseConfig `yaml:"supabase"`
	RedirectURL string         `yaml:"redirect_url" validate:"omitempty,url"`
	Timeout     time.Duration  `yaml:"timeout" validate:"gt=0"`
	Timezone    string         `yaml:"timezone"`
	Debug       bool           `yaml:"debug"`
}

// SupabaseConfig holds the hosted project settings.
type SupabaseConfig struct {
	URL       string `yaml:"url" validate:"omitempty,url"`
	AnonKey   string `yaml:"anon_key"`
	JWTSecret string `yaml:"jwt_secret,omitempty"`
}

// Environment variables, each overriding the matching file field
const (
	EnvGateway           = "DAYSTREAK_GATEWAY"
	EnvDatabase          = "DAYSTREAK_DATABASE"
	EnvSupabaseURL       = "DAYSTREAK_SUPABASE_URL"
	EnvSupabaseAnonKey   = "DAYSTREAK_SUPABASE_ANON_KEY"
	EnvSupabaseJWTSecret = "DAYSTREAK_SUPABASE_JWT_SECRET"
	EnvRedirectURL       = "DAYSTREAK_REDIRECT_URL"
	EnvTimeout           = "DAYSTREAK_TIMEOUT"
	EnvTimezone          = "DAYSTREAK_TIMEZONE"
	EnvDebug             = "DAYSTREAK_DEBUG"
)

// Default returns a Config for a local SQLite database under dir.
func Default(dir string) *Config {
	return &Config{
		Gateway:     constants.GatewaySQLite,
		Database:    filepath.Join(dir, constants.DefaultDBFile),
		RedirectURL: constants.DefaultRedirectURL,
		Timeout:     constants.DefaultTimeout,
		Timezone:    constants.DefaultTimezone,
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Path returns the config file location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, constants.DefaultConfigFile)
}

// Read loads config.yaml from dir on top of the defaults.
// A missing file is not an error.
func Read(dir string) (*Config, error) {
	cfg := Default(dir)

	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Gateway == constants.GatewaySQLite {
		if cfg.Database, err = ExpandHome(cfg.Database); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Write saves cfg to dir/config.yaml, creating dir if needed.
func Write(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	// The file may carry a JWT secret
	if err := os.WriteFile(Path(dir), data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment. lookup is usually os.Getenv.
func (c *Config) ApplyEnv(lookup func(string) string) error {
	get := func(key string) string { return strings.TrimSpace(lookup(key)) }

	if v := get(EnvGateway); v != "" {
		c.Gateway = strings.ToLower(v)
	}
	if v := get(EnvDatabase); v != "" {
		c.Database = v
	}
	if v := get(EnvSupabaseURL); v != "" {
		c.Supabase.URL = v
	}
	if v := get(EnvSupabaseAnonKey); v != "" {
		c.Supabase.AnonKey = v
	}
	if v := get(EnvSupabaseJWTSecret); v != "" {
		c.Supabase.JWTSecret = v
	}
	if v := get(EnvRedirectURL); v != "" {
		c.RedirectURL = v
	}
	if v := get(EnvTimezone); v != "" {
		c.Timezone = v
	}
	if v := get(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v := get(EnvDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDebug, err)
		}
		c.Debug = b
	}
	return nil
}

// Validate checks field formats and the settings each gateway requires.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config: %s failed %q check", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := utils.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Gateway {
	case constants.GatewaySQLite:
		if c.Database == "" {
			return errors.New("invalid config: database path is required for the sqlite gateway")
		}
	case constants.GatewaySupabase:
		if c.Supabase.URL == "" || c.Supabase.AnonKey == "" {
			return errors.New("invalid config: supabase.url and supabase.anon_key are required for the supabase gateway")
		}
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return utils.LoadLocation(c.Timezone)
}
