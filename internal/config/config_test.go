package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/daystreak/internal/constants"
)

func TestReadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Read(dir)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if cfg.Gateway != constants.GatewaySQLite {
		t.Errorf("Gateway = %q, want %q", cfg.Gateway, constants.GatewaySQLite)
	}
	if cfg.Database != filepath.Join(dir, constants.DefaultDBFile) {
		t.Errorf("Database = %q", cfg.Database)
	}
	if cfg.Timeout != constants.DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, constants.DefaultTimeout)
	}
}

func TestWriteThenRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	want := Default(dir)
	want.Gateway = constants.GatewaySupabase
	want.Supabase = SupabaseConfig{URL: "https://abc.supabase.co", AnonKey: "anon"}
	want.Timeout = 30 * time.Second
	want.Timezone = "America/New_York"

	if err := Write(dir, want); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	info, err := os.Stat(Path(dir))
	if err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}

	got, err := Read(dir)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if *got != *want {
		t.Errorf("Read() = %+v, want %+v", got, want)
	}
}

func TestReadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	content := `gateway: postgres
database: "postgres://habits@localhost:5432/habits?sslmode=disable"
timeout: 5s
debug: true
`
	if err := os.WriteFile(Path(dir), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Read(dir)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if cfg.Gateway != constants.GatewayPostgres || cfg.Timeout != 5*time.Second || !cfg.Debug {
		t.Errorf("Read() = %+v", cfg)
	}
	// Unset fields keep their defaults
	if cfg.RedirectURL != constants.DefaultRedirectURL {
		t.Errorf("RedirectURL = %q, want default", cfg.RedirectURL)
	}
}

func TestReadMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir), []byte("gateway: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(dir); err == nil {
		t.Error("Read() should fail on malformed YAML")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvGateway:         " SUPABASE ",
		EnvSupabaseURL:     "https://abc.supabase.co",
		EnvSupabaseAnonKey: "anon",
		EnvTimeout:         "3s",
		EnvDebug:           "true",
	}
	cfg := Default(t.TempDir())

	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv() failed: %v", err)
	}
	if cfg.Gateway != constants.GatewaySupabase {
		t.Errorf("Gateway = %q", cfg.Gateway)
	}
	if cfg.Supabase.URL != "https://abc.supabase.co" || cfg.Supabase.AnonKey != "anon" {
		t.Errorf("Supabase = %+v", cfg.Supabase)
	}
	if cfg.Timeout != 3*time.Second || !cfg.Debug {
		t.Errorf("Timeout = %v, Debug = %v", cfg.Timeout, cfg.Debug)
	}
}

func TestApplyEnvInvalid(t *testing.T) {
	tests := map[string]string{
		EnvTimeout: "soon",
		EnvDebug:   "maybe",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			cfg := Default(t.TempDir())
			err := cfg.ApplyEnv(func(k string) string {
				if k == key {
					return value
				}
				return ""
			})
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Errorf("ApplyEnv() error = %v, want mention of %s", err, key)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown gateway", func(c *Config) { c.Gateway = "mysql" }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, true},
		{"bad redirect", func(c *Config) { c.RedirectURL = "not a url" }, true},
		{"supabase without key", func(c *Config) {
			c.Gateway = constants.GatewaySupabase
			c.Supabase.URL = "https://abc.supabase.co"
		}, true},
		{"supabase complete", func(c *Config) {
			c.Gateway = constants.GatewaySupabase
			c.Supabase = SupabaseConfig{URL: "https://abc.supabase.co", AnonKey: "anon"}
		}, false},
		{"postgres without database", func(c *Config) {
			c.Gateway = constants.GatewayPostgres
			c.Database = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := ExpandHome("~/.config/daystreak")
	if err != nil {
		t.Fatalf("ExpandHome() failed: %v", err)
	}
	if got != filepath.Join(home, ".config/daystreak") {
		t.Errorf("ExpandHome() = %q", got)
	}

	if got, _ := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandHome(/abs/path) = %q", got)
	}
}
