package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/daystreak/internal/config"
	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/keyring"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/storage/postgres"
	"github.com/julianstephens/daystreak/internal/storage/sqlite"
	"github.com/julianstephens/daystreak/internal/storage/supabase"
)

// NewProvider builds the persistence gateway selected by cfg.
func NewProvider(cfg *config.Config) (storage.Provider, error) {
	switch cfg.Gateway {
	case constants.GatewaySQLite:
		return sqlite.NewStore(cfg.Database), nil

	case constants.GatewayPostgres:
		connStr, err := postgresConnString(cfg.Database)
		if err != nil {
			return nil, err
		}
		return postgres.New(connStr), nil

	case constants.GatewaySupabase:
		store, err := supabase.New(supabase.Config{
			URL:       cfg.Supabase.URL,
			AnonKey:   cfg.Supabase.AnonKey,
			JWTSecret: cfg.Supabase.JWTSecret,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown gateway %q", cfg.Gateway)
}

// postgresConnString prefers an explicit, password-free connection string and falls back
// to the one stored in the OS keyring, which may carry credentials.
func postgresConnString(configured string) (string, error) {
	if strings.TrimSpace(configured) != "" {
		if _, err := postgres.ValidateConnString(configured); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return "", fmt.Errorf("PostgreSQL connection strings with embedded passwords are not allowed in config; "+
					"store it with '%s connection set' or use .pgpass", constants.AppName)
			}
			return "", err
		}
		return configured, nil
	}

	connStr, err := keyring.GetConnectionString()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("no PostgreSQL connection configured; set 'database' in config or run '%s connection set'", constants.AppName)
		}
		return "", err
	}
	return connStr, nil
}
