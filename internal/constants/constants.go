package constants

import "time"

const (
	AppName           = "daystreak"
	Version           = "v0.1.0"
	DefaultConfigDir  = "~/.config/daystreak"
	DefaultConfigFile = "config.yaml"
	DefaultDBFile     = "daystreak.db"

	// Keyring users under the AppName service
	KeyringSessionUser    = "session"
	KeyringConnectionUser = "database-connection"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimestampFormat is fixed-width so stored timestamps sort lexically in SQLite
	TimestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

	// Gateway kinds
	GatewaySQLite   = "sqlite"
	GatewayPostgres = "postgres"
	GatewaySupabase = "supabase"

	// Auth constants
	MinPasswordLength     = 6
	SessionLifetime       = 7 * 24 * time.Hour
	PasswordResetLifetime = time.Hour
	TokenRefreshLeeway    = time.Minute

	// DefaultTimeout bounds every gateway call
	DefaultTimeout = 10 * time.Second

	DefaultTimezone    = "Local"
	DefaultRedirectURL = "http://localhost:3000/reset-password"

	// PostgresUserSetting carries the caller identity for row-level security policies
	PostgresUserSetting = "daystreak.user_id"
)
