// Package migrations embeds the SQL schema for each gateway.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql supabase/*.sql
var FS embed.FS
