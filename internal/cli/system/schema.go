package system

import (
	"fmt"
	"io/fs"
	"path"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/migrations"
)

// SchemaCmd prints the SQL a gateway's database needs, for applying by hand.
type SchemaCmd struct {
	Gateway string `arg:"" optional:"" help:"sqlite, postgres or supabase (default: configured gateway)."`
}

func (c *SchemaCmd) Run(ctx *cli.Context) error {
	gateway := c.Gateway
	if gateway == "" {
		gateway = ctx.Config.Gateway
	}

	files, err := fs.Glob(migrations.FS, path.Join(gateway, "*.sql"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no schema for gateway %q (want %s, %s or %s)", gateway,
			constants.GatewaySQLite, constants.GatewayPostgres, constants.GatewaySupabase)
	}

	for _, name := range files {
		data, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return err
		}
		fmt.Printf("-- %s\n%s\n", path.Base(name), data)
	}
	return nil
}
