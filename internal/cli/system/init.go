package system

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/daystreak/internal/backup"
	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/config"
	"github.com/julianstephens/daystreak/internal/constants"
)

type InitCmd struct {
	Force bool `help:"Back up and delete an existing SQLite database before initialization."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		if ctx.Config.Gateway != constants.GatewaySQLite {
			return fmt.Errorf("--force only applies to the %s gateway", constants.GatewaySQLite)
		}
		dbPath := ctx.Config.Database
		if _, err := os.Stat(dbPath); err == nil {
			snap, err := backup.NewManager(dbPath).Create()
			if err != nil {
				return fmt.Errorf("failed to back up existing database: %w", err)
			}
			fmt.Printf("Backed up existing database to: %s\n", snap.Path)

			// Close first to release the file
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			fmt.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized %s storage: %s\n", constants.AppName, ctx.Store.Describe())

	if _, err := os.Stat(config.Path(ctx.ConfigDir)); errors.Is(err, os.ErrNotExist) {
		if err := config.Write(ctx.ConfigDir, ctx.Config); err != nil {
			return err
		}
		fmt.Printf("Wrote config to: %s\n", config.Path(ctx.ConfigDir))
	}

	if ctx.Config.Gateway == constants.GatewaySupabase {
		fmt.Printf("Apply the habits table in the Supabase SQL editor: %s schema\n", constants.AppName)
	}
	return nil
}
