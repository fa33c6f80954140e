package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/daystreak/internal/backup"
	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/constants"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Snapshot the SQLite database." default:"1"`
	List    BackupListCmd    `cmd:"" help:"List available snapshots."`
	Restore BackupRestoreCmd `cmd:"" help:"Replace the database with a snapshot."`
}

func backupManager(ctx *cli.Context) (*backup.Manager, error) {
	if ctx.Config.Gateway != constants.GatewaySQLite {
		return nil, fmt.Errorf("backups are only available for the %s gateway", constants.GatewaySQLite)
	}
	return backup.NewManager(ctx.Config.Database), nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	snap, err := mgr.Create()
	if err != nil {
		return err
	}
	fmt.Printf("✓ Backup created: %s\n", snap.Path)
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	snaps, err := mgr.List()
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Printf("No backups in %s\n", mgr.Dir())
		return nil
	}

	fmt.Printf("Backups in %s (newest first):\n", mgr.Dir())
	for _, s := range snaps {
		fmt.Printf("  %s  %s  %.1f KB\n", s.Name(), s.Taken.Local().Format("2006-01-02 15:04:05"), float64(s.Size)/1024)
	}
	return nil
}

type BackupRestoreCmd struct {
	Name string `arg:"" optional:"" help:"Snapshot file name or path (default: newest)."`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}

	path, err := c.resolve(mgr)
	if err != nil {
		return err
	}

	// Release the database file before replacing it
	if err := ctx.Store.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	current, err := mgr.Restore(path)
	if current != nil {
		fmt.Printf("Saved current database as: %s\n", current.Name())
	}
	if err != nil {
		return err
	}
	fmt.Printf("✓ Restored database from: %s\n", filepath.Base(path))
	return nil
}

func (c *BackupRestoreCmd) resolve(mgr *backup.Manager) (string, error) {
	if c.Name == "" {
		snaps, err := mgr.List()
		if err != nil {
			return "", err
		}
		if len(snaps) == 0 {
			return "", errors.New("no backups available")
		}
		return snaps[0].Path, nil
	}

	if _, err := os.Stat(c.Name); err == nil {
		return c.Name, nil
	}
	path := filepath.Join(mgr.Dir(), c.Name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("backup %q not found in %s", c.Name, mgr.Dir())
	}
	return path, nil
}
