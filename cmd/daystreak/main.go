package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/cli/auth"
	habitcmd "github.com/julianstephens/daystreak/internal/cli/habits"
	"github.com/julianstephens/daystreak/internal/cli/system"
	"github.com/julianstephens/daystreak/internal/config"
	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/habits"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/session"
	"github.com/julianstephens/daystreak/internal/validation"
)

var CLI struct {
	Version   kong.VersionFlag
	ConfigDir string `help:"Directory holding config.yaml and logs." type:"string" default:"${config_dir}"`
	Gateway   string `help:"Persistence gateway: sqlite, postgres or supabase."`
	Database  string `help:"SQLite file path or PostgreSQL connection string. PostgreSQL credentials must NOT be embedded; use the OS keyring or .pgpass."`
	Timezone  string `help:"IANA time zone used to decide the current day (default: Local)."`
	Debug     bool   `help:"Log to stderr at debug level."`

	Init       system.InitCmd       `cmd:"" help:"Initialize daystreak storage."`
	Auth       auth.AuthCmd         `cmd:"" help:"Sign in, sign up and manage your account."`
	Habit      habitcmd.HabitCmd    `cmd:"" help:"Manage habits and daily completions."`
	Schema     system.SchemaCmd     `cmd:"" help:"Print the SQL schema for a gateway."`
	Connection system.ConnectionCmd `cmd:"" help:"Manage the PostgreSQL connection string in the OS keyring."`
	Backup     system.BackupCmd     `cmd:"" help:"Manage SQLite database backups."`
	Doctor     system.DoctorCmd     `cmd:"" help:"Run health checks and diagnostics."`
}

// Commands that run without a working gateway
var offlineCommands = []string{"schema", "connection"}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Daily habit tracker with streaks"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":    constants.Version,
			"config_dir": constants.DefaultConfigDir,
		},
	)

	cfg, configDir, err := loadConfig()
	if err != nil {
		errors.Fatal(err)
	}

	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: configDir}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	appCtx := &cli.Context{
		Config:    cfg,
		ConfigDir: configDir,
		Prompt:    cli.PromptPassword,
	}

	store, err := cli.NewProvider(cfg)
	if err != nil && !isOffline(kctx.Command()) {
		errors.Fatal(err)
	}
	if store != nil {
		loc, err := cfg.Location()
		if err != nil {
			errors.Fatal(err)
		}
		validate := validation.New()

		appCtx.Store = store
		appCtx.Session = session.New(store, session.Options{
			Validator:   validate,
			RedirectURL: cfg.RedirectURL,
			Timeout:     cfg.Timeout,
		})
		appCtx.Habits = habits.New(store, appCtx.Session, habits.Options{
			Validator: validate,
			Location:  loc,
			Timeout:   cfg.Timeout,
		})
	}

	logger.Debug("Running command", "command", kctx.Command(), "gateway", cfg.Gateway)
	err = kctx.Run(appCtx)

	if cerr := appCtx.Close(); cerr != nil {
		logger.Warn("Failed to close store", "error", cerr)
	}

	if err != nil {
		logger.Error("Command execution failed", "command", kctx.Command(), "error", err)
		fmt.Fprintln(os.Stderr, errors.Formatf("%s", cli.Message(err)))
		os.Exit(1)
	}
}

// loadConfig layers config.yaml, DAYSTREAK_* variables and command-line flags.
func loadConfig() (*config.Config, string, error) {
	configDir, err := config.ExpandHome(CLI.ConfigDir)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Read(configDir)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, "", err
	}

	if CLI.Gateway != "" {
		cfg.Gateway = CLI.Gateway
	}
	if CLI.Database != "" {
		cfg.Database = CLI.Database
	}
	if CLI.Timezone != "" {
		cfg.Timezone = CLI.Timezone
	}
	if CLI.Debug {
		cfg.Debug = true
	}

	if cfg.Gateway == constants.GatewaySQLite {
		if cfg.Database, err = config.ExpandHome(cfg.Database); err != nil {
			return nil, "", err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, configDir, nil
}

func isOffline(command string) bool {
	for _, name := range offlineCommands {
		if command == name || strings.HasPrefix(command, name+" ") {
			return true
		}
	}
	return false
}
