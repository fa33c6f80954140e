package system

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/keyring"
	"github.com/julianstephens/daystreak/internal/utils"
)

type DoctorCmd struct{}

type check struct {
	name string
	run  func(*cli.Context) error
	// warn reports failures without failing the command
	warn bool
	// needsGateway checks are skipped when the gateway cannot be loaded
	needsGateway bool
}

var checks = []check{
	{name: "Config valid", run: checkConfig},
	{name: "Clock/timezone", run: checkClockTimezone},
	{name: "OS keyring", run: checkKeyring, warn: true},
	{name: "Gateway reachable", run: checkGateway},
	{name: "Session", run: checkSession, warn: true, needsGateway: true},
	{name: "Habit integrity", run: checkHabitsIntegrity, needsGateway: true},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	gatewayOK := true

	for _, c := range checks {
		if c.needsGateway && !gatewayOK {
			fmt.Printf("⊘ %s: SKIPPED (gateway not reachable)\n", c.name)
			continue
		}

		err := c.run(ctx)
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case c.warn:
			fmt.Printf("⚠ %s: WARNING\n", c.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", c.name)
			fmt.Printf("   Error: %s\n", cli.Message(err))
			hasError = true
		}

		if c.name == "Gateway reachable" && err != nil {
			gatewayOK = false
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	fmt.Println("All diagnostics passed!")
	return nil
}

func checkConfig(ctx *cli.Context) error {
	return ctx.Config.Validate()
}

func checkClockTimezone(ctx *cli.Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	_, err := ctx.Config.Location()
	return err
}

func checkKeyring(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		return fmt.Errorf("OS keyring unavailable; sessions will not persist between runs")
	}
	return nil
}

func checkGateway(ctx *cli.Context) error {
	return ctx.Open(context.Background())
}

func checkSession(ctx *cli.Context) error {
	if ctx.Session.Current() == nil {
		return fmt.Errorf("not signed in")
	}
	return nil
}

func checkHabitsIntegrity(ctx *cli.Context) error {
	if ctx.Session.Current() == nil {
		return nil
	}
	if err := ctx.Habits.Load(context.Background()); err != nil {
		return err
	}

	for _, h := range ctx.Habits.Habits() {
		if h.Streak < 0 {
			return fmt.Errorf("habit %q has a negative streak", h.Name)
		}
		if h.Streak > 0 && h.LastCompletedDate == "" {
			return fmt.Errorf("habit %q has a streak but no completion date", h.Name)
		}
		if h.LastCompletedDate != "" && !utils.IsValidDate(h.LastCompletedDate) {
			return fmt.Errorf("habit %q has an invalid completion date %q", h.Name, h.LastCompletedDate)
		}
	}
	return nil
}
