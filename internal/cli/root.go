package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianstephens/daystreak/internal/config"
	"github.com/julianstephens/daystreak/internal/habits"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/session"
	"github.com/julianstephens/daystreak/internal/storage"
)

// Context is handed to every command's Run method.
type Context struct {
	Config    *config.Config
	ConfigDir string
	Store     storage.Provider
	Session   *session.Manager
	Habits    *habits.Store
	// Prompt reads a secret from the terminal
	Prompt func(title string) (string, error)

	opened bool
	stop   func()
}

// Open loads the store, restores any persisted session and starts listening for auth events.
// Commands that touch the gateway call it first; repeated calls do nothing.
func (c *Context) Open(ctx context.Context) error {
	if c.opened {
		return nil
	}
	if err := c.Store.Load(); err != nil {
		return err
	}

	if err := c.Session.Restore(ctx); err != nil {
		// Continue signed out; the next gateway call reports the real problem
		logger.Warn("Continuing without a restored session", "error", err)
	}
	c.Session.Start(ctx)
	unsubscribe := c.Session.Subscribe(c.Habits.OnSessionChange)

	c.stop = func() {
		unsubscribe()
		c.Session.Stop()
	}
	c.opened = true
	return nil
}

// Close stops the session listener and releases the store.
func (c *Context) Close() error {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

// Password returns value if set, otherwise prompts for it.
func (c *Context) Password(value, title string) (string, error) {
	if value != "" {
		return value, nil
	}
	if c.Prompt == nil {
		return "", fmt.Errorf("no password given and no terminal prompt available")
	}
	return c.Prompt(title)
}

// ResolveHabit matches ref against the loaded habits by id, then case-insensitive name,
// then unique id prefix. It returns ref unchanged when nothing matches.
func (c *Context) ResolveHabit(ref string) (string, bool) {
	return resolveHabit(c.Habits.Habits(), ref)
}

func resolveHabit(views []models.HabitView, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	for _, v := range views {
		if v.ID == ref {
			return v.ID, true
		}
	}

	var byName, byPrefix []string
	for _, v := range views {
		if strings.EqualFold(v.Name, ref) {
			byName = append(byName, v.ID)
		}
		if ref != "" && strings.HasPrefix(v.ID, ref) {
			byPrefix = append(byPrefix, v.ID)
		}
	}
	if len(byName) == 1 {
		return byName[0], true
	}
	if len(byName) == 0 && len(byPrefix) == 1 {
		return byPrefix[0], true
	}
	return ref, false
}
