// Package session owns the single authenticated identity of the running client.
//
// The Manager never polls: the gateway pushes auth events and every event replaces the
// current session wholesale.
package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/julianstephens/daystreak/internal/constants"
	errs "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/validation"
)

// Options configures a Manager. Zero values select defaults.
type Options struct {
	Validator   *validation.Validator
	RedirectURL string
	Timeout     time.Duration
}

type Manager struct {
	auth        storage.Authenticator
	validate    *validation.Validator
	redirectURL string
	timeout     time.Duration

	current atomic.Pointer[models.Session]

	mu        sync.Mutex
	nextID    int
	listeners map[int]func(*models.Session)
	cancel    func()
	done      chan struct{}
}

func New(auth storage.Authenticator, opts Options) *Manager {
	m := &Manager{
		auth:        auth,
		validate:    opts.Validator,
		redirectURL: opts.RedirectURL,
		timeout:     opts.Timeout,
		listeners:   make(map[int]func(*models.Session)),
	}
	if m.validate == nil {
		m.validate = validation.New()
	}
	if m.redirectURL == "" {
		m.redirectURL = constants.DefaultRedirectURL
	}
	if m.timeout <= 0 {
		m.timeout = constants.DefaultTimeout
	}
	return m
}

// Current returns the live session, or nil when signed out.
func (m *Manager) Current() *models.Session {
	return m.current.Load()
}

// Subscribe registers fn to be called with every replacement of the session.
// The returned func removes it.
func (m *Manager) Subscribe(fn func(*models.Session)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) set(sess *models.Session) {
	m.current.Store(sess)

	m.mu.Lock()
	fns := make([]func(*models.Session), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(sess)
	}
}

// Restore adopts whatever session the gateway persisted. It always leaves the manager in a
// defined state: on failure the session is absent and a network-error is returned.
func (m *Manager) Restore(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	sess, err := m.auth.RestoreSession(ctx)
	if err != nil {
		m.set(nil)
		logger.Warn("Session restore failed", "error", err)
		return errs.FromGateway("restore session", err, errs.KindNetwork)
	}

	m.set(sess)
	if sess != nil {
		logger.Debug("Session restored", "user", sess.UserID)
	}
	return nil
}

// Start subscribes to the gateway's auth events until Stop is called or ctx ends.
// Calling Start on a running manager does nothing.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	events, unsubscribe := m.auth.Subscribe()
	m.cancel = unsubscribe
	done := make(chan struct{})
	m.done = done

	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				m.HandleEvent(ev)
			case <-ctx.Done():
				unsubscribe()
				return
			}
		}
	}()
}

// Stop ends the event subscription and waits for the listener to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// HandleEvent replaces the session with the one carried by ev.
func (m *Manager) HandleEvent(ev models.AuthEvent) {
	logger.Debug("Auth event", "type", ev.Type)
	m.set(ev.Session)
}

func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	if err := m.validate.Credentials(email, password); err != nil {
		return errs.New(errs.KindValidation, "sign in", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	sess, err := m.auth.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		logger.Info("Sign-in rejected", "error", err)
		return errs.FromGateway("sign in", err, errs.KindInvalidCredentials)
	}

	m.set(sess)
	logger.Info("Signed in", "user", sess.UserID)
	return nil
}

// SignUp registers an account. The session is left absent; the user signs in next.
func (m *Manager) SignUp(ctx context.Context, email, password string) error {
	if err := m.validate.Credentials(email, password); err != nil {
		return errs.New(errs.KindValidation, "sign up", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.auth.SignUp(ctx, strings.TrimSpace(email), password); err != nil {
		return errs.FromGateway("sign up", err, errs.KindNetwork)
	}
	return nil
}

// SignOut clears the session. The gateway call is best effort and never fails the operation.
func (m *Manager) SignOut(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.auth.SignOut(ctx); err != nil {
		logger.Warn("Gateway sign-out failed", "error", err)
	}
	m.set(nil)
	logger.Info("Signed out")
}

func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	if err := m.validate.Email(email); err != nil {
		return errs.New(errs.KindValidation, "reset password", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.auth.ResetPassword(ctx, strings.TrimSpace(email), m.redirectURL); err != nil {
		return errs.FromGateway("reset password", err, errs.KindNetwork)
	}
	return nil
}

// CompletePasswordReset redeems a recovery token, sets newPassword and signs the user in.
func (m *Manager) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errs.New(errs.KindValidation, "complete password reset", &validation.FieldError{Field: "Token", Rule: "required"})
	}
	if err := m.validate.Password(newPassword); err != nil {
		return errs.New(errs.KindValidation, "complete password reset", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	sess, err := m.auth.CompletePasswordReset(ctx, token, newPassword)
	if err != nil {
		return errs.FromGateway("complete password reset", err, errs.KindInvalidCredentials)
	}

	m.set(sess)
	return nil
}
