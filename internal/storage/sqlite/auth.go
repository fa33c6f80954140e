package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/keyring"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
)

func (s *Store) currentSession() (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, storage.ErrNoSession
	}
	return s.session, nil
}

func (s *Store) setSession(sess *models.Session) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
}

func (s *Store) RestoreSession(ctx context.Context) (*models.Session, error) {
	token, err := keyring.GetSession(constants.GatewaySQLite)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			logger.Warn("Could not read persisted session", "error", err)
		}
		return nil, nil
	}

	var sess models.Session
	var expiresAt string
	err = s.db.QueryRowContext(ctx, `
		SELECT s.token, s.expires_at, u.id, u.email
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ?`,
		token, s.timestamp(s.now())).Scan(&sess.AccessToken, &expiresAt, &sess.UserID, &sess.Email)
	if errors.Is(err, sql.ErrNoRows) {
		logger.Debug("Persisted session expired or revoked")
		_ = keyring.DeleteSession(constants.GatewaySQLite)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	sess.ExpiresAt, err = parseTimestamp(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expires_at: %w", err)
	}

	s.setSession(&sess)
	return &sess, nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.TrimSpace(email)

	var userID, storedEmail, hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash FROM users WHERE email = ?", email).Scan(&userID, &storedEmail, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, storage.ErrInvalidCredentials
	}

	sess, err := s.createSession(ctx, s.db, userID, storedEmail)
	if err != nil {
		return nil, err
	}

	s.Publish(models.AuthEvent{Type: models.AuthEventSignedIn, Session: sess})
	return sess, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) createSession(ctx context.Context, db execer, userID, email string) (*models.Session, error) {
	now := s.now()
	sess := &models.Session{
		UserID:      userID,
		Email:       email,
		AccessToken: uuid.NewString(),
		ExpiresAt:   now.Add(constants.SessionLifetime).UTC(),
	}

	_, err := db.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		sess.AccessToken, userID, s.timestamp(now), s.timestamp(sess.ExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := keyring.SetSession(constants.GatewaySQLite, sess.AccessToken); err != nil {
		logger.Warn("Session will not survive restart", "error", err)
	}

	s.setSession(sess)
	return sess, nil
}

func (s *Store) SignUp(ctx context.Context, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// An existing email is left untouched and reported as success
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING`,
		uuid.NewString(), strings.TrimSpace(email), string(hash), s.timestamp(s.now()))
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		logger.Debug("Sign-up for existing account ignored")
	}
	return nil
}

func (s *Store) SignOut(ctx context.Context) error {
	sess, _ := s.currentSession()
	s.setSession(nil)
	defer s.Publish(models.AuthEvent{Type: models.AuthEventSignedOut})

	if err := keyring.DeleteSession(constants.GatewaySQLite); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		logger.Warn("Failed to clear persisted session", "error", err)
	}

	if sess == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", sess.AccessToken); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (s *Store) ResetPassword(ctx context.Context, email, redirectTo string) error {
	var userID string
	err := s.db.QueryRowContext(ctx, "SELECT id FROM users WHERE email = ?", strings.TrimSpace(email)).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		// Unknown addresses look identical to known ones
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	token := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO password_resets (token, user_id, redirect_to, expires_at) VALUES (?, ?, ?, ?)",
		token, userID, redirectTo, s.timestamp(s.now().Add(constants.PasswordResetLifetime)))
	if err != nil {
		return fmt.Errorf("failed to create password reset: %w", err)
	}

	fmt.Fprintf(s.Outbox, "Recovery link for %s: %s\n", strings.TrimSpace(email), storage.RecoveryLink(redirectTo, token))
	logger.Info("Password reset requested", "user", userID)
	return nil
}

func (s *Store) CompletePasswordReset(ctx context.Context, token, newPassword string) (*models.Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.timestamp(s.now())
	var userID, email string
	err = tx.QueryRowContext(ctx, `
		SELECT u.id, u.email FROM password_resets r JOIN users u ON u.id = r.user_id
		WHERE r.token = ? AND r.used_at IS NULL AND r.expires_at > ?`, token, now).Scan(&userID, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up reset token: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", string(hash), userID); err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE password_resets SET used_at = ? WHERE token = ?", now, token); err != nil {
		return nil, fmt.Errorf("failed to consume reset token: %w", err)
	}

	sess, err := s.createSession(ctx, tx, userID, email)
	if err != nil {
		s.setSession(nil)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		s.setSession(nil)
		return nil, fmt.Errorf("failed to commit password reset: %w", err)
	}

	s.Publish(models.AuthEvent{Type: models.AuthEventPasswordRecovery, Session: sess})
	return sess, nil
}
