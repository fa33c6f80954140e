package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

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
	token, err := keyring.GetSession(constants.GatewayPostgres)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			logger.Warn("Could not read persisted session", "error", err)
		}
		return nil, nil
	}

	var sess models.Session
	err = s.db.QueryRowContext(ctx, `
		SELECT s.token, s.expires_at, u.id, u.email
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = $1 AND s.expires_at > now()`,
		token).Scan(&sess.AccessToken, &sess.ExpiresAt, &sess.UserID, &sess.Email)
	if errors.Is(err, sql.ErrNoRows) {
		_ = keyring.DeleteSession(constants.GatewayPostgres)
		return nil, nil
	}
	if err != nil {
		return nil, wrap("restore session", err)
	}

	s.setSession(&sess)
	return &sess, nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	var userID, storedEmail, hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash FROM users WHERE lower(email) = lower($1)",
		strings.TrimSpace(email)).Scan(&userID, &storedEmail, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrInvalidCredentials
	}
	if err != nil {
		return nil, wrap("look up user", err)
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
	sess := &models.Session{
		UserID:      userID,
		Email:       email,
		AccessToken: uuid.NewString(),
		ExpiresAt:   time.Now().Add(constants.SessionLifetime).UTC(),
	}

	_, err := db.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, expires_at) VALUES ($1, $2, $3)",
		sess.AccessToken, userID, sess.ExpiresAt)
	if err != nil {
		return nil, wrap("create session", err)
	}

	if err := keyring.SetSession(constants.GatewayPostgres, sess.AccessToken); err != nil {
		logger.Warn("Session will not survive restart", "error", err)
	}

	s.setSession(sess)
	return sess, nil
}

func (s *Store) SignUp(ctx context.Context, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	// An existing email is left untouched and reported as success
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT ((lower(email))) DO NOTHING`,
		uuid.NewString(), strings.TrimSpace(email), string(hash))
	if err != nil {
		return wrap("create user", err)
	}
	return nil
}

func (s *Store) SignOut(ctx context.Context) error {
	sess, _ := s.currentSession()
	s.setSession(nil)
	defer s.Publish(models.AuthEvent{Type: models.AuthEventSignedOut})

	if err := keyring.DeleteSession(constants.GatewayPostgres); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		logger.Warn("Failed to clear persisted session", "error", err)
	}

	if sess == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = $1", sess.AccessToken); err != nil {
		return wrap("revoke session", err)
	}
	return nil
}

func (s *Store) ResetPassword(ctx context.Context, email, redirectTo string) error {
	var userID string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE lower(email) = lower($1)", strings.TrimSpace(email)).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return wrap("look up user", err)
	}

	token := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO password_resets (token, user_id, redirect_to, expires_at) VALUES ($1, $2, $3, $4)",
		token, userID, redirectTo, time.Now().Add(constants.PasswordResetLifetime).UTC())
	if err != nil {
		return wrap("create password reset", err)
	}

	fmt.Fprintf(s.Outbox, "Recovery link for %s: %s\n", strings.TrimSpace(email), storage.RecoveryLink(redirectTo, token))
	logger.Info("Password reset requested", "user", userID)
	return nil
}

func (s *Store) CompletePasswordReset(ctx context.Context, token, newPassword string) (*models.Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID, email string
	err = tx.QueryRowContext(ctx, `
		UPDATE password_resets r SET used_at = now()
		FROM users u
		WHERE r.token = $1 AND r.used_at IS NULL AND r.expires_at > now() AND u.id = r.user_id
		RETURNING u.id, u.email`, token).Scan(&userID, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrInvalidToken
	}
	if err != nil {
		return nil, wrap("consume reset token", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", string(hash), userID); err != nil {
		return nil, wrap("update password", err)
	}

	sess, err := s.createSession(ctx, tx, userID, email)
	if err != nil {
		s.setSession(nil)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		s.setSession(nil)
		return nil, wrap("commit password reset", err)
	}

	s.Publish(models.AuthEvent{Type: models.AuthEventPasswordRecovery, Session: sess})
	return sess, nil
}
