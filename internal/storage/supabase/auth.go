package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/keyring"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
)

// accessClaims are the GoTrue access token claims the client reads.
type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func isClientError(err error) bool {
	status := statusOf(err)
	return status >= 400 && status < 500
}

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

// parseClaims decodes an access token. Signatures are only checked when a JWT secret is configured.
func (s *Store) parseClaims(token string) (*accessClaims, error) {
	claims := &accessClaims{}
	if s.jwtSecret == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrInvalidToken, err)
		}
		return claims, nil
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, storage.ErrInvalidToken
	}
	return claims, nil
}

// sessionFromTokenResponse builds a session from a GoTrue token grant or verify response.
func (s *Store) sessionFromTokenResponse(body []byte) (*models.Session, error) {
	res := gjson.ParseBytes(body)

	access := res.Get("access_token").String()
	if access == "" {
		return nil, fmt.Errorf("%w: response has no access token", storage.ErrInvalidToken)
	}

	sess := &models.Session{
		UserID:       res.Get("user.id").String(),
		Email:        res.Get("user.email").String(),
		AccessToken:  access,
		RefreshToken: res.Get("refresh_token").String(),
	}

	if v := res.Get("expires_at"); v.Exists() {
		sess.ExpiresAt = time.Unix(v.Int(), 0).UTC()
	} else if v := res.Get("expires_in"); v.Exists() {
		sess.ExpiresAt = s.now().Add(time.Duration(v.Int()) * time.Second).UTC()
	}

	claims, err := s.parseClaims(access)
	if err != nil {
		return nil, err
	}
	if sess.UserID == "" {
		sess.UserID = claims.Subject
	}
	if sess.Email == "" {
		sess.Email = claims.Email
	}
	if sess.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	if sess.UserID == "" {
		return nil, fmt.Errorf("%w: token has no subject", storage.ErrInvalidToken)
	}
	return sess, nil
}

func (s *Store) persist(sess *models.Session) {
	data, err := json.Marshal(sess)
	if err != nil {
		logger.Warn("Failed to encode session", "error", err)
		return
	}
	if err := keyring.SetSession(constants.GatewaySupabase, string(data)); err != nil {
		logger.Warn("Session will not survive restart", "error", err)
	}
}

func (s *Store) forget() {
	if err := keyring.DeleteSession(constants.GatewaySupabase); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		logger.Warn("Failed to clear persisted session", "error", err)
	}
}

// establish makes sess the live session and announces it.
func (s *Store) establish(sess *models.Session, event models.AuthEventType) {
	s.persist(sess)
	s.setSession(sess)
	s.Publish(models.AuthEvent{Type: event, Session: sess})
}

// dropSession ends a session the server no longer honours.
func (s *Store) dropSession() {
	s.setSession(nil)
	s.forget()
	s.Publish(models.AuthEvent{Type: models.AuthEventSignedOut})
}

func (s *Store) refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	v, err, _ := s.refreshGroup.Do(refreshToken, func() (any, error) {
		body, err := s.do(ctx, http.MethodPost, "/auth/v1/token",
			url.Values{"grant_type": {"refresh_token"}},
			map[string]string{"refresh_token": refreshToken}, "", nil)
		if err != nil {
			return nil, err
		}
		sess, err := s.sessionFromTokenResponse(body)
		if err != nil {
			return nil, err
		}
		logger.Debug("Refreshed access token", "user", sess.UserID)
		s.establish(sess, models.AuthEventTokenRefreshed)
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Session), nil
}

// accessToken returns a bearer for the live session, refreshing it when it is about to expire.
func (s *Store) accessToken(ctx context.Context) (string, error) {
	sess, err := s.currentSession()
	if err != nil {
		return "", err
	}
	if !sess.Expired(s.now(), constants.TokenRefreshLeeway) || sess.RefreshToken == "" {
		return sess.AccessToken, nil
	}

	refreshed, err := s.refresh(ctx, sess.RefreshToken)
	if err != nil {
		if isClientError(err) {
			s.dropSession()
			return "", fmt.Errorf("%w: %v", storage.ErrNoSession, err)
		}
		return "", err
	}
	return refreshed.AccessToken, nil
}

func (s *Store) RestoreSession(ctx context.Context) (*models.Session, error) {
	blob, err := keyring.GetSession(constants.GatewaySupabase)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			logger.Warn("Could not read persisted session", "error", err)
		}
		return nil, nil
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(blob), &sess); err != nil || sess.AccessToken == "" {
		logger.Warn("Discarding unreadable persisted session")
		s.forget()
		return nil, nil
	}

	if !sess.Expired(s.now(), constants.TokenRefreshLeeway) {
		s.setSession(&sess)
		return &sess, nil
	}

	if sess.RefreshToken == "" {
		s.forget()
		return nil, nil
	}

	refreshed, err := s.refresh(ctx, sess.RefreshToken)
	if err != nil {
		if isClientError(err) || errors.Is(err, storage.ErrInvalidToken) {
			s.forget()
			return nil, nil
		}
		return nil, err
	}
	return refreshed, nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	body, err := s.do(ctx, http.MethodPost, "/auth/v1/token",
		url.Values{"grant_type": {"password"}},
		map[string]string{"email": email, "password": password}, "", nil)
	if err != nil {
		if isClientError(err) {
			return nil, fmt.Errorf("%w: %v", storage.ErrInvalidCredentials, err)
		}
		return nil, err
	}

	sess, err := s.sessionFromTokenResponse(body)
	if err != nil {
		return nil, err
	}

	s.establish(sess, models.AuthEventSignedIn)
	return sess, nil
}

// SignUp registers the account. Any session GoTrue returns for auto-confirmed
// projects is discarded; the user signs in explicitly.
func (s *Store) SignUp(ctx context.Context, email, password string) error {
	_, err := s.do(ctx, http.MethodPost, "/auth/v1/signup", nil,
		map[string]string{"email": email, "password": password}, "", nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Code == "user_already_exists" || apiErr.Code == "email_exists") {
			logger.Debug("Sign-up for existing account ignored")
			return nil
		}
		return err
	}
	return nil
}

func (s *Store) SignOut(ctx context.Context) error {
	sess, _ := s.currentSession()
	s.setSession(nil)
	defer s.Publish(models.AuthEvent{Type: models.AuthEventSignedOut})
	s.forget()

	if sess == nil {
		return nil
	}

	_, err := s.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, sess.AccessToken, nil)
	if err != nil {
		// Already revoked or expired on the server
		if status := statusOf(err); status == http.StatusUnauthorized || status == http.StatusNotFound {
			return nil
		}
		return err
	}
	return nil
}

func (s *Store) ResetPassword(ctx context.Context, email, redirectTo string) error {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	_, err := s.do(ctx, http.MethodPost, "/auth/v1/recover", query, map[string]string{"email": email}, "", nil)
	return err
}

func (s *Store) CompletePasswordReset(ctx context.Context, token, newPassword string) (*models.Session, error) {
	body, err := s.do(ctx, http.MethodPost, "/auth/v1/verify", nil,
		map[string]string{"type": "recovery", "token_hash": token}, "", nil)
	if err != nil {
		if isClientError(err) {
			return nil, fmt.Errorf("%w: %v", storage.ErrInvalidToken, err)
		}
		return nil, err
	}

	sess, err := s.sessionFromTokenResponse(body)
	if err != nil {
		return nil, err
	}

	// The recovery session stays private until the new password is accepted
	if _, err := s.do(ctx, http.MethodPut, "/auth/v1/user", nil,
		map[string]string{"password": newPassword}, sess.AccessToken, nil); err != nil {
		if _, lerr := s.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, sess.AccessToken, nil); lerr != nil {
			logger.Debug("Failed to revoke recovery session", "error", lerr)
		}
		switch status := statusOf(err); {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return nil, fmt.Errorf("%w: %v", storage.ErrInvalidToken, err)
		case isClientError(err):
			return nil, fmt.Errorf("%w: %v", storage.ErrPasswordRejected, err)
		}
		return nil, fmt.Errorf("failed to update password: %w", err)
	}

	s.establish(sess, models.AuthEventPasswordRecovery)
	s.Publish(models.AuthEvent{Type: models.AuthEventUserUpdated, Session: sess})
	return sess, nil
}
