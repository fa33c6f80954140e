package models

import "time"

// Session is the authenticated identity bound to the running client
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the session expires before now plus leeway.
func (s *Session) Expired(now time.Time, leeway time.Duration) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(s.ExpiresAt)
}

type AuthEventType string

const (
	AuthEventSignedIn         AuthEventType = "signed_in"
	AuthEventSignedOut        AuthEventType = "signed_out"
	AuthEventTokenRefreshed   AuthEventType = "token_refreshed"
	AuthEventPasswordRecovery AuthEventType = "password_recovery"
	AuthEventUserUpdated      AuthEventType = "user_updated"
)

// AuthEvent is pushed by a gateway whenever its session changes.
// Session is nil for sign-out.
type AuthEvent struct {
	Type    AuthEventType
	Session *Session
}
