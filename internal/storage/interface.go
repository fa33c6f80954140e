package storage

import (
	"context"

	"github.com/julianstephens/daystreak/internal/models"
)

// Authenticator is the session half of the persistence gateway.
type Authenticator interface {
	// RestoreSession returns the persisted session if it is still valid, or nil when there is none.
	RestoreSession(ctx context.Context) (*models.Session, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	// SignUp registers an account. It never establishes a session.
	SignUp(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email, redirectTo string) error
	// CompletePasswordReset exchanges a recovery token for a session and sets a new password.
	CompletePasswordReset(ctx context.Context, token, newPassword string) (*models.Session, error)
	// Subscribe returns a channel of auth events and a cancel func that closes it.
	Subscribe() (<-chan models.AuthEvent, func())
}

// HabitRepository is the habit table half of the persistence gateway.
// Every call is scoped to the signed-in identity and fails with ErrNoSession without one.
type HabitRepository interface {
	// ListHabits returns the caller's habits ordered by creation time ascending.
	ListHabits(ctx context.Context) ([]models.Habit, error)
	// InsertHabit persists a habit with a zero streak and no completion date.
	InsertHabit(ctx context.Context, name string, category models.Category) (models.Habit, error)
	// UpdateHabitCompletion stores a new streak and completion date. ErrNotFound if the row is not visible.
	UpdateHabitCompletion(ctx context.Context, id string, streak int, lastCompletedDate string) (models.Habit, error)
	// DeleteHabit removes a habit. ErrNotFound if the row is not visible.
	DeleteHabit(ctx context.Context, id string) error
}

// Provider is a complete persistence gateway.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	Authenticator
	HabitRepository

	// Describe returns a non-sensitive identifier for diagnostics
	Describe() string
}
