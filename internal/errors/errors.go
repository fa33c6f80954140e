package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/storage"
)

// Kind classifies a failure returned by the session manager or habit store.
// The presentation layer maps kinds to messages; the core never renders text.
type Kind string

const (
	KindValidation         Kind = "validation-failed"
	KindNotAuthenticated   Kind = "not-authenticated"
	KindInvalidCredentials Kind = "credentials-invalid"
	KindNetwork            Kind = "network-error"
	KindNotFound           Kind = "not-found"
)

// Sentinels for use with errors.Is
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrNotAuthenticated   = &Error{Kind: KindNotAuthenticated}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrNotFound           = &Error{Kind: KindNotFound}
)

// Error is a typed failure. Op names the operation that failed and Err carries the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New builds a typed failure for op.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the first typed failure in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// FromGateway classifies a gateway failure for op. Recognised gateway sentinels
// map to their kind; anything else is reported as fallback.
func FromGateway(op string, err error, fallback Kind) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}

	kind := fallback
	switch {
	case stderrors.Is(err, storage.ErrNoSession):
		kind = KindNotAuthenticated
	case stderrors.Is(err, storage.ErrUnavailable),
		stderrors.Is(err, context.DeadlineExceeded),
		stderrors.Is(err, context.Canceled):
		kind = KindNetwork
	case stderrors.Is(err, storage.ErrNotFound):
		kind = KindNotFound
	case stderrors.Is(err, storage.ErrInvalidCredentials),
		stderrors.Is(err, storage.ErrInvalidToken):
		kind = KindInvalidCredentials
	case stderrors.Is(err, storage.ErrPasswordRejected):
		kind = KindValidation
	}
	return New(kind, op, err)
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}
