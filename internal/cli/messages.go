package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/daystreak/internal/constants"
	errs "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/validation"
)

// Message renders err for the terminal. Typed failures get a fixed message per kind;
// anything else is shown as is.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var typed *errs.Error
	if !errors.As(err, &typed) {
		return err.Error()
	}

	switch typed.Kind {
	case errs.KindValidation:
		if errors.Is(err, storage.ErrPasswordRejected) {
			return "The server rejected the new password. Choose a stronger one and try again."
		}
		return validationMessage(err)
	case errs.KindNotAuthenticated:
		return fmt.Sprintf("You are not signed in. Run '%s auth signin <email>' first.", constants.AppName)
	case errs.KindInvalidCredentials:
		if strings.Contains(typed.Op, "password reset") {
			return "The recovery token is invalid or has expired. Request a new one with 'auth reset'."
		}
		return "Invalid email or password."
	case errs.KindNetwork:
		return "Could not reach the server. Check your connection and try again."
	case errs.KindNotFound:
		return "Habit not found. Run 'habit list' to see your habits."
	}
	return err.Error()
}

func validationMessage(err error) string {
	var field *validation.FieldError
	if !errors.As(err, &field) {
		return "Invalid input."
	}

	switch field.Field {
	case "Email":
		return "Enter a valid email address (name@domain.tld)."
	case "Password":
		return fmt.Sprintf("Password must be at least %d characters.", constants.MinPasswordLength)
	case "Name":
		return "Habit name cannot be empty."
	case "Category":
		names := make([]string, len(models.Categories))
		for i, c := range models.Categories {
			names[i] = string(c)
		}
		return "Unknown category. Choose one of: " + strings.Join(names, ", ") + "."
	case "Token":
		return "A recovery token is required."
	}
	return fmt.Sprintf("Invalid %s.", strings.ToLower(field.Field))
}
