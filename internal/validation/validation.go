// Package validation checks user input before anything reaches a gateway.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
)

// emailShape accepts local@domain.tld with no whitespace
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldError describes the first rule a field failed
type FieldError struct {
	Field string
	Rule  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s failed %s check", e.Field, e.Rule)
}

type credentials struct {
	Email    string `validate:"required,emailshape"`
	Password string `validate:"required,min=6"`
}

type habitInput struct {
	Name     string `validate:"required"`
	Category string `validate:"required,category"`
}

// Validator validates credentials and habit input
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the app's custom rules registered
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})
	return &Validator{v: v}
}

// Credentials validates an email/password pair for sign-in and sign-up.
func (v *Validator) Credentials(email, password string) error {
	return v.check(v.v.Struct(credentials{Email: strings.TrimSpace(email), Password: password}))
}

// Email validates only the email shape, as used by password reset.
func (v *Validator) Email(email string) error {
	if err := v.v.Var(strings.TrimSpace(email), "required,emailshape"); err != nil {
		return &FieldError{Field: "Email", Rule: ruleOf(err)}
	}
	return nil
}

// Password validates a new password.
func (v *Validator) Password(password string) error {
	if err := v.v.Var(password, fmt.Sprintf("required,min=%d", constants.MinPasswordLength)); err != nil {
		return &FieldError{Field: "Password", Rule: ruleOf(err)}
	}
	return nil
}

// Habit validates a new habit and returns its trimmed name.
func (v *Validator) Habit(name string, category models.Category) (string, error) {
	name = strings.TrimSpace(name)
	if err := v.check(v.v.Struct(habitInput{Name: name, Category: string(category)})); err != nil {
		return "", err
	}
	return name, nil
}

func (v *Validator) check(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &FieldError{Field: fieldErrs[0].Field(), Rule: fieldErrs[0].Tag()}
	}
	return err
}

func ruleOf(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fieldErrs[0].Tag()
	}
	return "unknown"
}
