package cli

import (
	"errors"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/daystreak/internal/constants"
)

// PromptPassword asks for a secret without echoing it.
func PromptPassword(title string) (string, error) {
	var value string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&value).
				Validate(func(s string) error {
					if len(s) < constants.MinPasswordLength {
						return errors.New("too short")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		return "", err
	}
	return value, nil
}
