package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/constants"
)

type AuthCmd struct {
	Signin       SignInCmd       `cmd:"" help:"Sign in with email and password."`
	Signup       SignUpCmd       `cmd:"" help:"Create an account."`
	Signout      SignOutCmd      `cmd:"" help:"Sign out and forget the stored session."`
	Reset        ResetCmd        `cmd:"" help:"Request a password recovery link."`
	ResetConfirm ResetConfirmCmd `cmd:"" name:"reset-confirm" help:"Set a new password using a recovery token."`
	Status       StatusCmd       `cmd:"" help:"Show the signed-in account."`
}

type SignInCmd struct {
	Email    string `arg:"" help:"Account email."`
	Password string `help:"Account password (prompted when omitted)." env:"DAYSTREAK_PASSWORD"`
}

func (c *SignInCmd) Run(ctx *cli.Context) error {
	if err := ctx.Open(context.Background()); err != nil {
		return err
	}

	password, err := ctx.Password(c.Password, "Password")
	if err != nil {
		return err
	}
	if err := ctx.Session.SignIn(context.Background(), c.Email, password); err != nil {
		return err
	}

	fmt.Printf("Signed in as %s\n", ctx.Session.Current().Email)
	return nil
}

type SignUpCmd struct {
	Email    string `arg:"" help:"Account email."`
	Password string `help:"Account password (prompted when omitted)." env:"DAYSTREAK_PASSWORD"`
}

func (c *SignUpCmd) Run(ctx *cli.Context) error {
	if err := ctx.Open(context.Background()); err != nil {
		return err
	}

	password, err := ctx.Password(c.Password, "Choose a password")
	if err != nil {
		return err
	}
	if err := ctx.Session.SignUp(context.Background(), c.Email, password); err != nil {
		return err
	}

	fmt.Println("Account created. Confirm your email if asked, then sign in:")
	fmt.Printf("  %s auth signin %s\n", constants.AppName, c.Email)
	return nil
}

type SignOutCmd struct{}

func (c *SignOutCmd) Run(ctx *cli.Context) error {
	if err := ctx.Open(context.Background()); err != nil {
		return err
	}

	ctx.Session.SignOut(context.Background())
	ctx.Habits.Reset()
	fmt.Println("Signed out")
	return nil
}

type ResetCmd struct {
	Email string `arg:"" help:"Account email."`
}

func (c *ResetCmd) Run(ctx *cli.Context) error {
	if err := ctx.Open(context.Background()); err != nil {
		return err
	}

	if err := ctx.Session.RequestPasswordReset(context.Background(), c.Email); err != nil {
		return err
	}

	fmt.Printf("If an account exists for %s, a recovery link is on its way.\n", c.Email)
	fmt.Printf("Finish with: %s auth reset-confirm <token>\n", constants.AppName)
	return nil
}

type ResetConfirmCmd struct {
	Token    string `arg:"" help:"Recovery token from the link."`
	Password string `help:"New password (prompted when omitted)." env:"DAYSTREAK_PASSWORD"`
}

func (c *ResetConfirmCmd) Run(ctx *cli.Context) error {
	if err := ctx.Open(context.Background()); err != nil {
		return err
	}

	password, err := ctx.Password(c.Password, "New password")
	if err != nil {
		return err
	}
	if err := ctx.Session.CompletePasswordReset(context.Background(), c.Token, password); err != nil {
		return err
	}

	fmt.Printf("Password updated. Signed in as %s\n", ctx.Session.Current().Email)
	return nil
}

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *cli.Context) error {
	if err := ctx.Open(context.Background()); err != nil {
		return err
	}

	fmt.Printf("Gateway: %s\n", ctx.Store.Describe())
	sess := ctx.Session.Current()
	if sess == nil {
		fmt.Println("Not signed in")
		return nil
	}

	fmt.Printf("Signed in as %s (%s)\n", sess.Email, sess.UserID)
	if !sess.ExpiresAt.IsZero() {
		fmt.Printf("Session expires %s\n", sess.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}
