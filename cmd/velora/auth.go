package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Hemanshudhaduk/Velora/internal/session"
)

func newAuthCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign up and manage the session",
	}

	var email, password string
	signin := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				var err error
				if password, err = promptLine(cmd, "Password: "); err != nil {
					return err
				}
			}
			user, err := c.app.session.SignIn(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := c.app.cart.Refresh(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not load cart: %s\n", describeError(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome back, %s.\n", user.DisplayName())
			return nil
		},
	}
	signin.Flags().StringVar(&email, "email", "", "account email")
	signin.Flags().StringVar(&password, "password", os.Getenv("VELORA_PASSWORD"), "account password (prompted when empty)")
	_ = signin.MarkFlagRequired("email")

	var credential string
	google := &cobra.Command{
		Use:   "google",
		Short: "Sign in with a Google ID token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := c.app.session.SignInWithGoogle(cmd.Context(), credential)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", user.DisplayName())
			return nil
		},
	}
	google.Flags().StringVar(&credential, "credential", "", "Google ID token")

	var req session.SignUpRequest
	signup := &cobra.Command{
		Use:   "signup",
		Short: "Create an account; an OTP is emailed for verification",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Confirm == "" {
				req.Confirm = req.Password
			}
			msg, err := c.app.session.SignUp(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			fmt.Fprintf(cmd.OutOrStdout(), "Finish with: velora auth verify --email %s --otp <code>\n", req.Email)
			return nil
		},
	}
	sf := signup.Flags()
	sf.StringVar(&req.Username, "username", "", "username (3-50 letters, digits or _)")
	sf.StringVar(&req.FirstName, "first-name", "", "first name")
	sf.StringVar(&req.LastName, "last-name", "", "last name")
	sf.StringVar(&req.Email, "email", "", "email")
	sf.StringVar(&req.Phone, "phone", "", "phone (10-15 digits)")
	sf.StringVar(&req.Password, "password", "", "password")
	sf.StringVar(&req.Confirm, "confirm", "", "password confirmation (defaults to --password)")

	var verifyEmail, otp string
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Verify a new account with the emailed OTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg, err := c.app.session.VerifyEmail(cmd.Context(), verifyEmail, otp)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	verify.Flags().StringVar(&verifyEmail, "email", "", "account email")
	verify.Flags().StringVar(&otp, "otp", "", "one-time code")

	var resendEmail string
	resend := &cobra.Command{
		Use:   "resend-otp",
		Short: "Send a fresh verification OTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg, err := c.app.session.ResendOTP(cmd.Context(), resendEmail)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	resend.Flags().StringVar(&resendEmail, "email", "", "account email")

	signout := &cobra.Command{
		Use:   "signout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.app.session.SignOut()
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			err := c.app.session.RefreshProfile(cmd.Context())
			var warning *session.RefreshWarning
			switch {
			case errors.As(err, &warning):
				fmt.Fprintf(out, "warning: showing cached profile (%s)\n", describeError(warning.Err))
			case err != nil:
				return err
			}
			user, ok := c.app.session.User()
			if !ok {
				fmt.Fprintln(out, "Not signed in.")
				return nil
			}
			fmt.Fprintf(out, "%s <%s>\n", user.DisplayName(), user.Email)
			if user.Phone != "" {
				fmt.Fprintf(out, "Phone: %s\n", user.Phone)
			}
			if c.app.session.CookieSession() {
				fmt.Fprintln(out, "Session: cookie")
			} else if exp, ok := c.app.session.TokenExpiry(); ok {
				fmt.Fprintf(out, "Token expires: %s\n", exp.Local().Format(time.RFC1123))
			}
			return nil
		},
	}

	cmd.AddCommand(signin, google, signup, verify, resend, signout, whoami)
	return cmd
}

func promptLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
