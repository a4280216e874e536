package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Hemanshudhaduk/Velora/internal/profile"
)

func newProfileCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Edit your profile",
	}

	var u profile.Update
	update := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields, password or email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.app.profile.Update(cmd.Context(), u)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Message != "" {
				fmt.Fprintln(out, res.Message)
			}
			if res.EmailChangeRequested {
				fmt.Fprintf(out, "Confirm the new email with: velora profile verify-email <otp>\n")
			}
			return nil
		},
	}
	f := update.Flags()
	f.StringVar(&u.Username, "username", "", "new username")
	f.StringVar(&u.FirstName, "first-name", "", "new first name")
	f.StringVar(&u.LastName, "last-name", "", "new last name")
	f.StringVar(&u.Phone, "phone", "", "new phone (10-15 digits)")
	f.StringVar(&u.CurrentPassword, "current-password", "", "current password, required to set a new one")
	f.StringVar(&u.NewPassword, "new-password", "", "new password (8+ characters)")
	f.StringVar(&u.NewEmail, "new-email", "", "new email; an OTP is sent to confirm it")

	verify := &cobra.Command{
		Use:   "verify-email <otp>",
		Short: "Confirm a pending email change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.profile.VerifyEmailChange(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s. Signed in as %s.\n", res.Message, res.User.Email)
			return nil
		},
	}

	cmd.AddCommand(update, verify)
	return cmd
}
