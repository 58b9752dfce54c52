package cmd

import (
	"errors"
	"fmt"

	"github.com/pilab-dev/shadow-admin/client"
	serrors "github.com/pilab-dev/shadow-admin/errors"
	"github.com/spf13/cobra"
)

func newPasswordCmd(a *app) *cobra.Command {
	passwordCmd := &cobra.Command{
		Use:   "password",
		Short: "Change or reset a password",
	}
	passwordCmd.AddCommand(newPasswordChangeCmd(a), newPasswordResetCmd(a))
	return passwordCmd
}

// readNewPassword prompts twice unless the value came from a flag.
func readNewPassword(a *app, v string) (string, error) {
	if v != "" {
		return v, nil
	}
	first, err := a.promptSecret("New password: ")
	if err != nil {
		return "", err
	}
	second, err := a.promptSecret("Confirm new password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	if first == "" {
		return "", errors.New("new password must not be empty")
	}
	return first, nil
}

func newPasswordChangeCmd(a *app) *cobra.Command {
	var oldPassword, newPassword string

	changeCmd := &cobra.Command{
		Use:   "change",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, args []string) error {
			old, err := a.valueOrPrompt(oldPassword, "Current password: ", true)
			if err != nil {
				return err
			}
			next, err := readNewPassword(a, newPassword)
			if err != nil {
				return err
			}

			req := client.ChangePasswordRequest{OldPassword: old, NewPassword: next}
			if err := a.client.ChangePassword(cmd.Context(), req); err != nil {
				return fmt.Errorf("password change failed: %s", serrors.UserMessage(err))
			}
			if err := refreshAfter(a, cmd); err != nil {
				return err
			}
			a.printf("Password changed.\n")
			return nil
		},
	}
	changeCmd.Flags().StringVar(&oldPassword, "old", "", "current password (prompted when empty)")
	changeCmd.Flags().StringVar(&newPassword, "new", "", "new password (prompted when empty)")
	return withView(changeCmd, "/change-password")
}

func newPasswordResetCmd(a *app) *cobra.Command {
	var email, otp, newPassword string

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset a forgotten password (sends a code first, then confirm with --otp)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if email == "" {
				return errors.New("email is required via --email flag")
			}

			if otp == "" {
				if err := a.client.SendResetPasswordOTP(ctx, email); err != nil {
					return fmt.Errorf("failed to send code: %s", serrors.UserMessage(err))
				}
				a.printf("Code sent to %s. Finish with '%s password reset --email %s --otp CODE'.\n", email, AppName, email)
				return nil
			}

			next, err := readNewPassword(a, newPassword)
			if err != nil {
				return err
			}
			req := client.ChangePasswordRequest{Email: email, OTP: otp, NewPassword: next}
			if err := a.client.ChangePassword(ctx, req); err != nil {
				return fmt.Errorf("password reset failed: %s", serrors.UserMessage(err))
			}
			a.printf("Password reset. Log in with '%s auth login'.\n", AppName)
			return nil
		},
	}
	f := resetCmd.Flags()
	f.StringVar(&email, "email", "", "account email")
	f.StringVar(&otp, "otp", "", "code received by email")
	f.StringVar(&newPassword, "new", "", "new password (prompted when empty)")
	return withView(resetCmd, "/forgot-password")
}
