package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pilab-dev/shadow-admin/client"
	serrors "github.com/pilab-dev/shadow-admin/errors"
	"github.com/spf13/cobra"
)

func newProfileCmd(a *app) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "View and edit your own profile",
	}
	profileCmd.AddCommand(
		newProfileShowCmd(a),
		newProfileUpdateCmd(a),
		newProfileImageCmd(a),
		newProfileDeleteCmd(a),
	)
	return profileCmd
}

func newProfileShowCmd(a *app) *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the logged in user's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printYAML(a.session.Snapshot().User)
		},
	}
	return withView(showCmd, "/profile")
}

func newProfileUpdateCmd(a *app) *cobra.Command {
	var email, phone, address, age string

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Change email, phone, address or age",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in client.ProfileUpdate
			flags := cmd.Flags()
			if flags.Changed("email") {
				in.Email = &email
			}
			if flags.Changed("phone") {
				in.Phone = &phone
			}
			if flags.Changed("address") {
				in.Address = &address
			}
			if flags.Changed("age") {
				in.Age = &age
			}
			if in == (client.ProfileUpdate{}) {
				return errors.New("nothing to update: pass at least one of --email, --phone, --address, --age")
			}

			if err := a.client.UpdateProfile(cmd.Context(), in); err != nil {
				return fmt.Errorf("profile update failed: %s", serrors.UserMessage(err))
			}
			if err := refreshAfter(a, cmd); err != nil {
				return err
			}
			a.printf("Profile updated.\n")
			return a.printYAML(a.session.Snapshot().User)
		},
	}
	f := updateCmd.Flags()
	f.StringVar(&email, "email", "", "new email")
	f.StringVar(&phone, "phone", "", "new phone number")
	f.StringVar(&address, "address", "", "new address")
	f.StringVar(&age, "age", "", "new age")
	return withView(updateCmd, "/settings")
}

func newProfileImageCmd(a *app) *cobra.Command {
	imageCmd := &cobra.Command{
		Use:   "image FILE",
		Short: "Upload a new profile picture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open image: %w", err)
			}
			defer f.Close()

			if err := a.client.ChangeProfileImage(cmd.Context(), filepath.Base(args[0]), f); err != nil {
				return fmt.Errorf("image upload failed: %s", serrors.UserMessage(err))
			}
			if err := refreshAfter(a, cmd); err != nil {
				return err
			}
			a.printf("Profile image updated.\n")
			return nil
		},
	}
	return withView(imageCmd, "/settings")
}

func newProfileDeleteCmd(a *app) *cobra.Command {
	var otp string

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete your account (sends a code first, then confirm with --otp)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if otp == "" {
				email := a.session.Snapshot().User.Email
				if err := a.client.SendDeleteAccountOTP(ctx, email); err != nil {
					return fmt.Errorf("failed to send code: %s", serrors.UserMessage(err))
				}
				a.printf("Code sent to %s. Confirm with '%s profile delete --otp CODE'.\n", email, AppName)
				return nil
			}

			if err := a.client.DeleteAccount(ctx, otp); err != nil {
				return fmt.Errorf("account deletion failed: %s", serrors.UserMessage(err))
			}
			a.session.Logout(ctx)
			a.printf("Account deleted.\n")
			return nil
		},
	}
	deleteCmd.Flags().StringVar(&otp, "otp", "", "code received by email")
	return withView(deleteCmd, "/settings")
}
