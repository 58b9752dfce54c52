package cmd

import (
	"fmt"

	"github.com/pilab-dev/shadow-admin/domain"
	serrors "github.com/pilab-dev/shadow-admin/errors"
	"github.com/spf13/cobra"
)

func newUsersCmd(a *app) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:     "users",
		Short:   "Manage user accounts (admin only)",
		Aliases: []string{"user"},
	}
	usersCmd.AddCommand(
		newUsersListCmd(a),
		newUsersAddCmd(a),
		newUsersChangeRoleCmd(a),
		newUsersDeactivateCmd(a),
		newUsersReactivateCmd(a),
	)
	return usersCmd
}

func newUsersListCmd(a *app) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.client.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list users: %s", serrors.UserMessage(err))
			}
			if len(users) == 0 {
				a.printf("No users found.\n")
				return nil
			}
			return a.printYAML(users)
		},
	}
	return withView(listCmd, "/users")
}

func newUsersAddCmd(a *app) *cobra.Command {
	var f registerFlags

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(a)
			if err != nil {
				return err
			}
			if err := a.client.Register(cmd.Context(), req); err != nil {
				return fmt.Errorf("failed to add user: %s", serrors.UserMessage(err))
			}
			a.printf("User %s created.\n", req.Email)
			return nil
		},
	}
	f.bind(addCmd)
	return withView(addCmd, "/users/add")
}

func newUsersChangeRoleCmd(a *app) *cobra.Command {
	changeRoleCmd := &cobra.Command{
		Use:   "change-role USER_ID ROLE",
		Short: "Set a user's role to admin or user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := domain.ParseRole(args[1])
			if !ok {
				return fmt.Errorf("unknown role %q (want %s or %s)", args[1], domain.RoleAdmin, domain.RoleUser)
			}
			if err := a.client.ChangeRole(cmd.Context(), args[0], role); err != nil {
				return fmt.Errorf("failed to change role: %s", serrors.UserMessage(err))
			}
			a.printf("User %s is now %s.\n", args[0], role)
			if snap := a.session.Snapshot(); snap.User != nil && snap.User.ID == args[0] {
				return refreshAfter(a, cmd)
			}
			return nil
		},
	}
	return withView(changeRoleCmd, "/users")
}

// otpStep sends a code for email, or confirms it when otp is set.
type otpStep struct {
	verb    string
	send    func(cmd *cobra.Command, email string) error
	confirm func(cmd *cobra.Command, email, otp string) error
}

func newOTPStepCmd(a *app, use, short string, step otpStep) *cobra.Command {
	var otp string

	c := &cobra.Command{
		Use:   use + " EMAIL",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := args[0]
			if otp == "" {
				if err := step.send(cmd, email); err != nil {
					return fmt.Errorf("failed to send code: %s", serrors.UserMessage(err))
				}
				a.printf("Code sent to %s. Confirm with '%s users %s %s --otp CODE'.\n", email, AppName, use, email)
				return nil
			}
			if err := step.confirm(cmd, email, otp); err != nil {
				return fmt.Errorf("failed to %s user: %s", step.verb, serrors.UserMessage(err))
			}
			a.printf("User %s %sd.\n", email, step.verb)
			return nil
		},
	}
	c.Flags().StringVar(&otp, "otp", "", "code received by email")
	return withView(c, "/users")
}

func newUsersDeactivateCmd(a *app) *cobra.Command {
	return newOTPStepCmd(a, "deactivate", "Deactivate a user (sends a code first, then confirm with --otp)", otpStep{
		verb: "deactivate",
		send: func(cmd *cobra.Command, email string) error {
			return a.client.DeactivateUser(cmd.Context(), email)
		},
		confirm: func(cmd *cobra.Command, _, otp string) error {
			return a.client.ConfirmDeactivation(cmd.Context(), otp)
		},
	})
}

func newUsersReactivateCmd(a *app) *cobra.Command {
	return newOTPStepCmd(a, "reactivate", "Reactivate a user (sends a code first, then confirm with --otp)", otpStep{
		verb: "reactivate",
		send: func(cmd *cobra.Command, email string) error {
			return a.client.ReactivateUser(cmd.Context(), email)
		},
		confirm: func(cmd *cobra.Command, email, otp string) error {
			return a.client.ConfirmReactivation(cmd.Context(), email, otp)
		},
	})
}
