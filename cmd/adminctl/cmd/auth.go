package cmd

import (
	"errors"
	"fmt"

	"github.com/pilab-dev/shadow-admin/client"
	"github.com/pilab-dev/shadow-admin/domain"
	serrors "github.com/pilab-dev/shadow-admin/errors"
	"github.com/pilab-dev/shadow-admin/session"
	"github.com/spf13/cobra"
)

func newAuthCmd(a *app) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in, log out and inspect the current session",
	}
	authCmd.AddCommand(newLoginCmd(a), newLogoutCmd(a), newStatusCmd(a), newSendOTPCmd(a))
	return authCmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if snap := a.session.Snapshot(); snap.IsAuthenticated() {
				a.printf("Already logged in as %s, logging in again.\n", snap.User.Email)
			}

			addr, err := a.valueOrPrompt(email, "Enter email: ", false)
			if err != nil {
				return err
			}
			secret, err := a.valueOrPrompt(password, "Enter password: ", true)
			if err != nil {
				return err
			}
			if addr == "" || secret == "" {
				return errors.New("email and password are required")
			}

			if err := a.session.Login(ctx, addr, secret); err != nil {
				return fmt.Errorf("login failed: %s", serrors.UserMessage(err))
			}

			u := a.session.Snapshot().User
			a.printf("Logged in as %s <%s> (%s).\n", u.FullName(), u.Email, u.Role)
			return nil
		},
	}
	loginCmd.Flags().StringVar(&email, "email", "", "account email")
	loginCmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	return withView(loginCmd, "/login")
}

func newLogoutCmd(a *app) *cobra.Command {
	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.session.Logout(cmd.Context())
			a.printf("Logged out.\n")
			return nil
		},
	}
	return withoutSession(logoutCmd)
}

type statusView struct {
	State string             `yaml:"state"`
	API   string             `yaml:"api"`
	User  *domain.UserRecord `yaml:"user,omitempty"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is active and for whom",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := a.session.Snapshot()
			return a.printYAML(statusView{State: snap.State.String(), API: a.client.BaseURL(), User: snap.User})
		},
	}
}

func newSendOTPCmd(a *app) *cobra.Command {
	sendOTPCmd := &cobra.Command{
		Use:   "send-otp EMAIL",
		Short: "Send a one-time code to EMAIL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.SendOTP(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to send code: %s", serrors.UserMessage(err))
			}
			a.printf("Code sent to %s.\n", args[0])
			return nil
		},
	}
	return withoutSession(sendOTPCmd)
}

// registerFlags are shared by "register" and "users add".
type registerFlags struct {
	name, surname, email, password string
}

func (f *registerFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "first name")
	cmd.Flags().StringVar(&f.surname, "surname", "", "last name")
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.password, "password", "", "account password (prompted when empty)")
}

func (f *registerFlags) request(a *app) (client.RegisterRequest, error) {
	if f.email == "" {
		return client.RegisterRequest{}, errors.New("email is required via --email flag")
	}
	password, err := a.valueOrPrompt(f.password, "Enter password: ", true)
	if err != nil {
		return client.RegisterRequest{}, err
	}
	if password == "" {
		return client.RegisterRequest{}, errors.New("password is required")
	}
	return client.RegisterRequest{Name: f.name, Surname: f.surname, Email: f.email, Password: password}, nil
}

func newRegisterCmd(a *app) *cobra.Command {
	var f registerFlags

	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(a)
			if err != nil {
				return err
			}
			if err := a.client.Register(cmd.Context(), req); err != nil {
				return fmt.Errorf("registration failed: %s", serrors.UserMessage(err))
			}
			a.printf("Account %s registered. Log in with '%s auth login'.\n", req.Email, AppName)
			return nil
		},
	}
	f.bind(registerCmd)
	return withoutSession(registerCmd)
}

// refreshAfter reloads the session user after a profile mutation.
func refreshAfter(a *app, cmd *cobra.Command) error {
	if err := a.session.RefreshUser(cmd.Context()); err != nil {
		if a.session.Snapshot().State != session.StateAuthenticated {
			return fmt.Errorf("change saved but the session ended: %s", serrors.UserMessage(err))
		}
		return err
	}
	return nil
}
