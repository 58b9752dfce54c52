package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const (
	// annotationView names the console view a command stands for. The
	// pre-run hook evaluates the access policy for it.
	annotationView = "view"
	// annotationNoSession skips restoring the session before the command.
	annotationNoSession = "no-session"
)

func withView(c *cobra.Command, view string) *cobra.Command {
	if c.Annotations == nil {
		c.Annotations = map[string]string{}
	}
	c.Annotations[annotationView] = view
	return c
}

func withoutSession(c *cobra.Command) *cobra.Command {
	if c.Annotations == nil {
		c.Annotations = map[string]string{}
	}
	c.Annotations[annotationNoSession] = "true"
	return c
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           AppName,
		Short:         "adminctl is a command-line console for the admin dashboard backend",
		Long:          `A command-line interface for logging in to the admin backend and managing users, products and your own profile.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			if cmd.Annotations[annotationNoSession] != "" {
				return nil
			}
			return a.authorize(ctx, cmd.Annotations[annotationView])
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.err)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./admin_config.yaml or $HOME/.adminctl/admin_config.yaml)")
	pf.StringVar(&a.flags.apiURL, "api-url", "", "backend base URL (overrides api_base_url)")
	pf.StringVar(&a.flags.tokenStore, "token-store", "", "token store: memory, bolt or redis")
	pf.StringVar(&a.flags.boltPath, "bolt-path", "", "bbolt file for the bolt token store")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newAuthCmd(a),
		newRegisterCmd(a),
		newProfileCmd(a),
		newPasswordCmd(a),
		newUsersCmd(a),
		newProductsCmd(a),
		newRouteCmd(a),
	)
	return root
}

// run executes adminctl with args and releases everything it opened.
func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	a := newApp(in, out, errOut)
	defer a.close(context.Background())

	root := newRootCmd(a)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// Execute runs adminctl against the process streams and exits non-zero on
// failure.
func Execute(ctx context.Context) {
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
