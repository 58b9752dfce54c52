package cmd

import (
	"github.com/spf13/cobra"
)

type routeView struct {
	Path        string `yaml:"path"`
	Requirement string `yaml:"requirement"`
	Known       bool   `yaml:"known"`
	Session     string `yaml:"session"`
	Decision    string `yaml:"decision"`
	RedirectTo  string `yaml:"redirect_to,omitempty"`
}

func newRouteCmd(a *app) *cobra.Command {
	routeCmd := &cobra.Command{
		Use:   "route",
		Short: "Inspect the console's access rules",
	}

	checkCmd := &cobra.Command{
		Use:   "check PATH",
		Short: "Print what the current session would get when opening PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := a.session.Snapshot()
			req, known := a.routes.Resolve(args[0])
			d := a.policy.Navigate(a.routes, snap, args[0])

			v := routeView{
				Path:       args[0],
				Known:      known,
				Session:    snap.State.String(),
				Decision:   d.String(),
				RedirectTo: d.RedirectTo,
			}
			if known {
				v.Requirement = req.String()
			}
			return a.printYAML(v)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every known view and what it requires",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make(map[string]string, len(a.routes))
			for _, p := range a.routes.Paths() {
				out[p] = a.routes[p].String()
			}
			return a.printYAML(out)
		},
	}

	routeCmd.AddCommand(checkCmd, withoutSession(listCmd))
	return routeCmd
}
