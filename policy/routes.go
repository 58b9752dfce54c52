package policy

import (
	"path"
	"sort"
	"strings"
)

// Routes maps view paths to the access level they require.
type Routes map[string]Requirement

// DefaultRoutes returns the console's view table.
func DefaultRoutes() Routes {
	return Routes{
		"/login":           RequireNone,
		"/forgot-password": RequireNone,

		"/":          RequireAdmin,
		"/users":     RequireAdmin,
		"/users/add": RequireAdmin,

		"/products":        RequireAuthenticated,
		"/profile":         RequireAuthenticated,
		"/settings":        RequireAuthenticated,
		"/change-password": RequireAuthenticated,
	}
}

// CleanPath strips the query and fragment and normalizes slashes.
func CleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Resolve looks up p after cleaning it.
func (r Routes) Resolve(p string) (Requirement, bool) {
	req, ok := r[CleanPath(p)]
	return req, ok
}

// Paths returns the known paths in sorted order.
func (r Routes) Paths() []string {
	out := make([]string, 0, len(r))
	for p := range r {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Navigate decides what happens when s asks for p. Unknown paths send
// the caller to the login view regardless of the session.
func (p Policy) Navigate(routes Routes, s Subject, requested string) Decision {
	req, ok := routes.Resolve(requested)
	if !ok {
		return Decision{RedirectTo: p.LoginTarget()}
	}
	return p.Evaluate(req, s, requested)
}
