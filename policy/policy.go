// Package policy decides whether a session may open a view.
package policy

import "fmt"

// Requirement is the access level a view demands.
type Requirement int

const (
	RequireNone Requirement = iota
	RequireAuthenticated
	RequireAdmin
)

func (r Requirement) String() string {
	switch r {
	case RequireNone:
		return "public"
	case RequireAuthenticated:
		return "authenticated"
	case RequireAdmin:
		return "admin"
	default:
		return fmt.Sprintf("requirement(%d)", int(r))
	}
}

// Subject is what Evaluate needs to know about a session.
// session.Snapshot satisfies it.
type Subject interface {
	IsAuthenticated() bool
	IsAdmin() bool
}

// Decision is the outcome of an access check. When Allow is false the
// caller should go to RedirectTo; From is the location that was asked for.
type Decision struct {
	Allow      bool
	RedirectTo string
	From       string
}

func (d Decision) String() string {
	if d.Allow {
		return "allow"
	}
	if d.From != "" {
		return fmt.Sprintf("redirect %s (from %s)", d.RedirectTo, d.From)
	}
	return "redirect " + d.RedirectTo
}

const (
	DefaultLoginPath    = "/login"
	DefaultFallbackPath = "/profile"
)

// Policy holds the redirect targets.
type Policy struct {
	LoginPath    string
	FallbackPath string
}

// Default returns a Policy redirecting to /login and /profile.
func Default() Policy {
	return Policy{LoginPath: DefaultLoginPath, FallbackPath: DefaultFallbackPath}
}

// LoginTarget is where logged-out sessions are sent. An empty LoginPath
// means DefaultLoginPath.
func (p Policy) LoginTarget() string {
	if p.LoginPath == "" {
		return DefaultLoginPath
	}
	return p.LoginPath
}

// FallbackTarget is where non-admins are sent from admin views.
func (p Policy) FallbackTarget() string {
	if p.FallbackPath == "" {
		return DefaultFallbackPath
	}
	return p.FallbackPath
}

// Evaluate checks req against s. It takes no locks and does no I/O.
// A nil Subject is treated as logged out.
func (p Policy) Evaluate(req Requirement, s Subject, requested string) Decision {
	if req == RequireNone {
		return Decision{Allow: true}
	}
	if s == nil || !s.IsAuthenticated() {
		return Decision{RedirectTo: p.LoginTarget(), From: requested}
	}
	if req == RequireAdmin && !s.IsAdmin() {
		return Decision{RedirectTo: p.FallbackTarget(), From: requested}
	}
	return Decision{Allow: true}
}
