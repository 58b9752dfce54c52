package session

import "github.com/pilab-dev/shadow-admin/domain"

// State is the session lifecycle state.
type State int

const (
	// StateUnknown is the only initial state, before Initialize has run.
	StateUnknown State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "invalid"
	}
}

// Snapshot is a read-only copy of the session at one instant.
type Snapshot struct {
	State State
	User  *domain.UserRecord
}

// IsAuthenticated reports whether a user is present.
func (s Snapshot) IsAuthenticated() bool {
	return s.User != nil
}

// IsAdmin reports whether the present user is an admin.
func (s Snapshot) IsAdmin() bool {
	return s.User.IsAdmin()
}

// Reason says why a transition happened.
type Reason string

const (
	ReasonNoToken       Reason = "no_token"
	ReasonRestored      Reason = "restored"
	ReasonLogin         Reason = "login"
	ReasonRefreshed     Reason = "refreshed"
	ReasonLogout        Reason = "user"
	ReasonTokenExpired  Reason = "token_expired"
	ReasonTokenInvalid  Reason = "token_invalid"
	ReasonRefreshFailed Reason = "refresh_failed"
	ReasonStoreFailed   Reason = "store_failed"
)

// Event is published after every state transition.
type Event struct {
	From     State
	To       State
	Reason   Reason
	Snapshot Snapshot
	// UserID is the user the transition concerns: the new user when
	// authenticating, the departing one when logging out.
	UserID string
	// Err is the failure that forced the transition, if any.
	Err error
}
