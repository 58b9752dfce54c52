package domain

// Role is the account role the backend assigns to a user.
type Role string

// Standard Roles
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the roles the backend accepts.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// ParseRole converts user input into a Role. ok is false for unknown roles.
func ParseRole(s string) (role Role, ok bool) {
	role = Role(s)
	return role, role.Valid()
}
