package domain

import "time"

// UserRecord is the profile snapshot returned by the backend. A new record
// replaces the old one on every fetch; it is never mutated in place.
type UserRecord struct {
	ID           string    `json:"_id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Surname      string    `json:"surname" yaml:"surname"`
	Email        string    `json:"email" yaml:"email"`
	Role         Role      `json:"role" yaml:"role"`
	Phone        *string   `json:"phone,omitempty" yaml:"phone,omitempty"`
	Address      *string   `json:"address,omitempty" yaml:"address,omitempty"`
	Age          *string   `json:"age,omitempty" yaml:"age,omitempty"`
	RegisterDate string    `json:"registerDate" yaml:"register_date"`
	IsActive     bool      `json:"isActive" yaml:"is_active"`
	ProfileImage *string   `json:"profileImage,omitempty" yaml:"profile_image,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *UserRecord) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// FullName joins name and surname.
func (u *UserRecord) FullName() string {
	if u.Surname == "" {
		return u.Name
	}
	return u.Name + " " + u.Surname
}

var registerDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// RegisteredAt parses RegisterDate. The backend sends it as free text, so
// ok is false for shapes it does not know.
func (u *UserRecord) RegisteredAt() (time.Time, bool) {
	for _, layout := range registerDateLayouts {
		if t, err := time.Parse(layout, u.RegisterDate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Clone returns a deep copy so callers can't reach the manager's record.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	c.Phone = cloneString(u.Phone)
	c.Address = cloneString(u.Address)
	c.Age = cloneString(u.Age)
	c.ProfileImage = cloneString(u.ProfileImage)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
