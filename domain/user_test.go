package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	_, ok = ParseRole("ROLE_ADMIN")
	assert.False(t, ok)
}

func TestUserRecord_Clone(t *testing.T) {
	phone := "555-0100"
	u := &UserRecord{ID: "1", Name: "Ada", Surname: "Lovelace", Role: RoleAdmin, Phone: &phone}

	c := u.Clone()
	*c.Phone = "changed"

	assert.Equal(t, "555-0100", *u.Phone)
	assert.True(t, c.IsAdmin())
	assert.Equal(t, "Ada Lovelace", u.FullName())

	var nilUser *UserRecord
	assert.Nil(t, nilUser.Clone())
	assert.False(t, nilUser.IsAdmin())
}

func TestUserRecord_RegisteredAt(t *testing.T) {
	tests := []struct {
		date string
		ok   bool
		day  int
	}{
		{"2024-05-01T10:00:00.000Z", true, 1},
		{"2024-05-02T10:00:00", true, 2},
		{"2024-05-03", true, 3},
		{"yesterday", false, 0},
		{"", false, 0},
	}
	for _, tc := range tests {
		got, ok := (&UserRecord{RegisterDate: tc.date}).RegisteredAt()
		assert.Equal(t, tc.ok, ok, tc.date)
		if !tc.ok {
			assert.True(t, got.IsZero(), tc.date)
			continue
		}
		assert.Equal(t, tc.day, got.Day(), tc.date)
	}
}
