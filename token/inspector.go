// Package token decodes the claims embedded in a bearer token without
// verifying its signature. The server checks signatures on every call; the
// decoded claims drive client-side decisions only (early logout,
// role hints).
package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pilab-dev/shadow-admin/domain"
	serrors "github.com/pilab-dev/shadow-admin/errors"
)

// Clock returns the current wall-clock time.
type Clock func() time.Time

// Claims are the fields the backend puts in its access tokens.
type Claims struct {
	UserID string      `json:"userId"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID returns the user id, falling back to the standard sub claim.
func (c *Claims) SubjectID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}

// Expiry returns the exp claim as a time. Zero if absent.
func (c *Claims) Expiry() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IsExpired compares exp*1000 with now in milliseconds. A token with no exp
// counts as expired.
func (c *Claims) IsExpired(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return true
	}
	return c.ExpiresAt.Time.UnixMilli() < now.UnixMilli()
}

// Inspector decodes tokens and answers expiry questions against its clock.
type Inspector struct {
	parser *jwt.Parser
	clock  Clock
}

// NewInspector creates an Inspector. A nil clock means time.Now.
func NewInspector(clock Clock) *Inspector {
	if clock == nil {
		clock = time.Now
	}
	return &Inspector{
		parser: jwt.NewParser(),
		clock:  clock,
	}
}

// Decode parses the claims section of raw. Any failure is a *DecodeError.
// A token without exp is rejected here instead of being treated as one
// that never expires.
func (i *Inspector) Decode(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, serrors.NewDecodeError("empty token", nil)
	}

	claims := &Claims{}
	if _, _, err := i.parser.ParseUnverified(raw, claims); err != nil {
		return nil, serrors.NewDecodeError("malformed token", err)
	}
	if claims.ExpiresAt == nil {
		return nil, serrors.NewDecodeError("missing exp claim", nil)
	}
	return claims, nil
}

// Expired reports whether claims are expired at the inspector's current time.
func (i *Inspector) Expired(claims *Claims) bool {
	return claims.IsExpired(i.clock())
}

// Now returns the inspector's current time.
func (i *Inspector) Now() time.Time {
	return i.clock()
}
