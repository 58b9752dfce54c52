package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// TokenStore persists the single bearer token for one backend origin.
// Implementations do no validation; they store and return bytes.
type TokenStore interface {
	// Get returns the stored token. ok is false when nothing is stored.
	Get(ctx context.Context) (token string, ok bool, err error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// ErrInvalidOrigin is returned when a base URL has no scheme or host.
var ErrInvalidOrigin = errors.New("invalid origin")

// Origin reduces a base URL to scheme://host[:port], the scope a stored
// token belongs to. Default ports are dropped and everything is lowercased.
func Origin(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOrigin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidOrigin, baseURL)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		return scheme + "://" + host + ":" + port, nil
	}
	return scheme + "://" + host, nil
}
