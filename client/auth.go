package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/pilab-dev/shadow-admin/domain"
	serrors "github.com/pilab-dev/shadow-admin/errors"
)

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the answer to a successful login.
type LoginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

// RegisterRequest is the body of POST /register. New users get role "user".
type RegisterRequest struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ErrMissingToken is returned when the login answer carries no token.
var ErrMissingToken = errors.New("login response did not contain a token")

// Login exchanges credentials for a bearer token. Rejected credentials come
// back as *AuthError with the server's message, whatever the status code.
func (c *Client) Login(ctx context.Context, in LoginRequest) (*LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, call{method: http.MethodPost, path: "/login", body: in, out: &out})
	if err != nil {
		var api *serrors.APIError
		if errors.As(err, &api) && api.Status >= 400 && api.Status < 500 {
			return nil, &serrors.AuthError{Status: api.Status, Message: api.Message}
		}
		return nil, err
	}
	if out.Token == "" {
		return nil, ErrMissingToken
	}
	return &out, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, in RegisterRequest) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/register", body: in})
}

// Authenticate is Login reduced to the token, for session.Backend.
func (c *Client) Authenticate(ctx context.Context, email, password string) (string, error) {
	resp, err := c.Login(ctx, LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// FetchProfile loads the profile for an explicit token, for session.Backend.
func (c *Client) FetchProfile(ctx context.Context, token string) (*domain.UserRecord, error) {
	if token == "" {
		return nil, serrors.ErrNotAuthenticated
	}
	var u domain.UserRecord
	if err := c.do(ctx, call{method: http.MethodGet, path: "/users/profile-data", auth: true, token: token, out: &u}); err != nil {
		return nil, err
	}
	return &u, nil
}
