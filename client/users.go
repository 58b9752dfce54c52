package client

import (
	"context"
	"io"
	"net/http"

	"github.com/pilab-dev/shadow-admin/domain"
)

// ProfileUpdate is a partial profile change. Nil fields are left alone.
type ProfileUpdate struct {
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
	Age     *string `json:"age,omitempty"`
}

// ChangePasswordRequest covers both flows: old+new password for a logged in
// user, or email+otp+new password after a reset code was sent.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword,omitempty"`
	NewPassword string `json:"newPassword"`
	Email       string `json:"email,omitempty"`
	OTP         string `json:"otp,omitempty"`
}

type emailBody struct {
	Email string `json:"email"`
}

type otpBody struct {
	Email string `json:"email,omitempty"`
	OTP   string `json:"otp"`
}

type changeRoleBody struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// ProfileImageField is the multipart field name for profile pictures.
const ProfileImageField = "profileImage"

// Profile fetches the current user's profile.
func (c *Client) Profile(ctx context.Context) (*domain.UserRecord, error) {
	var u domain.UserRecord
	if err := c.do(ctx, call{method: http.MethodGet, path: "/users/profile-data", auth: true, out: &u}); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile applies a partial profile change.
func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) error {
	return c.do(ctx, call{method: http.MethodPut, path: "/users/profile-update", auth: true, body: in})
}

// ChangeProfileImage uploads a new profile picture.
func (c *Client) ChangeProfileImage(ctx context.Context, filename string, r io.Reader) error {
	return c.do(ctx, call{
		method: http.MethodPut,
		path:   "/users/profile",
		auth:   true,
		files:  []fileField{{param: ProfileImageField, filename: filename, reader: r}},
	})
}

// ListUsers returns every user. The backend only allows admins.
func (c *Client) ListUsers(ctx context.Context) ([]domain.UserRecord, error) {
	var users []domain.UserRecord
	if err := c.do(ctx, call{method: http.MethodGet, path: "/users/get-all-users", auth: true, out: &users}); err != nil {
		return nil, err
	}
	return users, nil
}

// ChangeRole sets a user's role.
func (c *Client) ChangeRole(ctx context.Context, userID string, role domain.Role) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/users/change-role", auth: true,
		body: changeRoleBody{UserID: userID, Role: role}})
}

// DeactivateUser emails a deactivation code for the account.
func (c *Client) DeactivateUser(ctx context.Context, email string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/users/deactivate-user", auth: true, body: emailBody{Email: email}})
}

// ConfirmDeactivation completes a deactivation with the emailed code.
func (c *Client) ConfirmDeactivation(ctx context.Context, otp string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/users/deactivate-user-confirm", auth: true, body: otpBody{OTP: otp}})
}

// ReactivateUser emails a reactivation code for the account.
func (c *Client) ReactivateUser(ctx context.Context, email string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/users/reactivate-user", auth: true, body: emailBody{Email: email}})
}

// ConfirmReactivation completes a reactivation with the emailed code.
func (c *Client) ConfirmReactivation(ctx context.Context, email, otp string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/users/reactivate-user-confirm", auth: true,
		body: otpBody{Email: email, OTP: otp}})
}

// ChangePassword changes a password with either the old password or an OTP.
// The reset flow works without a session, so the token is optional here.
func (c *Client) ChangePassword(ctx context.Context, in ChangePasswordRequest) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/users/change-password", auth: in.OTP == "", optionalAuth: in.OTP != "",
		body: in})
}

// SendResetPasswordOTP emails a password reset code.
func (c *Client) SendResetPasswordOTP(ctx context.Context, email string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/users/send-reset-password-otp", body: emailBody{Email: email}})
}

// SendDeleteAccountOTP emails an account deletion code.
func (c *Client) SendDeleteAccountOTP(ctx context.Context, email string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/users/send-delete-account-otp", auth: true, body: emailBody{Email: email}})
}

// DeleteAccount deletes the current account with the emailed code.
func (c *Client) DeleteAccount(ctx context.Context, otp string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/users/delete-account", auth: true, body: otpBody{OTP: otp}})
}

// SendOTP emails a generic one-time code.
func (c *Client) SendOTP(ctx context.Context, email string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/users/send-otp", body: emailBody{Email: email}})
}
