package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/evangeline-go/evangeline/internal/model"
)

// CreateUser registers a new account.
func (c *Client) CreateUser(ctx context.Context, data model.UserCreate) (*model.User, error) {
	r, err := c.rest(http.MethodPost, "/users", "/users").withJSON(data)
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := c.doJSON(ctx, r, &user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// DeleteUser deletes the authenticated account.
func (c *Client) DeleteUser(ctx context.Context, data model.PasswordDeleteCredentials) error {
	r, err := c.rest(http.MethodDelete, "/users", "/users").withAuth().withJSON(data)
	if err != nil {
		return err
	}
	if err := c.doJSON(ctx, r, nil); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// GetSelf fetches the authenticated user.
func (c *Client) GetSelf(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.doJSON(ctx, c.rest(http.MethodGet, "/users/@me", "/users/@me").withAuth(), &user); err != nil {
		return nil, fmt.Errorf("get self: %w", err)
	}
	return &user, nil
}

// GetUser fetches a user by username or ID.
func (c *Client) GetUser(ctx context.Context, user string) (*model.User, error) {
	r := c.rest(http.MethodGet, "/users/"+url.PathEscape(user), "/users/{user}").withAuth()

	var resp model.User
	if err := c.doJSON(ctx, r, &resp); err != nil {
		return nil, fmt.Errorf("get user %s: %w", user, err)
	}
	return &resp, nil
}

// UpdateProfile updates the authenticated user's public profile.
func (c *Client) UpdateProfile(ctx context.Context, data model.UpdateUserProfile) (*model.User, error) {
	r, err := c.rest(http.MethodPatch, "/users/profile", "/users/profile").withAuth().withJSON(data)
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := c.doJSON(ctx, r, &user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &user, nil
}

// UpdateUser changes the authenticated user's username, email or password.
func (c *Client) UpdateUser(ctx context.Context, data model.UpdateUser) (*model.User, error) {
	r, err := c.rest(http.MethodPatch, "/users", "/users").withAuth().withJSON(data)
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := c.doJSON(ctx, r, &user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &user, nil
}

// VerifyUser confirms the authenticated user's email with the emailed code.
func (c *Client) VerifyUser(ctx context.Context, code int) error {
	r := c.rest(http.MethodPost, "/users/verify", "/users/verify").withAuth()
	r.query = url.Values{"code": {strconv.Itoa(code)}}

	if err := c.doJSON(ctx, r, nil); err != nil {
		return fmt.Errorf("verify user: %w", err)
	}
	return nil
}
