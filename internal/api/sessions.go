package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/evangeline-go/evangeline/internal/model"
)

// Session defaults applied by CreateSession.
const (
	DefaultSessionPlatform = "go"
	DefaultSessionClient   = "evangeline"
)

// CreateSession logs in and returns a new session token. Empty Platform and
// Client fields are filled with DefaultSessionPlatform and DefaultSessionClient.
func (c *Client) CreateSession(ctx context.Context, data model.SessionCreate) (*model.SessionCreated, error) {
	if data.Platform == "" {
		data.Platform = DefaultSessionPlatform
	}
	if data.Client == "" {
		data.Client = DefaultSessionClient
	}

	r, err := c.rest(http.MethodPost, "/sessions", "/sessions").withJSON(data)
	if err != nil {
		return nil, err
	}

	var resp model.SessionCreated
	if err := c.doJSON(ctx, r, &resp); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &resp, nil
}

// DeleteSession revokes a session of the authenticated user.
func (c *Client) DeleteSession(ctx context.Context, sessionID string, data model.PasswordDeleteCredentials) error {
	r, err := c.rest(http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), "/sessions/{id}").withAuth().withJSON(data)
	if err != nil {
		return err
	}
	if err := c.doJSON(ctx, r, nil); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// GetSessions lists the authenticated user's sessions.
func (c *Client) GetSessions(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := c.doJSON(ctx, c.rest(http.MethodGet, "/sessions", "/sessions").withAuth(), &sessions); err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}
	return sessions, nil
}
