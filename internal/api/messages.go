package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/evangeline-go/evangeline/internal/model"
)

// CreateMessage posts a message and returns it as echoed by the server.
func (c *Client) CreateMessage(ctx context.Context, msg model.MessageCreate) (*model.Message, error) {
	r, err := c.rest(http.MethodPost, "/messages", "/messages").withAuth().withJSON(msg)
	if err != nil {
		return nil, err
	}

	var resp model.Message
	if err := c.doJSON(ctx, r, &resp); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &resp, nil
}
