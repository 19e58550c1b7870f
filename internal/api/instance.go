package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/evangeline-go/evangeline/internal/model"
)

// GetInstanceInfo fetches information about the instance. With rateLimits set
// the response also carries the instance's rate limit table.
func (c *Client) GetInstanceInfo(ctx context.Context, rateLimits bool) (*model.InstanceInfo, error) {
	r := c.rest(http.MethodGet, "/", "/")
	if rateLimits {
		r.query = url.Values{"rate_limits": {""}}
	}

	var info model.InstanceInfo
	if err := c.doJSON(ctx, r, &info); err != nil {
		return nil, fmt.Errorf("get instance info: %w", err)
	}
	return &info, nil
}
