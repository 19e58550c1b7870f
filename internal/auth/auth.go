// Package auth loads session tokens and applies them to outgoing requests.
//
// Tokens are opaque strings returned by POST /sessions and are sent verbatim
// in the Authorization header (no "Bearer" prefix).
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// ErrNoToken is returned when neither a token nor a token file is configured.
var ErrNoToken = errors.New("no session token configured")

// Credentials holds the session token used for authenticated requests.
type Credentials struct {
	Token string
}

// LoadCredentials resolves credentials from an inline token or, if that is
// empty, from tokenPath. An inline token wins when both are set.
func LoadCredentials(token, tokenPath string) (*Credentials, error) {
	token = strings.TrimSpace(token)
	if token != "" {
		return &Credentials{Token: token}, nil
	}
	if tokenPath == "" {
		return nil, ErrNoToken
	}

	token, err := LoadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	return &Credentials{Token: token}, nil
}

// LoadToken reads a token from a file, trimming surrounding whitespace.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return token, nil
}

// Header returns the headers to attach to a gateway handshake or REST request.
func (c *Credentials) Header() http.Header {
	h := http.Header{}
	if c != nil && c.Token != "" {
		h.Set("Authorization", c.Token)
	}
	return h
}

// Apply sets the Authorization header on req. A nil receiver leaves req untouched.
func (c *Credentials) Apply(req *http.Request) {
	if c == nil || c.Token == "" {
		return
	}
	req.Header.Set("Authorization", c.Token)
}
