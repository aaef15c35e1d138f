package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// tokenResponse is the payload of /oauth/token.
type tokenResponse struct {
	Value        string `json:"value"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

// Login exchanges username and password for a bearer token and refresh token
// (password grant) and stores both on the client.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return &AuthError{Op: "login", Reason: "username and password are required"}
	}
	return c.exchangeToken(ctx, "login", map[string]string{
		"grant_type": "password",
		"client_id":  clientID,
		"username":   username,
		"password":   password,
	})
}

// RefreshToken exchanges the held refresh token for a new token pair.
func (c *Client) RefreshToken(ctx context.Context) error {
	refresh := c.Session().RefreshToken
	if refresh == "" {
		return &AuthError{Op: "refresh", Reason: "no refresh token held; log in first"}
	}
	return c.exchangeToken(ctx, "refresh", map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     clientID,
		"refresh_token": refresh,
	})
}

func (c *Client) exchangeToken(ctx context.Context, op string, form map[string]string) error {
	resp, err := c.do(ctx, request{
		method:        http.MethodPost,
		endpoint:      tokenEndpoint,
		form:          form,
		tokenExchange: true,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return &AuthError{Op: op, Reason: "token exchange rejected", Err: err}
		}
		var unexpected *UnexpectedResponseError
		if errors.As(err, &unexpected) {
			return &AuthError{Op: op, Reason: "token exchange returned an unusable payload", Err: err}
		}
		return err
	}

	var tok tokenResponse
	if resp.Kind != KindJSON {
		return &AuthError{Op: op, Reason: "token exchange returned " + resp.Kind.String() + " instead of json"}
	}
	if err := resp.Decode(&tok); err != nil {
		return &AuthError{Op: op, Reason: "token exchange returned an unusable payload", Err: err}
	}
	if tok.Value == "" || tok.RefreshToken == "" {
		return &AuthError{Op: op, Reason: "token response is missing value or refresh_token"}
	}

	c.storeSession(Session{Token: tok.Value, RefreshToken: tok.RefreshToken})
	c.log.Debug("session updated", zap.String("op", op))
	return nil
}
