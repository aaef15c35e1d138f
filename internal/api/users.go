package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// NewUser describes a user to invite into the account.
type NewUser struct {
	Email     string
	FirstName string
	LastName  string
	TimeZone  string
}

// List retrieves one page of account users.
func (s UsersService) List(ctx context.Context, page Page) (*Response, error) {
	query, err := page.values()
	if err != nil {
		return nil, err
	}
	return s.do(ctx, request{method: http.MethodGet, endpoint: "/openapi/users", query: query})
}

// Create adds a user to the account. The service takes the user's fields as
// query parameters; an empty TimeZone is omitted.
func (s UsersService) Create(ctx context.Context, u NewUser) (*Response, error) {
	if strings.TrimSpace(u.Email) == "" {
		return nil, fmt.Errorf("email is required")
	}
	query := url.Values{}
	query.Set("email", u.Email)
	query.Set("firstName", u.FirstName)
	query.Set("lastName", u.LastName)
	if u.TimeZone != "" {
		query.Set("timeZone", u.TimeZone)
	}
	return s.do(ctx, request{method: http.MethodPost, endpoint: "/openapi/users", query: query})
}
