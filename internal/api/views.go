package api

import (
	"context"
	"fmt"
	"net/http"
)

// List retrieves all apps in the account.
func (s AppsService) List(ctx context.Context) (*Response, error) {
	return s.do(ctx, request{method: http.MethodGet, endpoint: "/openapi/apps"})
}

// List retrieves all views in the account.
func (s ViewsService) List(ctx context.Context) (*Response, error) {
	return s.do(ctx, request{method: http.MethodGet, endpoint: "/openapi/views"})
}

// Get retrieves a single view. The service answers with the view's first page
// of records.
func (s ViewsService) Get(ctx context.Context, viewID int64) (*Response, error) {
	return s.do(ctx, request{method: http.MethodGet, endpoint: viewPath(viewID)})
}

func viewPath(viewID int64) string {
	return fmt.Sprintf("/openapi/views/%d", viewID)
}
