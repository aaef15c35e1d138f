package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Page selects a window of records. A non-positive Max means DefaultPageSize.
// Callers iterate beyond one page themselves.
type Page struct {
	Start int
	Max   int
}

func (p Page) values() (url.Values, error) {
	if p.Start < 0 {
		return nil, fmt.Errorf("invalid page start %d: must be >= 0", p.Start)
	}
	size := p.Max
	if size <= 0 {
		size = DefaultPageSize
	}
	v := url.Values{}
	v.Set("start", strconv.Itoa(p.Start))
	v.Set("max", strconv.Itoa(size))
	return v, nil
}

// List retrieves one page of records in a view.
func (s RecordsService) List(ctx context.Context, viewID int64, page Page) (*Response, error) {
	query, err := page.values()
	if err != nil {
		return nil, err
	}
	return s.do(ctx, request{method: http.MethodGet, endpoint: viewPath(viewID), query: query})
}

// Find retrieves one page of records in a view matching a free-text query.
func (s RecordsService) Find(ctx context.Context, viewID int64, q string, page Page) (*Response, error) {
	query, err := page.values()
	if err != nil {
		return nil, err
	}
	query.Set("q", q)
	return s.do(ctx, request{method: http.MethodGet, endpoint: viewPath(viewID) + "/find", query: query})
}

// Get retrieves a single record.
func (s RecordsService) Get(ctx context.Context, viewID, recordID int64) (*Response, error) {
	return s.do(ctx, request{method: http.MethodGet, endpoint: recordPath(viewID, recordID)})
}

// Create creates records in a view. data is sent as {"data": data}; the
// service expects a list of field maps.
func (s RecordsService) Create(ctx context.Context, viewID int64, data any) (*Response, error) {
	return s.do(ctx, request{
		method:   http.MethodPost,
		endpoint: viewPath(viewID) + "/records",
		body:     map[string]any{"data": data},
	})
}

// Update updates a record. data is sent as {"data": data}.
func (s RecordsService) Update(ctx context.Context, viewID, recordID int64, data any) (*Response, error) {
	return s.do(ctx, request{
		method:   http.MethodPut,
		endpoint: recordPath(viewID, recordID),
		body:     map[string]any{"data": data},
	})
}

// Delete deletes a record. On success the response is KindEmpty.
func (s RecordsService) Delete(ctx context.Context, viewID, recordID int64) (*Response, error) {
	return s.do(ctx, request{method: http.MethodDelete, endpoint: recordPath(viewID, recordID)})
}

func recordPath(viewID, recordID int64) string {
	return fmt.Sprintf("/openapi/views/%d/records/%d", viewID, recordID)
}
