package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecordsList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/openapi/views/1719" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("start") != "0" || q.Get("max") != "10" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"structure":[{"name":"Payment Reference","type":"shortAnswer"}],"data":[{"id":1,"Payment Reference":"C12345"}],"totalCount":1}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithToken("t"))
	resp, err := client.Records().List(context.Background(), 1719, Page{Start: 0, Max: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	page, err := DecodeRecordPage(resp)
	if err != nil {
		t.Fatalf("DecodeRecordPage: %v", err)
	}
	id, ok := page.Data[0].ID()
	if !ok || id != 1 {
		t.Errorf("data[0].id = %v (%v), want 1", id, ok)
	}
	if page.Data[0].String("Payment Reference") != "C12345" {
		t.Errorf("Payment Reference = %q", page.Data[0].String("Payment Reference"))
	}
	if page.TotalCount != 1 || len(page.Structure) != 1 {
		t.Errorf("page = %+v", page)
	}
}

func TestRecordsPaging(t *testing.T) {
	tests := []struct {
		name      string
		page      Page
		wantStart string
		wantMax   string
		wantErr   bool
	}{
		{"defaults", Page{}, "0", "50", false},
		{"explicit", Page{Start: 20, Max: 10}, "20", "10", false},
		{"negative max uses default", Page{Start: 5, Max: -1}, "5", "50", false},
		{"negative start", Page{Start: -1, Max: 10}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits++
				q := r.URL.Query()
				if q.Get("start") != tt.wantStart || q.Get("max") != tt.wantMax {
					t.Errorf("query = %s", r.URL.RawQuery)
				}
				_, _ = w.Write([]byte(`{"data":[]}`))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.Records().List(context.Background(), 1, tt.page)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if hits != 0 {
					t.Errorf("invalid page should not reach the network")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRecordsFind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openapi/views/1361/find" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("q") != "C12345" {
			t.Errorf("q = %q", r.URL.Query().Get("q"))
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"88"}],"totalCount":1}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	resp, err := client.Records().Find(context.Background(), 1361, "C12345", Page{Max: 1})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	page, err := DecodeRecordPage(resp)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id, ok := page.Data[0].ID(); !ok || id != 88 {
		t.Errorf("id = %v", id)
	}
}

func TestRecordsMutations(t *testing.T) {
	tests := []struct {
		name       string
		wantMethod string
		wantPath   string
		wantBody   string
		status     int
		respBody   string
		call       func(c *Client) (*Response, error)
		wantKind   ResponseKind
	}{
		{
			name:       "create",
			wantMethod: http.MethodPost,
			wantPath:   "/openapi/views/5/records",
			wantBody:   `{"data":[{"Name":"a"}]}`,
			status:     200,
			respBody:   `{"data":[{"id":10,"Name":"a"}]}`,
			call: func(c *Client) (*Response, error) {
				return c.Records().Create(context.Background(), 5, []map[string]any{{"Name": "a"}})
			},
			wantKind: KindJSON,
		},
		{
			name:       "update",
			wantMethod: http.MethodPut,
			wantPath:   "/openapi/views/5/records/10",
			wantBody:   `{"data":{"Link to Site Visit":42}}`,
			status:     200,
			respBody:   `{"data":[{"id":10}]}`,
			call: func(c *Client) (*Response, error) {
				return c.Records().Update(context.Background(), 5, 10, map[string]any{"Link to Site Visit": 42})
			},
			wantKind: KindJSON,
		},
		{
			name:       "delete",
			wantMethod: http.MethodDelete,
			wantPath:   "/openapi/views/5/records/10",
			status:     204,
			call: func(c *Client) (*Response, error) {
				return c.Records().Delete(context.Background(), 5, 10)
			},
			wantKind: KindEmpty,
		},
		{
			name:       "get",
			wantMethod: http.MethodGet,
			wantPath:   "/openapi/views/5/records/10",
			status:     200,
			respBody:   `{"data":{"id":10}}`,
			call: func(c *Client) (*Response, error) {
				return c.Records().Get(context.Background(), 5, 10)
			},
			wantKind: KindJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != tt.wantMethod || r.URL.Path != tt.wantPath {
					t.Errorf("request = %s %s", r.Method, r.URL.Path)
				}
				if tt.wantBody != "" {
					if ct := r.Header.Get("Content-Type"); ct != "application/json" {
						t.Errorf("Content-Type = %q", ct)
					}
					var got, want any
					if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
						t.Fatalf("decode body: %v", err)
					}
					_ = json.Unmarshal([]byte(tt.wantBody), &want)
					gb, _ := json.Marshal(got)
					wb, _ := json.Marshal(want)
					if string(gb) != string(wb) {
						t.Errorf("body = %s, want %s", gb, wb)
					}
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.respBody))
			}))
			defer server.Close()

			resp, err := tt.call(newTestClient(t, server.URL))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", resp.Kind, tt.wantKind)
			}
		})
	}
}

func TestViewsAndApps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/openapi/apps":
			_, _ = w.Write([]byte(`[{"id":"3","name":"Billing"}]`))
		case "/openapi/views":
			_, _ = w.Write([]byte(`[{"id":"1719","name":"Payments","applicationName":"Billing","default":false}]`))
		case "/openapi/views/1719":
			_, _ = w.Write([]byte(`{"data":[],"totalCount":0}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found"}`))
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	ctx := context.Background()

	resp, err := client.Apps().List(ctx)
	if err != nil {
		t.Fatalf("apps: %v", err)
	}
	apps, err := DecodeApps(resp)
	if err != nil || len(apps) != 1 || apps[0].ID != 3 || apps[0].Name != "Billing" {
		t.Errorf("apps = %+v, err = %v", apps, err)
	}

	resp, err = client.Views().List(ctx)
	if err != nil {
		t.Fatalf("views: %v", err)
	}
	views, err := DecodeViews(resp)
	if err != nil || len(views) != 1 || views[0].ID != 1719 || views[0].ApplicationName != "Billing" {
		t.Errorf("views = %+v, err = %v", views, err)
	}

	if _, err := client.Views().Get(ctx, 1719); err != nil {
		t.Errorf("get view: %v", err)
	}
	if _, err := client.Views().Get(ctx, 1); !IsNotFoundError(err) {
		t.Errorf("expected not found, got %v", err)
	}
}
