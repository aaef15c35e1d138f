package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(baseURL), WithTimeout(5 * time.Second)}, opts...)
	c, err := New("test-key", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRequiresUserKey(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	for _, key := range []string{"", "   "} {
		c, err := New(key, WithBaseURL(server.URL))
		if c != nil {
			t.Errorf("New(%q) returned a client", key)
		}
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("New(%q) error = %v, want *ConfigError", key, err)
		}
		if cfgErr.Field != "user_key" {
			t.Errorf("Field = %q, want user_key", cfgErr.Field)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 0 {
		t.Errorf("expected no network calls, got %d", got)
	}
}

func TestNewDefaults(t *testing.T) {
	c, err := New("k")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL, DefaultBaseURL)
	}
	if c.Session() != (Session{}) {
		t.Errorf("expected empty session, got %+v", c.Session())
	}

	c, err = New("k", WithBaseURL("https://example.test/"), WithToken("tok"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.BaseURL != "https://example.test" {
		t.Errorf("BaseURL = %q, trailing slash not trimmed", c.BaseURL)
	}
	if c.Session().Token != "tok" {
		t.Errorf("Token = %q, want tok", c.Session().Token)
	}
}

func TestRequestHeadersAndUserKey(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		wantBearer string
	}{
		{name: "no token", token: "", wantBearer: ""},
		{name: "with token", token: "abc", wantBearer: "Bearer abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("user_key"); got != "test-key" {
					t.Errorf("user_key = %q, want test-key", got)
				}
				if got := r.Header.Get("Authorization"); got != tt.wantBearer {
					t.Errorf("Authorization = %q, want %q", got, tt.wantBearer)
				}
				if got := r.Header.Get("Accepts"); got != "application/json" {
					t.Errorf("Accepts = %q, want application/json", got)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`[]`))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, WithToken(tt.token))
			if _, err := client.Apps().List(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestResponseShapes(t *testing.T) {
	binary := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}

	tests := []struct {
		name       string
		method     string
		status     int
		body       []byte
		wantKind   ResponseKind
		wantErr    any
		wantBytes  []byte
		wantAPIMsg string
	}{
		{name: "json object", method: http.MethodGet, status: 200, body: []byte(`{"a":1,"b":[true,null]}`), wantKind: KindJSON},
		{name: "json array", method: http.MethodGet, status: 200, body: []byte(`[{"id":"1","name":"x"}]`), wantKind: KindJSON},
		{name: "json on 201", method: http.MethodPost, status: 201, body: []byte(`{"data":[]}`), wantKind: KindJSON},
		{name: "204 on GET", method: http.MethodGet, status: 204, wantKind: KindEmpty},
		{name: "204 on POST", method: http.MethodPost, status: 204, wantKind: KindEmpty},
		{name: "204 on PUT", method: http.MethodPut, status: 204, wantKind: KindEmpty},
		{name: "204 on DELETE", method: http.MethodDelete, status: 204, wantKind: KindEmpty},
		{name: "binary 200", method: http.MethodGet, status: 200, body: binary, wantKind: KindBytes, wantBytes: binary},
		{name: "text 201", method: http.MethodPost, status: 201, body: []byte("uploaded"), wantKind: KindBytes, wantBytes: []byte("uploaded")},
		{name: "empty 200", method: http.MethodGet, status: 200, wantErr: &UnexpectedResponseError{}},
		{name: "html 502", method: http.MethodGet, status: 502, body: []byte("<html>bad gateway</html>"), wantErr: &UnexpectedResponseError{}},
		{name: "error with message", method: http.MethodGet, status: 404, body: []byte(`{"message":"View not found"}`), wantErr: &APIError{}, wantAPIMsg: "View not found"},
		{name: "error without message", method: http.MethodPut, status: 400, body: []byte(`{"errors":["bad"]}`), wantErr: &APIError{}, wantAPIMsg: "Unknown error"},
		{name: "error as array", method: http.MethodDelete, status: 500, body: []byte(`[1,2]`), wantErr: &APIError{}, wantAPIMsg: "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != tt.method {
					t.Errorf("method = %s, want %s", r.Method, tt.method)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write(tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			var body any
			if tt.method == http.MethodPost || tt.method == http.MethodPut {
				body = map[string]any{"data": []any{}}
			}
			resp, err := client.Do(context.Background(), tt.method, "/openapi/test", nil, body)

			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("expected error, got response kind %v", resp.Kind)
				}
				switch tt.wantErr.(type) {
				case *UnexpectedResponseError:
					var e *UnexpectedResponseError
					if !errors.As(err, &e) {
						t.Fatalf("error = %T, want *UnexpectedResponseError", err)
					}
					if e.StatusCode != tt.status {
						t.Errorf("StatusCode = %d, want %d", e.StatusCode, tt.status)
					}
				case *APIError:
					var e *APIError
					if !errors.As(err, &e) {
						t.Fatalf("error = %T, want *APIError", err)
					}
					if e.Message != tt.wantAPIMsg {
						t.Errorf("Message = %q, want %q", e.Message, tt.wantAPIMsg)
					}
					if e.StatusCode != tt.status || e.Method != tt.method || e.Endpoint != "/openapi/test" {
						t.Errorf("unexpected error context: %+v", e)
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v", resp.Kind, tt.wantKind)
			}
			switch tt.wantKind {
			case KindJSON:
				raw, err := resp.RawJSON()
				if err != nil {
					t.Fatalf("RawJSON: %v", err)
				}
				if string(raw) != string(tt.body) {
					t.Errorf("RawJSON = %s, want %s", raw, tt.body)
				}
				var want any
				_ = json.Unmarshal(tt.body, &want)
				got, err := resp.JSON()
				if err != nil {
					t.Fatalf("JSON: %v", err)
				}
				gotNorm := normalize(t, got)
				if !reflect.DeepEqual(gotNorm, want) {
					t.Errorf("JSON = %#v, want %#v", gotNorm, want)
				}
			case KindBytes:
				if string(resp.Bytes()) != string(tt.wantBytes) {
					t.Errorf("Bytes = %v, want %v", resp.Bytes(), tt.wantBytes)
				}
				if _, err := resp.JSON(); err == nil {
					t.Error("expected JSON() to fail on a bytes response")
				}
			case KindEmpty:
				if !resp.IsEmpty() || resp.Bytes() != nil {
					t.Errorf("expected empty response, got %q", resp.Bytes())
				}
			}
		})
	}
}

// normalize re-encodes a json.Number-bearing value so it compares equal to a
// plain json.Unmarshal result.
func normalize(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestTransportErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := newTestClient(t, baseURL)
	_, err := client.Views().List(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	var apiErr *APIError
	var authErr *AuthError
	if errors.As(err, &apiErr) || errors.As(err, &authErr) {
		t.Fatalf("transport failure should not be converted, got %T", err)
	}
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		t.Errorf("expected *url.Error in chain, got %v", err)
	}
}

func TestTimeoutOption(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, server.URL, WithTimeout(50*time.Millisecond))
	if _, err := client.Apps().List(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestDoRejectsUnsupportedMethod(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1")
	if _, err := client.Do(context.Background(), "PATCH", "/openapi/apps", nil, nil); err == nil {
		t.Fatal("expected error for PATCH")
	}
}

func TestDoNormalizesEndpointAndQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openapi/views/3" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("start") != "5" || r.URL.Query().Get("user_key") != "test-key" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) != 0 {
			t.Errorf("GET should not carry a body, got %s", body)
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	resp, err := client.Do(context.Background(), "get", "openapi/views/3", url.Values{"start": {"5"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Kind != KindJSON {
		t.Errorf("Kind = %v", resp.Kind)
	}
}
