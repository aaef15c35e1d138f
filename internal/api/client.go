package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL  = "https://go.trackvia.com:443"
	DefaultTimeout  = 30 * time.Second
	DefaultPageSize = 50

	clientID            = "TrackViaAPI"
	userKeyParam        = "user_key"
	tokenEndpoint       = "/oauth/token"
	tokenExpiredMessage = "Access token expired"
	defaultFileType     = "application/octet-stream"
)

// Session holds the bearer and refresh tokens obtained by Login or RefreshToken.
type Session struct {
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Client is the TrackVia API client.
//
// The user key is fixed at construction. The session is replaced in place by
// Login and by the refresh-on-expiry path, so a Client should not be shared by
// concurrent callers without external synchronization; the internal lock only
// guarantees that readers never see a half-updated token pair.
type Client struct {
	BaseURL   string
	UserAgent string

	userKey   string
	http      *resty.Client
	log       *zap.Logger
	onSession func(Session)

	mu      sync.Mutex
	session Session
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if strings.TrimSpace(baseURL) != "" {
			c.BaseURL = strings.TrimSpace(baseURL)
		}
	}
}

// WithToken starts the client with a bearer token and no refresh token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.session.Token = token
	}
}

// WithSession starts the client with a previously saved session.
func WithSession(s Session) Option {
	return func(c *Client) {
		c.session = s
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.UserAgent = ua
	}
}

// WithSessionHook registers fn to be called with the new session after every
// successful login or refresh.
func WithSessionHook(fn func(Session)) Option {
	return func(c *Client) {
		c.onSession = fn
	}
}

// New creates a TrackVia client. It fails with *ConfigError, without touching
// the network, when userKey is empty.
func New(userKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(userKey) == "" {
		return nil, &ConfigError{Field: userKeyParam, Reason: "a non-empty TrackVia user key is required"}
	}

	c := &Client{
		BaseURL: DefaultBaseURL,
		userKey: userKey,
		http:    resty.New().SetTimeout(DefaultTimeout),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	c.http.SetLogger(c.log.Sugar())
	return c, nil
}

// Session returns a copy of the current session.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SetSession replaces the current session.
func (c *Client) SetSession(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *Client) storeSession(s Session) {
	c.SetSession(s)
	if c.onSession != nil {
		c.onSession(s)
	}
}

// filePart is a multipart file upload.
type filePart struct {
	field       string
	name        string
	contentType string
	content     []byte
}

// request describes one logical API call. At most one of form, body and file is set.
type request struct {
	method   string
	endpoint string
	query    url.Values
	header   map[string]string
	form     map[string]string
	body     any
	file     *filePart

	// tokenExchange marks /oauth/token calls, which never trigger a refresh.
	tokenExchange bool
}

// do executes req, refreshing the session and re-issuing req exactly once
// when the service reports an expired access token.
func (c *Client) do(ctx context.Context, req request) (*Response, error) {
	resp, err := c.execute(ctx, req)
	if err == nil || req.tokenExchange || !IsTokenExpired(err) {
		return resp, err
	}

	c.log.Info("access token expired, refreshing", zap.String("method", req.method), zap.String("endpoint", req.endpoint))
	if err := c.RefreshToken(ctx); err != nil {
		return nil, err
	}
	return c.execute(ctx, req)
}

// execute sends req once and classifies the response.
func (c *Client) execute(ctx context.Context, req request) (*Response, error) {
	r := c.http.R().SetContext(ctx)

	query := url.Values{}
	for k, vs := range req.query {
		query[k] = append([]string(nil), vs...)
	}
	query.Set(userKeyParam, c.userKey)
	r.SetQueryParamsFromValues(query)

	for k, v := range req.header {
		r.SetHeader(k, v)
	}
	if token := c.Session().Token; token != "" {
		r.SetHeader("Authorization", "Bearer "+token)
	}
	r.SetHeader("Accepts", "application/json")
	r.SetHeader("Accept", "application/json")
	if c.UserAgent != "" {
		r.SetHeader("User-Agent", c.UserAgent)
	}

	switch {
	case req.form != nil:
		r.SetFormData(req.form)
	case req.body != nil:
		r.SetHeader("Content-Type", "application/json")
		r.SetBody(req.body)
	case req.file != nil:
		contentType := req.file.contentType
		if contentType == "" {
			contentType = defaultFileType
		}
		r.SetMultipartField(req.file.field, req.file.name, contentType, bytes.NewReader(req.file.content))
	}

	start := time.Now()
	resp, err := r.Execute(req.method, c.BaseURL+req.endpoint)
	if err != nil {
		c.log.Debug("request failed", zap.String("method", req.method), zap.String("endpoint", req.endpoint), zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", req.method, req.endpoint, err)
	}
	c.log.Debug("request complete",
		zap.String("method", req.method),
		zap.String("endpoint", req.endpoint),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("duration", time.Since(start)),
	)

	return classify(req, resp.StatusCode(), resp.Header(), resp.Body())
}

// Do issues a request against an arbitrary endpoint (e.g. "/openapi/apps") with
// the same authentication and response handling as the typed operations.
// body, when non-nil, is sent as JSON.
func (c *Client) Do(ctx context.Context, method, endpoint string, query url.Values, body any) (*Response, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, fmt.Errorf("unsupported method %q (use GET, POST, PUT or DELETE)", method)
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.do(ctx, request{method: method, endpoint: endpoint, query: query, body: body})
}
