package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// ResponseKind discriminates the three successful response shapes.
type ResponseKind int

const (
	// KindEmpty is a 204 No Content response.
	KindEmpty ResponseKind = iota
	// KindJSON is a parsed JSON object or array.
	KindJSON
	// KindBytes is a non-JSON 2xx body, e.g. a file download.
	KindBytes
)

func (k ResponseKind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindBytes:
		return "bytes"
	default:
		return "empty"
	}
}

// Response is the result of a successful request. Exactly one of the three
// shapes is produced per request; check Kind before reading the body.
type Response struct {
	Kind       ResponseKind
	StatusCode int
	Header     http.Header
	body       []byte
}

// NewJSONResponse wraps a JSON body in a 200 response, for callers that fake
// the client.
func NewJSONResponse(body []byte) *Response {
	return &Response{Kind: KindJSON, StatusCode: http.StatusOK, Header: http.Header{}, body: body}
}

// IsEmpty reports whether the service answered 204 No Content.
func (r *Response) IsEmpty() bool {
	return r == nil || r.Kind == KindEmpty
}

// Bytes returns the raw body. It is nil for empty responses.
func (r *Response) Bytes() []byte {
	if r == nil || r.Kind == KindEmpty {
		return nil
	}
	return r.body
}

// RawJSON returns the JSON body unchanged.
func (r *Response) RawJSON() (json.RawMessage, error) {
	if r == nil || r.Kind != KindJSON {
		return nil, fmt.Errorf("response is %s, not json", r.kind())
	}
	return json.RawMessage(r.body), nil
}

// JSON returns the parsed JSON value. Numbers are kept as json.Number so IDs
// survive without float rounding.
func (r *Response) JSON() (any, error) {
	var v any
	if err := r.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || r.Kind != KindJSON {
		return fmt.Errorf("response is %s, not json", r.kind())
	}
	dec := json.NewDecoder(bytes.NewReader(r.body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("unexpected API response format (JSON decode failed): %w", err)
	}
	return nil
}

func (r *Response) kind() ResponseKind {
	if r == nil {
		return KindEmpty
	}
	return r.Kind
}

// classify turns a raw HTTP exchange into a Response or an error:
// non-JSON bodies are only accepted as 204 (empty) or non-empty 2xx (bytes);
// JSON bodies below 400 succeed; JSON bodies at or above 400 become *APIError.
func classify(req request, status int, header http.Header, body []byte) (*Response, error) {
	if !json.Valid(body) {
		switch {
		case status == http.StatusNoContent:
			return &Response{Kind: KindEmpty, StatusCode: status, Header: header}, nil
		case status >= 200 && status < 300 && len(body) > 0:
			return &Response{Kind: KindBytes, StatusCode: status, Header: header, body: body}, nil
		}
		return nil, &UnexpectedResponseError{
			Method:     req.method,
			Endpoint:   req.endpoint,
			StatusCode: status,
			Snippet:    snippet(body),
		}
	}

	if status < http.StatusBadRequest {
		return &Response{Kind: KindJSON, StatusCode: status, Header: header, body: body}, nil
	}

	return nil, &APIError{
		Message:    errorMessage(body),
		Method:     req.method,
		Endpoint:   req.endpoint,
		StatusCode: status,
		RequestID:  requestIDFromHeader(header),
	}
}

func errorMessage(body []byte) string {
	var errResp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Message == "" {
		return unknownErrorMessage
	}
	return errResp.Message
}

func requestIDFromHeader(header http.Header) string {
	if header == nil {
		return ""
	}
	return header.Get("X-Request-Id")
}
