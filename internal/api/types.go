package api

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ID is a TrackVia identifier. The service encodes IDs as numbers in record
// payloads and as strings in app/view listings; ID accepts both.
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", string(b), err)
	}
	*id = ID(n)
	return nil
}

// App is an application in the account.
type App struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// View is a saved view over an app's records.
type View struct {
	ID              ID     `json:"id"`
	Name            string `json:"name"`
	ApplicationName string `json:"applicationName,omitempty"`
	Default         bool   `json:"default,omitempty"`
}

// FieldMeta describes a column of a view.
type FieldMeta struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Required  bool   `json:"required,omitempty"`
	Unique    bool   `json:"unique,omitempty"`
	CanRead   bool   `json:"canRead,omitempty"`
	CanUpdate bool   `json:"canUpdate,omitempty"`
}

// Record is a single row keyed by field name. It always carries "id".
type Record map[string]any

// ID returns the record's numeric id.
func (r Record) ID() (int64, bool) {
	return toInt64(r["id"])
}

// String returns a field rendered as a string, or "" when absent.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Fields returns the record's field names in sorted order, "id" first.
func (r Record) Fields() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		if k != "id" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	if _, ok := r["id"]; ok {
		names = append([]string{"id"}, names...)
	}
	return names
}

// RecordPage is the body of list and find responses.
type RecordPage struct {
	Structure  []FieldMeta `json:"structure,omitempty"`
	Data       []Record    `json:"data"`
	TotalCount int         `json:"totalCount"`
}

// RecordDetail is the body of a single-record response, where "data" is an
// object rather than a list.
type RecordDetail struct {
	Structure []FieldMeta `json:"structure,omitempty"`
	Data      Record      `json:"data"`
}

// User is an account user.
type User struct {
	ID        ID     `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Status    string `json:"status,omitempty"`
	TimeZone  string `json:"timeZone,omitempty"`
}

// UserPage is the body of the users listing.
type UserPage struct {
	Data       []User `json:"data"`
	TotalCount int    `json:"totalCount"`
}

// DecodeRecordPage decodes a list/find/get response.
func DecodeRecordPage(resp *Response) (*RecordPage, error) {
	var page RecordPage
	if err := resp.Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

// DecodeRecord decodes a single-record response.
func DecodeRecord(resp *Response) (*RecordDetail, error) {
	var detail RecordDetail
	if err := resp.Decode(&detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// DecodeViews decodes a views listing.
func DecodeViews(resp *Response) ([]View, error) {
	var views []View
	if err := resp.Decode(&views); err != nil {
		return nil, err
	}
	return views, nil
}

// DecodeApps decodes an apps listing.
func DecodeApps(resp *Response) ([]App, error) {
	var apps []App
	if err := resp.Decode(&apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// DecodeUsers decodes a users listing.
func DecodeUsers(resp *Response) (*UserPage, error) {
	var page UserPage
	if err := resp.Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return wholeInt64(f)
	case float64:
		return wholeInt64(t)
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// wholeInt64 accepts f only when it is an integral value in int64 range, so a
// fractional id is never truncated into a different record's id.
func wholeInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
