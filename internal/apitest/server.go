// Package apitest runs an in-memory TrackVia service for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// UserKey is the key every request must carry.
	UserKey = "test-user-key"
	// Username and Password are the accepted login credentials.
	Username = "ops@example.com"
	Password = "s3cret"

	tokenExpiredMessage = "Access token expired"
)

// View is a view and its records. Records always carry an "id".
type View struct {
	ID      int64
	Name    string
	App     string
	Records []map[string]any
}

// Update is one record update received by the server.
type Update struct {
	ViewID   int64
	RecordID int64
	Data     map[string]any
}

// Server is a fake TrackVia service backed by httptest.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	token      string
	refresh    string
	issued     int
	tokenCalls int
	views      map[int64]*View
	nextID     int64
	users      []map[string]any
	files      map[string]file
	updates    []Update
	failures   map[string]failure
	requests   []string
}

type file struct {
	name        string
	contentType string
	content     []byte
}

type failure struct {
	status  int
	message string
}

// New starts a server that is closed when t finishes.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		views:    map[int64]*View{},
		nextID:   1000,
		files:    map[string]file{},
		failures: map[string]failure{},
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)

	r.Post("/oauth/token", s.handleToken)

	r.Group(func(api chi.Router) {
		api.Use(s.authenticate)
		api.Get("/openapi/apps", s.handleApps)
		api.Get("/openapi/views", s.handleViews)
		api.Get("/openapi/views/{viewID}", s.handleListRecords)
		api.Get("/openapi/views/{viewID}/find", s.handleFind)
		api.Post("/openapi/views/{viewID}/records", s.handleCreate)
		api.Get("/openapi/views/{viewID}/records/{recordID}", s.handleGetRecord)
		api.Put("/openapi/views/{viewID}/records/{recordID}", s.handleUpdate)
		api.Delete("/openapi/views/{viewID}/records/{recordID}", s.handleDelete)
		api.Get("/openapi/views/{viewID}/records/{recordID}/files/{field}", s.handleGetFile)
		api.Post("/openapi/views/{viewID}/records/{recordID}/files/{field}", s.handleAttach)
		api.Get("/openapi/users", s.handleUsers)
		api.Post("/openapi/users", s.handleCreateUser)
	})
	return r
}

// AddView registers a view with its records.
func (s *Server) AddView(id int64, name, app string, records ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[id] = &View{ID: id, Name: name, App: app, Records: records}
}

// AddUser registers an account user.
func (s *Server) AddUser(id int64, email, first, last string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, map[string]any{"id": id, "email": email, "firstName": first, "lastName": last, "status": "ACTIVE"})
}

// Fail makes every request whose "METHOD /path" starts with prefix answer
// with status and message.
func (s *Server) Fail(prefix string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[prefix] = failure{status: status, message: message}
}

// Session returns the token pair the server currently accepts.
func (s *Server) Session() (token, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.refresh
}

// IssueSession mints a token pair without a login call.
func (s *Server) IssueSession() (token, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotate()
	return s.token, s.refresh
}

// ExpireToken invalidates the current access token; the refresh token stays valid.
func (s *Server) ExpireToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = fmt.Sprintf("expired-%d", s.issued)
}

// TokenCalls counts /oauth/token requests.
func (s *Server) TokenCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenCalls
}

// Updates returns the record updates received so far.
func (s *Server) Updates() []Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Update(nil), s.updates...)
}

// Requests returns "METHOD /path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Record returns a copy of a stored record.
func (s *Server) Record(viewID, recordID int64) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[viewID]
	if !ok {
		return nil, false
	}
	if _, rec := findRecord(v, recordID); rec != nil {
		out := make(map[string]any, len(rec))
		for k, val := range rec {
			out[k] = val
		}
		return out, true
	}
	return nil, false
}

// File returns an attached file's content.
func (s *Server) File(viewID, recordID int64, field string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileKey(viewID, recordID, field)]
	return f.content, ok
}

func (s *Server) rotate() {
	s.issued++
	s.token = fmt.Sprintf("token-%d", s.issued)
	s.refresh = fmt.Sprintf("refresh-%d", s.issued)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		line := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.requests = append(s.requests, line)
		var fail *failure
		for prefix, f := range s.failures {
			if strings.HasPrefix(line, prefix) {
				f := f
				fail = &f
				break
			}
		}
		s.mu.Unlock()

		if fail != nil {
			writeError(w, fail.status, fail.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user_key") != UserKey {
			writeError(w, http.StatusUnauthorized, "Invalid user key")
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "" {
			s.mu.Lock()
			valid := auth == "Bearer "+s.token && s.token != ""
			s.mu.Unlock()
			if !valid {
				writeError(w, http.StatusUnauthorized, tokenExpiredMessage)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed form")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenCalls++

	switch r.PostForm.Get("grant_type") {
	case "password":
		if r.PostForm.Get("username") != Username || r.PostForm.Get("password") != Password {
			writeError(w, http.StatusUnauthorized, "Bad credentials")
			return
		}
	case "refresh_token":
		if s.refresh == "" || r.PostForm.Get("refresh_token") != s.refresh {
			writeError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "Unsupported grant type")
		return
	}

	s.rotate()
	writeJSON(w, http.StatusOK, map[string]any{
		"value":         s.token,
		"refresh_token": s.refresh,
		"expires_in":    299,
	})
}

func (s *Server) handleApps(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]bool{}
	apps := []map[string]any{}
	for _, v := range s.sortedViews() {
		if v.App == "" || seen[v.App] {
			continue
		}
		seen[v.App] = true
		apps = append(apps, map[string]any{"id": len(apps) + 1, "name": v.App})
	}
	writeJSON(w, http.StatusOK, apps)
}

func (s *Server) handleViews(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := []map[string]any{}
	for _, v := range s.sortedViews() {
		views = append(views, map[string]any{"id": v.ID, "name": v.Name, "applicationName": v.App})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.view(w, r)
	if !ok {
		return
	}
	writePage(w, r, v, v.Records)
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.view(w, r)
	if !ok {
		return
	}
	q := strings.ToLower(r.URL.Query().Get("q"))
	var hits []map[string]any
	for _, rec := range v.Records {
		for k, val := range rec {
			if k == "id" {
				continue
			}
			if strings.Contains(strings.ToLower(fmt.Sprint(val)), q) {
				hits = append(hits, rec)
				break
			}
		}
	}
	writePage(w, r, v, hits)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.view(w, r)
	if !ok {
		return
	}
	rows, ok := decodeData(w, r)
	if !ok {
		return
	}
	created := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		s.nextID++
		row["id"] = s.nextID
		v.Records = append(v.Records, row)
		created = append(created, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": created, "totalCount": len(created)})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, rec, ok := s.recordFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rec})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, rec, ok := s.recordFor(w, r)
	if !ok {
		return
	}
	rows, ok := decodeData(w, r)
	if !ok {
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusBadRequest, "No data supplied")
		return
	}
	id, _ := toInt64(rec["id"])
	for k, val := range rows[0] {
		if k != "id" {
			rec[k] = val
		}
	}
	s.updates = append(s.updates, Update{ViewID: v.ID, RecordID: id, Data: rows[0]})
	writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{rec}, "totalCount": 1})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, rec, ok := s.recordFor(w, r)
	if !ok {
		return
	}
	id, _ := toInt64(rec["id"])
	i, _ := findRecord(v, id)
	v.Records = append(v.Records[:i], v.Records[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, rec, ok := s.recordFor(w, r)
	if !ok {
		return
	}
	id, _ := toInt64(rec["id"])
	f, ok := s.files[fileKey(v.ID, id, fieldParam(r))]
	if !ok {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", f.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.content)
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, rec, ok := s.recordFor(w, r)
	if !ok {
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer part.Close()
	content, err := io.ReadAll(part)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable file part")
		return
	}

	field := fieldParam(r)
	id, _ := toInt64(rec["id"])
	s.files[fileKey(v.ID, id, field)] = file{
		name:        header.Filename,
		contentType: header.Header.Get("Content-Type"),
		content:     content,
	}
	rec[field] = header.Filename
	writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{rec}, "totalCount": 1})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, size := pageParams(r)
	writeJSON(w, http.StatusOK, map[string]any{"data": window(s.users, start, size), "totalCount": len(s.users)})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := r.URL.Query()
	if q.Get("email") == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	s.nextID++
	user := map[string]any{
		"id":        s.nextID,
		"email":     q.Get("email"),
		"firstName": q.Get("firstName"),
		"lastName":  q.Get("lastName"),
		"status":    "PENDING",
	}
	if tz := q.Get("timeZone"); tz != "" {
		user["timeZone"] = tz
	}
	s.users = append(s.users, user)
	writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{user}, "totalCount": 1})
}

func (s *Server) sortedViews() []*View {
	views := make([]*View, 0, len(s.views))
	for _, v := range s.views {
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) (*View, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "viewID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid view id")
		return nil, false
	}
	v, ok := s.views[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("View %d not found", id))
		return nil, false
	}
	return v, true
}

func (s *Server) recordFor(w http.ResponseWriter, r *http.Request) (*View, map[string]any, bool) {
	v, ok := s.view(w, r)
	if !ok {
		return nil, nil, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "recordID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid record id")
		return nil, nil, false
	}
	_, rec := findRecord(v, id)
	if rec == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Record %d not found", id))
		return nil, nil, false
	}
	return v, rec, true
}

func findRecord(v *View, id int64) (int, map[string]any) {
	for i, rec := range v.Records {
		if got, ok := toInt64(rec["id"]); ok && got == id {
			return i, rec
		}
	}
	return -1, nil
}

func decodeData(w http.ResponseWriter, r *http.Request) ([]map[string]any, bool) {
	var body struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed JSON body")
		return nil, false
	}
	var rows []map[string]any
	if err := json.Unmarshal(body.Data, &rows); err == nil {
		return rows, true
	}
	var row map[string]any
	if err := json.Unmarshal(body.Data, &row); err != nil || row == nil {
		writeError(w, http.StatusBadRequest, "data must be an object or a list of objects")
		return nil, false
	}
	return []map[string]any{row}, true
}

func writePage(w http.ResponseWriter, r *http.Request, v *View, records []map[string]any) {
	start, size := pageParams(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"structure":  structure(v),
		"data":       window(records, start, size),
		"totalCount": len(records),
	})
}

func structure(v *View) []map[string]any {
	names := map[string]bool{}
	for _, rec := range v.Records {
		for k := range rec {
			if k != "id" {
				names[k] = true
			}
		}
	}
	sorted := make([]string, 0, len(names))
	for k := range names {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	out := make([]map[string]any, 0, len(sorted))
	for _, name := range sorted {
		out = append(out, map[string]any{"name": name, "type": "shortAnswer", "canRead": true, "canUpdate": true})
	}
	return out
}

func pageParams(r *http.Request) (int, int) {
	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	size, err := strconv.Atoi(r.URL.Query().Get("max"))
	if err != nil || size <= 0 {
		size = 50
	}
	if start < 0 {
		start = 0
	}
	return start, size
}

func window(records []map[string]any, start, size int) []map[string]any {
	if start >= len(records) {
		return []map[string]any{}
	}
	end := start + size
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}

// fieldParam unescapes the field segment; chi matches on the raw path.
func fieldParam(r *http.Request) string {
	field := chi.URLParam(r, "field")
	if unescaped, err := url.PathUnescape(field); err == nil {
		return unescaped
	}
	return field
}

func fileKey(viewID, recordID int64, field string) string {
	return fmt.Sprintf("%d/%d/%s", viewID, recordID, field)
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	}
	return 0, false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
