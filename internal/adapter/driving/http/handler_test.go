package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	httphandler "github.com/ericfisherdev/passpanel/internal/adapter/driving/http"
	"github.com/ericfisherdev/passpanel/internal/application"
	"github.com/ericfisherdev/passpanel/internal/domain/model"
	"github.com/ericfisherdev/passpanel/internal/domain/port/driven"
)

const testSecret = "correct horse"

// --- Mock implementations ---

type mockCredentialStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.Credential
	err    error
}

func newMockCredentialStore(seed ...model.Credential) *mockCredentialStore {
	m := &mockCredentialStore{rows: make(map[int64]model.Credential)}
	for _, c := range seed {
		if _, err := m.Create(context.Background(), c); err != nil {
			panic(err)
		}
	}
	return m
}

func (m *mockCredentialStore) Create(_ context.Context, c model.Credential) (model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Credential{}, m.err
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return model.Credential{}, err
	}
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	m.rows[c.ID] = c
	return c, nil
}

func (m *mockCredentialStore) Get(_ context.Context, id int64) (model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.Credential{}, m.err
	}
	c, ok := m.rows[id]
	if !ok {
		return model.Credential{}, fmt.Errorf("get credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	return c, nil
}

func (m *mockCredentialStore) Search(_ context.Context, sc model.SearchCriteria) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Credential
	for _, c := range m.sortedLocked() {
		if sc.Status != "" && c.Status != sc.Status {
			continue
		}
		if sc.Term != "" && !strings.Contains(strings.ToLower(c.WebsiteName), strings.ToLower(sc.Term)) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCredentialStore) Update(_ context.Context, id int64, changes model.Changes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("update credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	if err := changes.Apply(&c); err != nil {
		return err
	}
	m.rows[id] = c
	return nil
}

func (m *mockCredentialStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.rows[id]; !ok {
		return fmt.Errorf("delete credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	delete(m.rows, id)
	return nil
}

func (m *mockCredentialStore) ListAll(_ context.Context) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.sortedLocked(), nil
}

func (m *mockCredentialStore) sortedLocked() []model.Credential {
	out := make([]model.Credential, 0, len(m.rows))
	for id := int64(1); id <= m.nextID; id++ {
		if c, ok := m.rows[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

type mockSessionStore struct {
	mu     sync.Mutex
	tokens map[string]bool
}

func (m *mockSessionStore) Create(_ context.Context, token string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = true
	return nil
}

func (m *mockSessionStore) Touch(_ context.Context, token string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tokens[token] {
		return driven.ErrSessionNotFound
	}
	return nil
}

func (m *mockSessionStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

// --- Test helpers ---

type testServer struct {
	handler http.Handler
	store   *mockCredentialStore
	gate    *application.AccessGate
	health  *application.HealthService
}

func setupServer(t *testing.T, seed ...model.Credential) *testServer {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testSecret), bcrypt.MinCost)
	require.NoError(t, err)
	gate, err := application.NewAccessGate("", string(hash), &mockSessionStore{tokens: map[string]bool{}}, time.Hour)
	require.NoError(t, err)

	store := newMockCredentialStore(seed...)
	health := application.NewHealthService()
	h := httphandler.NewHandler(application.NewCredentialService(store), gate, health, false, slog.Default())
	return &testServer{
		handler: httphandler.NewServeMux(h, slog.Default()),
		store:   store,
		gate:    gate,
		health:  health,
	}
}

func (s *testServer) token(t *testing.T) string {
	t.Helper()
	token, err := s.gate.Login(context.Background(), testSecret)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Authorization", "Bearer "+s.token(t))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func sample(name, user string) model.Credential {
	return model.Credential{
		WebsiteName: name,
		WebsiteLink: "https://" + strings.ToLower(name) + ".com",
		Username:    user,
		Password:    "pw",
	}
}

// --- Tests ---

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	srv := setupServer(t)
	srv.health.Register("database", pingerFunc(func(context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.HealthResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]string{"database": "ok"}, resp.Components)
}

func TestHealth_Degraded(t *testing.T) {
	srv := setupServer(t)
	srv.health.Register("database", pingerFunc(func(context.Context) error { return nil }))
	srv.health.Register("sessions", pingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") }))

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp httphandler.HealthResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unreachable", resp.Components["sessions"])
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"correct secret", `{"secret":"correct horse"}`, http.StatusOK},
		{"wrong secret", `{"secret":"battery staple"}`, http.StatusUnauthorized},
		{"malformed body", `{"secret":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := setupServer(t)
			rec := httptest.NewRecorder()
			srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				assert.Empty(t, rec.Result().Cookies())
				return
			}
			var resp httphandler.LoginResponse
			decodeJSON(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
			assert.Equal(t, 3600, resp.ExpiresIn)

			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, application.SessionCookieName, cookies[0].Name)
			assert.Equal(t, resp.Token, cookies[0].Value)
			assert.True(t, cookies[0].HttpOnly)
		})
	}
}

func TestCredentials_RequireSession(t *testing.T) {
	srv := setupServer(t, sample("Google", "alice"))

	for _, target := range []string{"/api/v1/credentials", "/api/v1/credentials/1", "/api/v1/credentials/export"} {
		rec := httptest.NewRecorder()
		srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credentials", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCredentials_SessionCookie(t *testing.T) {
	srv := setupServer(t, sample("Google", "alice"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credentials", nil)
	req.AddCookie(&http.Cookie{Name: application.SessionCookieName, Value: srv.token(t)})
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogout(t *testing.T) {
	srv := setupServer(t)
	token := srv.token(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/logout", nil)
	req.AddCookie(&http.Cookie{Name: application.SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, srv.gate.Authenticated(context.Background(), token))
}

func TestListCredentials(t *testing.T) {
	srv := setupServer(t, sample("Google", "alice"), sample("GitHub", "bob"))

	t.Run("no parameters lists all", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/api/v1/credentials", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp []httphandler.CredentialResponse
		decodeJSON(t, rec, &resp)
		require.Len(t, resp, 2)
		assert.Equal(t, "Google", resp[0].WebsiteName)
		assert.Equal(t, "2026-02-01T09:30:00Z", resp[0].CreatedAt)
	})

	t.Run("term search", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/api/v1/credentials?q=goog", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp []httphandler.CredentialResponse
		decodeJSON(t, rec, &resp)
		require.Len(t, resp, 1)
		assert.Equal(t, "alice", resp[0].Username)
	})

	t.Run("no matches is an empty array", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/api/v1/credentials?q=nothing", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("invalid status", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/api/v1/credentials?status=paused", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("status filter is case-insensitive", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/api/v1/credentials?status=on%20hold", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func TestGetCredential(t *testing.T) {
	srv := setupServer(t, sample("Google", "alice"))

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"found", "/api/v1/credentials/1", http.StatusOK},
		{"not found", "/api/v1/credentials/99", http.StatusNotFound},
		{"non-numeric id", "/api/v1/credentials/abc", http.StatusBadRequest},
		{"zero id", "/api/v1/credentials/0", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCreateCredential(t *testing.T) {
	srv := setupServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/credentials",
		`{"website_name":"Example","website_link":"https://example.com","username":"u1","password":"p1"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp httphandler.CredentialResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, "Active", resp.Status)
}

func TestCreateCredential_ValidationError(t *testing.T) {
	srv := setupServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/credentials", `{"website_name":"Example","status":"paused"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	decodeJSON(t, rec, &resp)
	assert.Contains(t, resp.Fields, "website_link")
	assert.Contains(t, resp.Fields, "username")
	assert.Contains(t, resp.Fields, "password")
	assert.Contains(t, resp.Fields, "status")
	assert.NotContains(t, resp.Fields, "website_name")
	assert.Empty(t, srv.store.rows)
}

func TestUpdateCredential(t *testing.T) {
	srv := setupServer(t, sample("Google", "alice"))

	rec := srv.do(t, http.MethodPatch, "/api/v1/credentials/1", `{"password":"new-pw","status":"deactivated"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.CredentialResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "new-pw", resp.Password)
	assert.Equal(t, "Deactivated", resp.Status)
	assert.Equal(t, "alice", resp.Username)
}

func TestUpdateCredential_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
	}{
		{"unknown field", "/api/v1/credentials/1", `{"colour":"blue"}`, http.StatusBadRequest},
		{"empty required", "/api/v1/credentials/1", `{"username":"  "}`, http.StatusBadRequest},
		{"non-string value", "/api/v1/credentials/1", `{"username":5}`, http.StatusBadRequest},
		{"missing id", "/api/v1/credentials/42", `{"username":"x"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := setupServer(t, sample("Google", "alice"))
			rec := srv.do(t, http.MethodPatch, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "alice", srv.store.rows[1].Username)
		})
	}
}

func TestDeleteCredential(t *testing.T) {
	srv := setupServer(t, sample("Google", "alice"))

	rec := srv.do(t, http.MethodDelete, "/api/v1/credentials/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodDelete, "/api/v1/credentials/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportCredentials(t *testing.T) {
	srv := setupServer(t, sample("Google", "alice"))

	rec := srv.do(t, http.MethodGet, "/api/v1/credentials/export", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="data.csv"`)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(application.CSVHeader(), ","), lines[0])
}

func TestStoreFailure_GenericError(t *testing.T) {
	srv := setupServer(t)
	srv.store.err = errors.New("disk I/O error: /var/lib/passpanel.db")

	rec := srv.do(t, http.MethodGet, "/api/v1/credentials", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk")
}

func TestRecoveryMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}
