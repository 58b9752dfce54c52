package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pilab-dev/shadow-admin/cache"
	"github.com/pilab-dev/shadow-admin/cache/bolt"
	"github.com/pilab-dev/shadow-admin/domain"
	"github.com/pilab-dev/shadow-admin/policy"
	"github.com/pilab-dev/shadow-admin/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// fakeBackend is a tiny in-memory admin API.
type fakeBackend struct {
	t *testing.T

	mu        sync.Mutex
	users     map[string]*domain.UserRecord
	passwords map[string]string
	tokens    map[string]string
	revoked   bool
	calls     []string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	phone := "555-0100"
	return &fakeBackend{
		t: t,
		users: map[string]*domain.UserRecord{
			"ada@example.com": {ID: "u1", Name: "Ada", Surname: "Lovelace", Email: "ada@example.com", Role: domain.RoleAdmin, IsActive: true},
			"bob@example.com": {ID: "u2", Name: "Bob", Email: "bob@example.com", Role: domain.RoleUser, IsActive: true, Phone: &phone},
		},
		passwords: map[string]string{"ada@example.com": "secret", "bob@example.com": "hunter2"},
		tokens:    map[string]string{},
	}
}

func (b *fakeBackend) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(b.t, json.NewEncoder(w).Encode(v))
}

func (b *fakeBackend) caller(r *http.Request) *domain.UserRecord {
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if b.revoked {
		return nil
	}
	email, ok := b.tokens[tok]
	if !ok {
		return nil
	}
	return b.users[email]
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	route := r.Method + " " + r.URL.Path
	b.calls = append(b.calls, route)

	if route == "POST /login" {
		var in struct{ Email, Password string }
		assert.NoError(b.t, json.NewDecoder(r.Body).Decode(&in))
		if pw, ok := b.passwords[in.Email]; !ok || pw != in.Password {
			b.writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid email or password"})
			return
		}
		u := b.users[in.Email]
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"userId": u.ID,
			"role":   string(u.Role),
			"exp":    time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("server-secret"))
		assert.NoError(b.t, err)
		b.tokens[tok] = in.Email
		b.writeJSON(w, http.StatusOK, map[string]string{"token": tok})
		return
	}

	u := b.caller(r)
	if u == nil {
		b.writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}

	switch route {
	case "GET /users/profile-data":
		b.writeJSON(w, http.StatusOK, u)
	case "PUT /users/profile-update":
		var in struct {
			Phone *string `json:"phone"`
		}
		assert.NoError(b.t, json.NewDecoder(r.Body).Decode(&in))
		if in.Phone != nil {
			u.Phone = in.Phone
		}
		b.writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
	case "GET /users/get-all-users":
		if u.Role != domain.RoleAdmin {
			b.writeJSON(w, http.StatusForbidden, map[string]string{"message": "Admins only"})
			return
		}
		all := []*domain.UserRecord{b.users["ada@example.com"], b.users["bob@example.com"]}
		b.writeJSON(w, http.StatusOK, all)
	case "GET /products":
		b.writeJSON(w, http.StatusOK, []domain.Product{{ID: "p1", Name: "Lamp", Price: 19.5}})
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) revokeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked = true
}

func (b *fakeBackend) count(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == route {
			n++
		}
	}
	return n
}

type testEnv struct {
	backend  *fakeBackend
	server   *httptest.Server
	boltPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	b := newFakeBackend(t)
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return &testEnv{backend: b, server: srv, boltPath: filepath.Join(t.TempDir(), "tokens.db")}
}

func (e *testEnv) execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	args = append(args,
		"--api-url", e.server.URL,
		"--token-store", "bolt",
		"--bolt-path", e.boltPath,
		"--log-level", "error",
	)
	err := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return out.String(), err
}

func (e *testEnv) storedToken(t *testing.T) (string, bool) {
	t.Helper()
	origin, err := cache.Origin(e.server.URL)
	require.NoError(t, err)
	s, err := bolt.Open(e.boltPath, origin)
	require.NoError(t, err)
	defer s.Close()
	tok, ok, err := s.Get(context.Background())
	require.NoError(t, err)
	return tok, ok
}

func (e *testEnv) login(t *testing.T, email, password string) {
	t.Helper()
	out, err := e.execute(t, "", "auth", "login", "--email", email, "--password", password)
	require.NoError(t, err)
	require.Contains(t, out, "Logged in as")
}

func TestLogin_PersistsSession(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, "", "auth", "login", "--email", "ada@example.com", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Ada Lovelace <ada@example.com> (admin).")

	_, ok := env.storedToken(t)
	assert.True(t, ok)

	out, err = env.execute(t, "", "auth", "status")
	require.NoError(t, err)

	var status struct {
		State string             `yaml:"state"`
		User  *domain.UserRecord `yaml:"user"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &status))
	assert.Equal(t, "authenticated", status.State)
	require.NotNil(t, status.User)
	assert.Equal(t, "u1", status.User.ID)
}

func TestLogin_PromptsForCredentials(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, "bob@example.com\nhunter2\n", "auth", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Bob <bob@example.com> (user).")
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.execute(t, "", "auth", "login", "--email", "ada@example.com", "--password", "nope")
	require.Error(t, err)
	assert.Equal(t, "login failed: Invalid email or password", err.Error())

	_, ok := env.storedToken(t)
	assert.False(t, ok)
}

func TestAccess_RequiresLogin(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.execute(t, "", "profile", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/profile requires login")
	assert.Zero(t, env.backend.count("GET /users/profile-data"), "no stored token means no profile call")
}

func TestAccess_AdminViews(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "bob@example.com", "hunter2")

	_, err := env.execute(t, "", "users", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/users requires admin rights")
	assert.Zero(t, env.backend.count("GET /users/get-all-users"))

	out, err := env.execute(t, "", "products", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Lamp")

	env.login(t, "ada@example.com", "secret")
	out, err = env.execute(t, "", "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "bob@example.com")
}

func TestLogout_ClearsToken(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "ada@example.com", "secret")

	out, err := env.execute(t, "", "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out.")

	_, ok := env.storedToken(t)
	assert.False(t, ok)

	_, err = env.execute(t, "", "profile", "show")
	assert.ErrorContains(t, err, "requires login")
}

func TestRevokedToken_LogsOut(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "ada@example.com", "secret")
	env.backend.revokeAll()

	_, err := env.execute(t, "", "products", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires login")

	_, ok := env.storedToken(t)
	assert.False(t, ok, "a rejected token must be forgotten")
}

func TestProfileUpdate_RefreshesSession(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "bob@example.com", "hunter2")
	before := env.backend.count("GET /users/profile-data")

	out, err := env.execute(t, "", "profile", "update", "--phone", "555-0199")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile updated.")
	assert.Contains(t, out, "555-0199")

	// One fetch restoring the session, one after the update.
	assert.Equal(t, before+2, env.backend.count("GET /users/profile-data"))
}

func TestProfileUpdate_NothingToDo(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "bob@example.com", "hunter2")

	_, err := env.execute(t, "", "profile", "update")
	assert.ErrorContains(t, err, "nothing to update")
	assert.Zero(t, env.backend.count("PUT /users/profile-update"))
}

func TestRouteCheck(t *testing.T) {
	env := newTestEnv(t)

	testCases := []struct {
		name     string
		email    string
		password string
		path     string
		decision string
	}{
		{"anonymous admin view", "", "", "/users", "redirect /login (from /users)"},
		{"anonymous public view", "", "", "/forgot-password", "allow"},
		{"anonymous unknown view", "", "", "/nowhere", "redirect /login"},
		{"member admin view", "bob@example.com", "hunter2", "/", "redirect /profile (from /)"},
		{"member own view", "bob@example.com", "hunter2", "/settings", "allow"},
		{"admin admin view", "ada@example.com", "secret", "/users/add", "allow"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.email == "" {
				_, err := env.execute(t, "", "auth", "logout")
				require.NoError(t, err)
			} else {
				env.login(t, tc.email, tc.password)
			}

			out, err := env.execute(t, "", "route", "check", tc.path)
			require.NoError(t, err)

			var v routeView
			require.NoError(t, yaml.Unmarshal([]byte(out), &v))
			assert.Equal(t, tc.decision, v.Decision)
		})
	}
}

func TestRouteList(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, "", "route", "list")
	require.NoError(t, err)

	var routes map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &routes))
	assert.Equal(t, "admin", routes["/users"])
	assert.Equal(t, "public", routes["/login"])
	assert.Equal(t, "authenticated", routes["/products"])
	assert.Zero(t, env.backend.count("GET /users/profile-data"))
}

func TestInvalidConfig(t *testing.T) {
	env := newTestEnv(t)

	var out, errOut bytes.Buffer
	err := run(context.Background(),
		[]string{"auth", "status", "--api-url", env.server.URL, "--token-store", "floppy"},
		strings.NewReader(""), &out, &errOut)
	assert.ErrorContains(t, err, "unknown token_store")

	err = run(context.Background(),
		[]string{"auth", "status", "--api-url", "not a url", "--token-store", "memory"},
		strings.NewReader(""), &out, &errOut)
	assert.ErrorContains(t, err, "invalid api_base_url")
}

func TestAccessDenied_Messages(t *testing.T) {
	var p policy.Policy

	err := newAccessDenied(p, "/profile", p.Evaluate(policy.RequireAuthenticated, nil, "/profile"))
	assert.EqualError(t, err, "/profile requires login: run 'adminctl auth login'")

	user := session.Snapshot{State: session.StateAuthenticated, User: &domain.UserRecord{ID: "u2", Role: domain.RoleUser}}
	err = newAccessDenied(p, "/users", p.Evaluate(policy.RequireAdmin, user, "/users"))
	assert.EqualError(t, err, "/users requires admin rights (redirected to /profile)")
}

func TestFlags_OverrideInvalidEnv(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("ADMIN_TOKEN_STORE", "floppy")

	_, err := env.execute(t, "", "route", "list")
	require.NoError(t, err)
}

func TestFlags_BoltPathExpandsEnv(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	t.Setenv("ADMINCTL_TEST_DIR", dir)
	env.boltPath = "$ADMINCTL_TEST_DIR/tokens.db"

	env.login(t, "ada@example.com", "secret")

	_, err := os.Stat(filepath.Join(dir, "tokens.db"))
	require.NoError(t, err)
}

func TestAuditLog_RecordsTransitions(t *testing.T) {
	env := newTestEnv(t)
	auditPath := filepath.Join(t.TempDir(), "audit.log")
	t.Setenv("ADMIN_AUDIT_LOG", auditPath)

	env.login(t, "ada@example.com", "secret")
	_, err := env.execute(t, "", "auth", "logout")
	require.NoError(t, err)

	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `"action":"session.unauthenticated"`)
	assert.Contains(t, text, `"action":"session.authenticated"`)
	assert.Contains(t, text, `"user":"u1"`)
}
