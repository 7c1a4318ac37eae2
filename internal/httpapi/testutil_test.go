package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tallybook.org/internal/audit"
	"tallybook.org/internal/auth"
	"tallybook.org/internal/books"
	"tallybook.org/internal/ratelimit"
)

// memAuthStore is a minimal auth.Store for handler tests.
type memAuthStore struct {
	mu    sync.Mutex
	users map[string]*auth.User
	roles map[string]*auth.Role
}

func newMemAuthStore() *memAuthStore {
	return &memAuthStore{
		users: map[string]*auth.User{},
		roles: map[string]*auth.Role{
			"role-user":  {ID: "role-user", Name: "user", Level: 1},
			"role-admin": {ID: "role-admin", Name: "admin", Level: 2},
		},
	}
}

func (s *memAuthStore) Users(context.Context) auth.UserStore { return (*memUserStore)(s) }
func (s *memAuthStore) Roles(context.Context) auth.RoleStore { return (*memRoleStore)(s) }

type memUserStore memAuthStore

func (s *memUserStore) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *memUserStore) Find(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, auth.ErrNotFound
	}
	return u, nil
}

func (s *memUserStore) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username && u.DeletedAt == nil {
			return u, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memUserStore) List(context.Context) ([]*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.User
	for _, u := range s.users {
		if u.DeletedAt == nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *memUserStore) Update(_ context.Context, id string, upd auth.UserUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return auth.ErrNotFound
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.RoleID != nil {
		u.RoleID = *upd.RoleID
		if role, ok := s.roles[*upd.RoleID]; ok {
			u.RoleName = role.Name
			u.RoleLevel = role.Level
		}
	}
	return nil
}

func (s *memUserStore) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return auth.ErrNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

func (s *memUserStore) Settings(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, auth.ErrNotFound
	}
	return u.Settings, nil
}

func (s *memUserStore) UpdateSettings(_ context.Context, id string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return auth.ErrNotFound
	}
	u.Settings = raw
	return nil
}

type memRoleStore memAuthStore

func (s *memRoleStore) Find(_ context.Context, id string) (*auth.Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return role, nil
}

func (s *memRoleStore) List(context.Context) ([]*auth.Role, error) {
	return []*auth.Role{s.roles["role-user"], s.roles["role-admin"]}, nil
}

// memBooksStore keeps entries in slices.
type memBooksStore struct {
	mu        sync.Mutex
	revenues  []books.Revenue
	purchases []books.Purchase
}

func (s *memBooksStore) Revenues(context.Context) books.RevenueStore   { return (*memRevenueStore)(s) }
func (s *memBooksStore) Purchases(context.Context) books.PurchaseStore { return (*memPurchaseStore)(s) }

type memRevenueStore memBooksStore

func (s *memRevenueStore) Create(_ context.Context, r *books.Revenue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = "rev-" + r.Date
	}
	s.revenues = append(s.revenues, *r)
	return nil
}

func (s *memRevenueStore) List(_ context.Context, month string) ([]books.Revenue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []books.Revenue
	for _, r := range s.revenues {
		if month == "" || strings.HasPrefix(r.Date, month) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memRevenueStore) DeleteAll(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.revenues))
	s.revenues = nil
	return n, nil
}

type memPurchaseStore memBooksStore

func (s *memPurchaseStore) Create(_ context.Context, p *books.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = "pur-" + p.Date
	}
	s.purchases = append(s.purchases, *p)
	return nil
}

func (s *memPurchaseStore) List(_ context.Context, month string) ([]books.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []books.Purchase
	for _, p := range s.purchases {
		if month == "" || strings.HasPrefix(p.Date, month) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memPurchaseStore) DeleteAll(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.purchases))
	s.purchases = nil
	return n, nil
}

type testEnv struct {
	api    *API
	store  *memAuthStore
	books  *memBooksStore
	server *httptest.Server
}

func seedTestUser(t *testing.T, store *memAuthStore, username, password, roleID string) *auth.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	role := store.roles[roleID]
	u := &auth.User{
		ID:           "id-" + username,
		Username:     username,
		PasswordHash: hash,
		RoleID:       role.ID,
		RoleName:     role.Name,
		RoleLevel:    role.Level,
	}
	store.users[u.ID] = u
	return u
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemAuthStore()
	seedTestUser(t, store, "alice", "admin-pass-1", "role-admin")
	seedTestUser(t, store, "bob", "user-pass-1", "role-user")

	tokens, err := auth.NewTokens("test-access-secret", "test-refresh-secret")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	svc, err := auth.NewService(store, tokens)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	bookStore := &memBooksStore{}
	api := New(Config{
		Version:     "test",
		LoginLimit:  5,
		LoginWindow: 15 * time.Minute,
	}, svc, bookStore, audit.NewRecorder(nil), ratelimit.New(ratelimit.NewMemoryStore()), ReadyProbe{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	server := httptest.NewServer(api.Handler(ctx))
	t.Cleanup(server.Close)

	return &testEnv{api: api, store: store, books: bookStore, server: server}
}

func login(t *testing.T, env *testEnv, username, password string) []*http.Cookie {
	t.Helper()
	resp := postJSON(t, env, "/auth/login", `{"username":"`+username+`","password":"`+password+`"}`, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login returned %d", resp.StatusCode)
	}
	return resp.Cookies()
}

func postJSON(t *testing.T, env *testEnv, path, body string, cookies []*http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, env.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	return resp
}

func getWithCookies(t *testing.T, env *testEnv, path string, cookies []*http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, env.server.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	return resp
}

func jsonBody(body string) *strings.Reader {
	return strings.NewReader(body)
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
