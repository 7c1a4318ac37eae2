// Package client is the Go SDK for the tallybook API. It owns the
// session lifecycle the way a browser front end would: cookie storage,
// the mount-time auth check, transparent refresh on 401, and a
// background keep-alive loop.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Session states.
type State int

const (
	StateLoading State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrSessionExpired means a request failed with 401 and the
	// follow-up refresh could not restore the session.
	ErrSessionExpired = errors.New("client: session expired")
	// ErrBadCredentials is returned by Login on a 401.
	ErrBadCredentials = errors.New("client: incorrect credentials")
	// ErrRateLimited is returned by Login on a 429.
	ErrRateLimited = errors.New("client: too many attempts")
)

// User mirrors the identity payload the API returns.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	RoleLevel int    `json:"role_level"`
}

// Client talks to one tallybook API instance. Safe for concurrent use.
type Client struct {
	base *url.URL
	http *http.Client

	mu    sync.RWMutex
	state State
	user  *User

	refreshGroup singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying transport. A cookie jar is
// installed if the given client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout caps each request round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New builds a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.New("client: base url must be absolute")
	}
	c := &Client{
		base:  base,
		http:  &http.Client{Timeout: 10 * time.Second},
		state: StateLoading,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("client: cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// State returns the current session state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// User returns the authenticated user, or nil.
func (c *Client) User() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Client) setSession(user *User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if user == nil {
		c.state = StateUnauthenticated
		c.user = nil
		return
	}
	c.state = StateAuthenticated
	c.user = user
}

// Start runs the mount-time check: probe the session with /auth/me,
// and if the access token has lapsed, try one refresh before settling
// on unauthenticated. Never returns a transport error as fatal; the
// session just ends up unauthenticated.
func (c *Client) Start(ctx context.Context) State {
	user, err := c.fetchMe(ctx)
	if err == nil {
		c.setSession(user)
		return StateAuthenticated
	}
	if _, err := c.refresh(ctx); err != nil {
		c.setSession(nil)
		return StateUnauthenticated
	}
	user, err = c.fetchMe(ctx)
	if err != nil {
		c.setSession(nil)
		return StateUnauthenticated
	}
	c.setSession(user)
	return StateAuthenticated
}

// Login authenticates and moves the session to authenticated on
// success. On 401 the prior session state is kept as-is.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	resp, err := c.post(ctx, "/auth/login", body)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrBadCredentials
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w (retry after %s)", ErrRateLimited, resp.Header.Get("Retry-After"))
	default:
		return nil, apiError(resp)
	}
	var out struct {
		User *User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("client: decode login response: %w", err)
	}
	c.setSession(out.User)
	return out.User, nil
}

// Logout ends the session locally first, then tells the server. A
// server error does not resurrect the local session.
func (c *Client) Logout(ctx context.Context) error {
	c.setSession(nil)
	resp, err := c.post(ctx, "/auth/logout", nil)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// Refresh rotates the token pair explicitly. Concurrent callers share
// one in-flight refresh.
func (c *Client) Refresh(ctx context.Context) (*User, error) {
	return c.refresh(ctx)
}

func (c *Client) refresh(ctx context.Context) (*User, error) {
	v, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		resp, err := c.post(ctx, "/auth/refresh", nil)
		if err != nil {
			return nil, err
		}
		defer drain(resp)
		if resp.StatusCode != http.StatusOK {
			return nil, ErrSessionExpired
		}
		var out struct {
			User *User `json:"user"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("client: decode refresh response: %w", err)
		}
		return out.User, nil
	})
	if err != nil {
		return nil, err
	}
	user := v.(*User)
	c.setSession(user)
	return user, nil
}

// Me fetches the current identity from the server.
func (c *Client) Me(ctx context.Context) (*User, error) {
	user, err := c.fetchMe(ctx)
	if err != nil {
		return nil, err
	}
	c.setSession(user)
	return user, nil
}

func (c *Client) fetchMe(ctx context.Context) (*User, error) {
	resp, err := c.get(ctx, "/auth/me")
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var out struct {
		User *User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("client: decode me response: %w", err)
	}
	return out.User, nil
}

// Do performs an authenticated API request. On a 401 it refreshes the
// session (coalesced across goroutines) and retries exactly once; if
// the retry still fails, the session is marked unauthenticated and
// ErrSessionExpired is returned.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	status, err := c.doJSON(ctx, method, path, body, out)
	if err != nil {
		return err
	}
	if status != http.StatusUnauthorized {
		return nil
	}
	if _, err := c.refresh(ctx); err != nil {
		c.setSession(nil)
		return ErrSessionExpired
	}
	status, err = c.doJSON(ctx, method, path, body, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.setSession(nil)
		return ErrSessionExpired
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) (int, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), payload)
	if err != nil {
		return 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer drain(resp)
	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, nil
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, apiError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("client: decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// AutoRefresh rotates tokens on the given interval until ctx ends. A
// failed rotation forces a local logout so callers observe the state
// change instead of silently holding dead cookies.
func (c *Client) AutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.State() != StateAuthenticated {
				continue
			}
			if _, err := c.refresh(ctx); err != nil {
				c.setSession(nil)
			}
		}
	}
}

// Snapshot captures the non-sensitive session view for caching. Tokens
// stay in the cookie jar and are never exported.
type Snapshot struct {
	State State `json:"state"`
	User  *User `json:"user,omitempty"`
}

func (c *Client) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{State: c.state}
	if c.user != nil {
		u := *c.user
		snap.User = &u
	}
	return snap
}

// Restore seeds the in-memory view from a snapshot. The next Start or
// Do call validates it against the server.
func (c *Client) Restore(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = snap.State
	c.user = nil
	if snap.User != nil {
		u := *snap.User
		c.user = &u
	}
}

func (c *Client) endpoint(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.base.String() + path
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		payload = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), payload)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

func apiError(resp *http.Response) error {
	var out struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&out)
	if out.Error == "" {
		out.Error = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("client: %s: %s", resp.Status, out.Error)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
}
