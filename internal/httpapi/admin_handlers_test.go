package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"tallybook.org/internal/auth"
)

func TestAdminCreateUser(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "alice", "admin-pass-1")

	resp := postJSON(t, env, "/v1/admin/users",
		`{"username":"carol","password":"carol-pass-1","role_id":"role-user"}`, cookies)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var out struct {
		User auth.Identity `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.User.Username != "carol" || out.User.RoleLevel != 1 {
		t.Fatalf("unexpected user: %+v", out.User)
	}

	// The new account can log in right away.
	login(t, env, "carol", "carol-pass-1")
}

func TestAdminCreateUserDuplicateIs409(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "alice", "admin-pass-1")

	resp := postJSON(t, env, "/v1/admin/users",
		`{"username":"bob","password":"whatever-1","role_id":"role-user"}`, cookies)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestAdminCreateUserValidationIs400(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "alice", "admin-pass-1")

	for _, body := range []string{
		`{"username":"ab","password":"whatever-1","role_id":"role-user"}`,
		`{"username":"carol","password":"short","role_id":"role-user"}`,
		`{"username":"carol","password":"whatever-1","role_id":"no-such-role"}`,
	} {
		resp := postJSON(t, env, "/v1/admin/users", body, cookies)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestAdminUpdateUserRole(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "alice", "admin-pass-1")

	req, _ := http.NewRequest(http.MethodPut, env.server.URL+"/v1/admin/users/id-bob",
		jsonBody(`{"role_id":"role-admin"}`))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if env.store.users["id-bob"].RoleLevel != 2 {
		t.Fatalf("role update not applied")
	}
}

func TestAdminRenameOntoExistingUserIs409(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "alice", "admin-pass-1")

	req, _ := http.NewRequest(http.MethodPut, env.server.URL+"/v1/admin/users/id-bob",
		jsonBody(`{"username":"alice"}`))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestAdminUpdateUnknownUserIs404(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "alice", "admin-pass-1")

	req, _ := http.NewRequest(http.MethodPut, env.server.URL+"/v1/admin/users/ghost",
		jsonBody(`{"username":"renamed"}`))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAdminDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "alice", "admin-pass-1")

	req, _ := http.NewRequest(http.MethodDelete, env.server.URL+"/v1/admin/users/id-bob", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if env.store.users["id-bob"].DeletedAt == nil {
		t.Fatalf("delete must soft-delete the row")
	}

	// The deleted account cannot log in anymore.
	loginResp := postJSON(t, env, "/auth/login", `{"username":"bob","password":"user-pass-1"}`, nil)
	loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deleted user login: expected 401, got %d", loginResp.StatusCode)
	}
}

func TestAdminCannotDeleteOwnAccount(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "alice", "admin-pass-1")

	req, _ := http.NewRequest(http.MethodDelete, env.server.URL+"/v1/admin/users/id-alice", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAdminListRoles(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "alice", "admin-pass-1")

	resp := getWithCookies(t, env, "/v1/admin/roles", cookies)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Data []auth.Role `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Data) != 2 {
		t.Fatalf("expected 2 roles, got %+v", out.Data)
	}
}
