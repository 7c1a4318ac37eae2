package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tallybook.org/internal/audit"
	"tallybook.org/internal/auth"
	"tallybook.org/internal/obs"
)

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	RoleID   string `json:"role_id"`
}

type updateUserRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	RoleID   *string `json:"role_id"`
}

func (a *API) handleAdminUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := a.auth.ListUsers(r.Context())
		if err != nil {
			obs.LogEntry(map[string]any{"level": "error", "msg": "list_users_failed", "error": err.Error()})
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": users})
	case http.MethodPost:
		a.createUser(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	identity, err := a.auth.CreateUser(r.Context(), req.Username, req.Password, req.RoleID)
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "username already taken")
		return
	case err != nil:
		obs.LogEntry(map[string]any{"level": "error", "msg": "create_user_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.recordChange(r, audit.ActionCreate, "users", identity.ID, map[string]any{
		"username": identity.Username,
		"role":     identity.Role,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user": identity})
}

func (a *API) handleAdminUserResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/admin/users/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		a.updateUser(w, r, id)
	case http.MethodDelete:
		a.deleteUser(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	err := a.auth.UpdateUser(r.Context(), id, req.Username, req.Password, req.RoleID)
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "username already taken")
		return
	case err != nil:
		obs.LogEntry(map[string]any{"level": "error", "msg": "update_user_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	changes := map[string]any{}
	if req.Username != nil {
		changes["username"] = *req.Username
	}
	if req.Password != nil {
		changes["password"] = "[redacted]"
	}
	if req.RoleID != nil {
		changes["role_id"] = *req.RoleID
	}
	a.recordChange(r, audit.ActionUpdate, "users", id, changes)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	if p, ok := auth.PayloadFromContext(r.Context()); ok && p.UserID == id {
		writeError(w, r, http.StatusBadRequest, "cannot delete own account")
		return
	}
	err := a.auth.DeleteUser(r.Context(), id)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	case err != nil:
		obs.LogEntry(map[string]any{"level": "error", "msg": "delete_user_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.recordChange(r, audit.ActionDelete, "users", id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := a.audit.History(r.Context(), userID, limit)
	if err != nil {
		obs.LogEntry(map[string]any{"level": "error", "msg": "list_audit_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": entries})
}

func (a *API) handleAdminRoles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	roles, err := a.auth.ListRoles(r.Context())
	if err != nil {
		obs.LogEntry(map[string]any{"level": "error", "msg": "list_roles_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": roles})
}
