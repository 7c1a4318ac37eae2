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

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	ip := clientIP(r)
	res, err := a.limiter.Check(r.Context(), "login:"+ip, a.cfg.LoginLimit, a.cfg.LoginWindow)
	if err != nil {
		// Limiter backend failure must not lock everyone out.
		obs.LogEntry(map[string]any{
			"level": "error",
			"msg":   "rate_limit_check_failed",
			"error": err.Error(),
		})
	} else if !res.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds))
		obs.CountLogin("rate_limited")
		writeError(w, r, http.StatusTooManyRequests, "too many login attempts, retry later")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	details := map[string][]string{}
	if strings.TrimSpace(req.Username) == "" {
		details["username"] = append(details["username"], "username is required")
	}
	if req.Password == "" {
		details["password"] = append(details["password"], "password is required")
	}
	if len(details) > 0 {
		writeValidationError(w, r, details)
		return
	}

	pair, identity, err := a.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrBadCredentials):
		obs.CountLogin("failure")
		writeError(w, r, http.StatusUnauthorized, "incorrect credentials")
		return
	case err != nil:
		obs.LogEntry(map[string]any{"level": "error", "msg": "login_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	obs.CountLogin("success")
	a.audit.Record(r.Context(), audit.Entry{
		UserID:    identity.ID,
		Action:    audit.ActionLogin,
		TableName: "users",
		RecordID:  identity.ID,
		IP:        ip,
		UserAgent: r.UserAgent(),
	})
	a.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    identity,
	})
}

// handleLogout clears session cookies and always answers 200, token or
// not. Logging out an already logged-out client is not an error.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if p, ok := a.authenticate(r); ok {
		a.audit.Record(r.Context(), audit.Entry{
			UserID:    p.UserID,
			Action:    audit.ActionLogout,
			TableName: "users",
			RecordID:  p.UserID,
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
	}
	a.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token := cookieValue(r, refreshCookieName)
	if token == "" {
		obs.CountRefresh("failure")
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	pair, identity, err := a.auth.Refresh(r.Context(), token)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		obs.CountRefresh("failure")
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	case err != nil:
		obs.LogEntry(map[string]any{"level": "error", "msg": "refresh_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	obs.CountRefresh("success")
	a.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    identity,
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := auth.PayloadFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	identity, err := a.auth.Identity(r.Context(), p.UserID)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		// Token outlived the account; fail closed.
		a.clearSessionCookies(w)
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	case err != nil:
		obs.LogEntry(map[string]any{"level": "error", "msg": "me_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    identity,
	})
}
