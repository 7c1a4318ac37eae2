package httpapi

import (
	"net/http"
	"strings"
	"time"

	"tallybook.org/internal/auth"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

var publicPaths = map[string]struct{}{
	"/":             {},
	"/healthz":      {},
	"/readyz":       {},
	"/metrics":      {},
	"/v1/info":      {},
	"/auth/login":   {},
	"/auth/logout":  {},
	"/auth/refresh": {},
}

// withAuth is the gate: every non-public route requires a valid access
// token cookie. Any verification failure fails closed with 401.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := publicPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}
		p, ok := a.authenticate(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPayload(r.Context(), p)))
	})
}

func (a *API) authenticate(r *http.Request) (auth.Payload, bool) {
	c, err := r.Cookie(accessCookieName)
	if err != nil || c.Value == "" {
		return auth.Payload{}, false
	}
	p, err := a.auth.VerifyAccess(c.Value)
	if err != nil {
		return auth.Payload{}, false
	}
	return p, true
}

// RequireLevel distinguishes missing identity (401) from insufficient
// privilege (403).
func RequireLevel(level int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PayloadFromContext(r.Context())
			if !ok || p.UserID == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !auth.HasRequiredLevel(p, level) {
				writeError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *API) setSessionCookies(w http.ResponseWriter, pair auth.Pair) {
	http.SetCookie(w, a.sessionCookie(accessCookieName, pair.Access, a.auth.Tokens().TTL(auth.KindAccess)))
	http.SetCookie(w, a.sessionCookie(refreshCookieName, pair.Refresh, a.auth.Tokens().TTL(auth.KindRefresh)))
}

func (a *API) clearSessionCookies(w http.ResponseWriter) {
	access := a.sessionCookie(accessCookieName, "", 0)
	access.MaxAge = -1
	refresh := a.sessionCookie(refreshCookieName, "", 0)
	refresh.MaxAge = -1
	http.SetCookie(w, access)
	http.SetCookie(w, refresh)
}

func (a *API) sessionCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
