package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"tallybook.org/internal/audit"
	"tallybook.org/internal/auth"
	"tallybook.org/internal/books"
	"tallybook.org/internal/obs"
	"tallybook.org/internal/ratelimit"
)

// ReadyProbe reports backend readiness (DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config carries the HTTP-layer knobs.
type Config struct {
	Version           string
	SecureCookies     bool
	AllowedOrigins    []string
	LoginLimit        int
	LoginWindow       time.Duration
	MaxBodyBytes      int64
	ThrottlePerSecond int
	ThrottleBurst     int
}

// API is the HTTP layer over the auth core and the bookkeeping stores.
type API struct {
	mux        *http.ServeMux
	cfg        Config
	auth       *auth.Service
	books      books.Store
	audit      *audit.Recorder
	limiter    *ratelimit.Limiter
	readyProbe ReadyProbe
}

// New wires routes. All /auth/me and /v1 routes sit behind the auth gate;
// admin routes additionally require role level >= 2.
func New(cfg Config, authSvc *auth.Service, bookStore books.Store, recorder *audit.Recorder, limiter *ratelimit.Limiter, probe ReadyProbe) *API {
	if cfg.LoginLimit <= 0 {
		cfg.LoginLimit = 5
	}
	if cfg.LoginWindow <= 0 {
		cfg.LoginWindow = 15 * time.Minute
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if recorder == nil {
		recorder = audit.NewRecorder(nil)
	}
	if limiter == nil {
		limiter = ratelimit.New(nil)
	}
	a := &API{
		mux:        http.NewServeMux(),
		cfg:        cfg,
		auth:       authSvc,
		books:      bookStore,
		audit:      recorder,
		limiter:    limiter,
		readyProbe: probe,
	}

	a.mux.HandleFunc("/healthz", a.healthz)
	a.mux.HandleFunc("/readyz", a.ready)
	a.mux.HandleFunc("/v1/info", a.info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/auth/login", a.handleLogin)
	a.mux.HandleFunc("/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/auth/me", a.handleMe)

	a.mux.HandleFunc("/v1/revenues", a.handleRevenues)
	a.mux.HandleFunc("/v1/purchases", a.handlePurchases)
	a.mux.HandleFunc("/v1/reports/daily", a.handleDailyReport)
	a.mux.HandleFunc("/v1/settings", a.handleSettings)

	admin := RequireLevel(auth.AdminLevel)
	a.mux.Handle("/v1/admin/users", admin(http.HandlerFunc(a.handleAdminUsersCollection)))
	a.mux.Handle("/v1/admin/users/", admin(http.HandlerFunc(a.handleAdminUserResource)))
	a.mux.Handle("/v1/admin/roles", admin(http.HandlerFunc(a.handleAdminRoles)))
	a.mux.Handle("/v1/admin/audit", admin(http.HandlerFunc(a.handleAdminAudit)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux. ctx bounds
// the throttle janitor goroutine.
func (a *API) Handler(ctx context.Context) http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	if a.cfg.ThrottlePerSecond > 0 {
		h = Throttle(ctx, h, a.cfg.ThrottleBurst, a.cfg.ThrottlePerSecond)
	}
	h = MaxBodyBytes(h, a.cfg.MaxBodyBytes)
	h = CSRFOriginCheck(h, a.cfg.AllowedOrigins)
	h = CORS(h, a.cfg.AllowedOrigins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- service handlers ---

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tallybook-api",
		"version": a.cfg.Version,
	})
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "tallybook-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.cfg.Version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func writeValidationError(w http.ResponseWriter, r *http.Request, details map[string][]string) {
	payload := map[string]any{
		"error":   "invalid input",
		"details": details,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, http.StatusBadRequest, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
