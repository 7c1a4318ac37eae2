package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"tallybook.org/internal/audit"
	"tallybook.org/internal/auth"
	"tallybook.org/internal/books"
	"tallybook.org/internal/obs"
)

func (a *API) handleRevenues(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listRevenues(w, r)
	case http.MethodPost:
		a.createRevenue(w, r)
	case http.MethodDelete:
		a.deleteAllRevenues(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) listRevenues(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month != "" {
		if err := books.ValidateMonth(month); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	entries, err := a.books.Revenues(r.Context()).List(r.Context(), month)
	if err != nil {
		obs.LogEntry(map[string]any{"level": "error", "msg": "list_revenues_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": entries})
}

func (a *API) createRevenue(w http.ResponseWriter, r *http.Request) {
	var entry books.Revenue
	if err := decodeJSON(w, r, &entry); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := entry.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.books.Revenues(r.Context()).Create(r.Context(), &entry); err != nil {
		obs.LogEntry(map[string]any{"level": "error", "msg": "create_revenue_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.recordChange(r, audit.ActionCreate, "revenues", entry.ID, map[string]any{"date": entry.Date, "ttc": entry.TTC})
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": entry})
}

func (a *API) deleteAllRevenues(w http.ResponseWriter, r *http.Request) {
	n, err := a.books.Revenues(r.Context()).DeleteAll(r.Context())
	if err != nil {
		obs.LogEntry(map[string]any{"level": "error", "msg": "delete_revenues_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.recordChange(r, audit.ActionDelete, "revenues", "", map[string]any{"deleted": n})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": n})
}

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listPurchases(w, r)
	case http.MethodPost:
		a.createPurchase(w, r)
	case http.MethodDelete:
		a.deleteAllPurchases(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) listPurchases(w http.ResponseWriter, r *http.Request) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month != "" {
		if err := books.ValidateMonth(month); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	entries, err := a.books.Purchases(r.Context()).List(r.Context(), month)
	if err != nil {
		obs.LogEntry(map[string]any{"level": "error", "msg": "list_purchases_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": entries})
}

func (a *API) createPurchase(w http.ResponseWriter, r *http.Request) {
	var entry books.Purchase
	if err := decodeJSON(w, r, &entry); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := entry.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.books.Purchases(r.Context()).Create(r.Context(), &entry); err != nil {
		obs.LogEntry(map[string]any{"level": "error", "msg": "create_purchase_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.recordChange(r, audit.ActionCreate, "purchases", entry.ID, map[string]any{"date": entry.Date, "ttc": entry.TTC})
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": entry})
}

func (a *API) deleteAllPurchases(w http.ResponseWriter, r *http.Request) {
	n, err := a.books.Purchases(r.Context()).DeleteAll(r.Context())
	if err != nil {
		obs.LogEntry(map[string]any{"level": "error", "msg": "delete_purchases_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.recordChange(r, audit.ActionDelete, "purchases", "", map[string]any{"deleted": n})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": n})
}

func (a *API) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if err := books.ValidateMonth(month); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	hideSundays := r.URL.Query().Get("hide_sundays") != "false"
	entries, err := a.books.Revenues(r.Context()).List(r.Context(), month)
	if err != nil {
		obs.LogEntry(map[string]any{"level": "error", "msg": "daily_report_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	stats, err := books.CalculateDailyStats(entries, month, hideSundays)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": stats})
}

type userSettings struct {
	Theme       string `json:"theme"`
	HideSundays bool   `json:"hide_sundays"`
}

func defaultSettings() userSettings {
	return userSettings{Theme: "system", HideSundays: true}
}

var validThemes = map[string]struct{}{"light": {}, "dark": {}, "system": {}}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PayloadFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	switch r.Method {
	case http.MethodGet:
		settings, err := a.loadSettings(r, p.UserID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": settings})
	case http.MethodPut:
		a.updateSettings(w, r, p.UserID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

// loadSettings merges stored values over defaults so new keys pick up
// their default for existing accounts.
func (a *API) loadSettings(r *http.Request, userID string) (userSettings, error) {
	settings := defaultSettings()
	raw, err := a.auth.Settings(r.Context(), userID)
	if err != nil && !errors.Is(err, auth.ErrNotFound) {
		obs.LogEntry(map[string]any{"level": "error", "msg": "load_settings_failed", "error": err.Error()})
		return settings, err
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &settings)
	}
	return settings, nil
}

type settingsUpdate struct {
	Theme       *string `json:"theme"`
	HideSundays *bool   `json:"hide_sundays"`
}

func (a *API) updateSettings(w http.ResponseWriter, r *http.Request, userID string) {
	var req settingsUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Theme != nil {
		if _, ok := validThemes[*req.Theme]; !ok {
			writeError(w, r, http.StatusBadRequest, "theme must be one of light, dark, system")
			return
		}
	}
	settings, err := a.loadSettings(r, userID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if req.Theme != nil {
		settings.Theme = *req.Theme
	}
	if req.HideSundays != nil {
		settings.HideSundays = *req.HideSundays
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if err := a.auth.UpdateSettings(r.Context(), userID, raw); err != nil {
		obs.LogEntry(map[string]any{"level": "error", "msg": "update_settings_failed", "error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.recordChange(r, audit.ActionUpdate, "users", userID, map[string]any{"settings": settings})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": settings})
}

func (a *API) recordChange(r *http.Request, action, table, recordID string, changes map[string]any) {
	p, _ := auth.PayloadFromContext(r.Context())
	a.audit.Record(r.Context(), audit.Entry{
		UserID:    p.UserID,
		Action:    action,
		TableName: table,
		RecordID:  recordID,
		Changes:   changes,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
}
