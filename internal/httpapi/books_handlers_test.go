package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"tallybook.org/internal/books"
)

func TestCreateAndListRevenues(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "bob", "user-pass-1")

	resp := postJSON(t, env, "/v1/revenues",
		`{"date":"2026-02-02","base20":100,"tva20":20,"ht":100,"ttc":120}`, cookies)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	list := getWithCookies(t, env, "/v1/revenues?month=2026-02", cookies)
	defer list.Body.Close()
	var out struct {
		Data []books.Revenue `json:"data"`
	}
	if err := json.NewDecoder(list.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Data) != 1 || out.Data[0].TTC != 120 {
		t.Fatalf("unexpected listing: %+v", out.Data)
	}

	other := getWithCookies(t, env, "/v1/revenues?month=2026-03", cookies)
	defer other.Body.Close()
	out.Data = nil
	if err := json.NewDecoder(other.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Data) != 0 {
		t.Fatalf("month filter leaked entries: %+v", out.Data)
	}
}

func TestCreateRevenueValidation(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "bob", "user-pass-1")

	bad := postJSON(t, env, "/v1/revenues", `{"date":"02/02/2026","ttc":120}`, cookies)
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", bad.StatusCode)
	}

	negative := postJSON(t, env, "/v1/revenues", `{"date":"2026-02-02","ttc":-5}`, cookies)
	negative.Body.Close()
	if negative.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative amount: expected 400, got %d", negative.StatusCode)
	}
}

func TestCreateAndListPurchases(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "bob", "user-pass-1")

	resp := postJSON(t, env, "/v1/purchases",
		`{"date":"2026-02-03","price_ht":50,"tva":10,"shipping_fee":5,"ttc":65}`, cookies)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	list := getWithCookies(t, env, "/v1/purchases", cookies)
	defer list.Body.Close()
	var out struct {
		Data []books.Purchase `json:"data"`
	}
	if err := json.NewDecoder(list.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Data) != 1 || out.Data[0].TTC != 65 {
		t.Fatalf("unexpected listing: %+v", out.Data)
	}
}

func TestDailyReportEndpoint(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "bob", "user-pass-1")

	for _, body := range []string{
		`{"date":"2026-02-02","ttc":250}`,
		`{"date":"2026-02-03","ttc":450}`,
	} {
		resp := postJSON(t, env, "/v1/revenues", body, cookies)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed revenue: expected 201, got %d", resp.StatusCode)
		}
	}

	resp := getWithCookies(t, env, "/v1/reports/daily?month=2026-02", cookies)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Data books.DailyStats `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Data.OpenDays != 2 {
		t.Fatalf("open days = %d, want 2", out.Data.OpenDays)
	}
	if out.Data.AverageDaily != 350 {
		t.Fatalf("average daily = %v, want 350", out.Data.AverageDaily)
	}

	missing := getWithCookies(t, env, "/v1/reports/daily", cookies)
	missing.Body.Close()
	if missing.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing month: expected 400, got %d", missing.StatusCode)
	}
}

func TestSettingsDefaultsAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "bob", "user-pass-1")

	resp := getWithCookies(t, env, "/v1/settings", cookies)
	defer resp.Body.Close()
	var out struct {
		Data struct {
			Theme       string `json:"theme"`
			HideSundays bool   `json:"hide_sundays"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Data.Theme != "system" || !out.Data.HideSundays {
		t.Fatalf("unexpected defaults: %+v", out.Data)
	}

	req, _ := http.NewRequest(http.MethodPut, env.server.URL+"/v1/settings",
		jsonBody(`{"theme":"dark","hide_sundays":false}`))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	update, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	update.Body.Close()
	if update.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", update.StatusCode)
	}

	again := getWithCookies(t, env, "/v1/settings", cookies)
	defer again.Body.Close()
	if err := json.NewDecoder(again.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Data.Theme != "dark" || out.Data.HideSundays {
		t.Fatalf("settings not persisted: %+v", out.Data)
	}
}

func TestSettingsRejectsUnknownTheme(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "bob", "user-pass-1")

	req, _ := http.NewRequest(http.MethodPut, env.server.URL+"/v1/settings", jsonBody(`{"theme":"neon"}`))
	req.Header.Set("Content-Type", "application/json")
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

func TestDeleteAllRevenuesReportsCount(t *testing.T) {
	env := newTestEnv(t)
	cookies := login(t, env, "bob", "user-pass-1")

	for _, body := range []string{
		`{"date":"2026-02-02","ttc":100}`,
		`{"date":"2026-02-03","ttc":200}`,
	} {
		resp := postJSON(t, env, "/v1/revenues", body, cookies)
		resp.Body.Close()
	}

	req, _ := http.NewRequest(http.MethodDelete, env.server.URL+"/v1/revenues", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Deleted != 2 {
		t.Fatalf("deleted = %d, want 2", out.Deleted)
	}
}
