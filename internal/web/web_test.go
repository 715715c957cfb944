package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"claycal/internal/config"
	"claycal/internal/model"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Normalize()
	return cfg
}

func TestHealth(t *testing.T) {
	s := NewServer(testConfig())
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
}

func TestGroupsBeforeFirstRun(t *testing.T) {
	s := NewServer(testConfig())
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/groups", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 before any run", rec.Code)
	}
}

func TestGroupsAfterRun(t *testing.T) {
	s := NewServer(testConfig())

	ev := &model.NormalizedEvent{
		Title:       "Fair",
		Location:    "City Park",
		Category:    "Flora",
		TimeLabel:   "ALL DAY",
		AllDay:      true,
		DisplayDate: model.Date{Year: 2026, Month: time.March, Day: 7},
		SortKey:     time.Date(2026, time.March, 7, 0, 0, 0, 0, time.UTC),
	}
	al := &model.SafetyAlert{
		Hazard:     "FLOODING",
		Town:       "Flora",
		Location:   "Creek Rd",
		MapLink:    "https://www.google.com/maps",
		ReportedAt: time.Date(2026, time.March, 5, 18, 5, 0, 0, time.UTC),
	}
	s.SetGroups(model.Groups{
		AllDay: []model.Entry{{SortKey: ev.SortKey, Event: ev}},
		Timed:  []model.Entry{{SortKey: al.ReportedAt, Alert: al}},
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/groups", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		AllDay []map[string]any `json:"all_day"`
		Timed  []map[string]any `json:"timed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.AllDay) != 1 || resp.AllDay[0]["kind"] != "event" {
		t.Errorf("all_day = %+v", resp.AllDay)
	}
	if resp.AllDay[0]["title"] != "Fair" || resp.AllDay[0]["date"] != "2026-03-07" {
		t.Errorf("event DTO = %+v", resp.AllDay[0])
	}
	if len(resp.Timed) != 1 || resp.Timed[0]["kind"] != "alert" {
		t.Errorf("timed = %+v", resp.Timed)
	}
	if resp.Timed[0]["hazard"] != "FLOODING" {
		t.Errorf("alert DTO = %+v", resp.Timed[0])
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	s := NewServer(cfg)
	h := s.Handler()

	// /health stays open.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200 without credentials", rec.Code)
	}

	// Everything else requires credentials.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/groups", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without credentials", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	req.SetBasicAuth("admin", "secret")
	h.ServeHTTP(rec, req)
	if rec.Code == http.StatusUnauthorized {
		t.Error("valid credentials rejected")
	}
}
