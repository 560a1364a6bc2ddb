package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

type staticChecker struct {
	status  string
	message string
}

func (c staticChecker) CheckReady() (string, string) { return c.status, c.message }

type staticRole struct {
	leader bool
	addr   string
}

func (r staticRole) IsLeader() bool     { return r.leader }
func (r staticRole) LeaderAddr() string { return r.addr }

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil, "", nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Ожидался статус 200, получен %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["service"] != serviceName {
		t.Errorf("service = %v", body["service"])
	}
}

func TestHealthReady(t *testing.T) {
	okDir := t.TempDir()
	missingDir := filepath.Join(t.TempDir(), "missing")

	tests := []struct {
		name       string
		records    ReadinessChecker
		dirs       []string
		walDir     string
		role       RoleProvider
		wantCode   int
		wantStatus string
	}{
		{"всё доступно", staticChecker{"ok", ""}, []string{okDir}, okDir, nil, http.StatusOK, statusOK},
		{"хранилище записей недоступно", staticChecker{"fail", "PostgreSQL недоступен"}, []string{okDir}, "", nil, http.StatusServiceUnavailable, statusFail},
		{"staging недоступен", staticChecker{"ok", ""}, []string{missingDir}, "", nil, http.StatusServiceUnavailable, statusFail},
		{"журнал недоступен", staticChecker{"ok", ""}, []string{okDir}, missingDir, nil, http.StatusOK, statusDegraded},
		{"follower без leader", staticChecker{"ok", ""}, nil, "", staticRole{}, http.StatusOK, statusDegraded},
		{"follower с leader", staticChecker{"ok", ""}, nil, "", staticRole{addr: "stg-0:8090"}, http.StatusOK, statusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.records, tt.dirs, tt.walDir, tt.role)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Ожидался статус %d, получен %d", tt.wantCode, rec.Code)
			}
			var body map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, ожидался %s", body["status"], tt.wantStatus)
			}
		})
	}
}
