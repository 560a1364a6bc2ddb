package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewDephealthService_NoDependencies(t *testing.T) {
	_, err := NewDephealthServiceWithRegisterer(
		"staging-test", "staging-service", DephealthTargets{},
		time.Second, testLogger(), prometheus.NewRegistry(),
	)
	if !errors.Is(err, ErrNoDependencies) {
		t.Fatalf("ожидалась ErrNoDependencies, получено %v", err)
	}
}

func TestHealthPath(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"http://remote:8080/api/v1/health", "/api/v1/health"},
		{"http://remote:8080", "/health"},
		{"https://kc/realms/artstore/protocol/openid-connect/certs", "/realms/artstore/protocol/openid-connect/certs"},
	}
	for _, tt := range tests {
		if got := healthPath(tt.raw); got != tt.want {
			t.Errorf("healthPath(%q) = %q, ожидалось %q", tt.raw, got, tt.want)
		}
	}
}

func TestDephealthService_RemoteAccess(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"доступен", http.StatusOK, true},
		{"ошибка 500", http.StatusInternalServerError, false},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer mockServer.Close()

			ds, err := NewDephealthServiceWithRegisterer(
				"staging-test-"+string(rune('a'+i)),
				"staging-service",
				DephealthTargets{RestURL: mockServer.URL + "/health"},
				time.Second,
				testLogger(),
				prometheus.NewRegistry(),
			)
			if err != nil {
				t.Fatalf("Ошибка создания DephealthService: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := ds.Start(ctx); err != nil {
				t.Fatalf("Ошибка запуска: %v", err)
			}
			defer ds.Stop()

			// Даём время на первую проверку (интервал 1s + запас)
			time.Sleep(3 * time.Second)

			health := ds.Health()
			found := false
			for key, val := range health {
				if strings.HasPrefix(key, "remote-access:") {
					found = true
					if val != tt.want {
						t.Errorf("remote-access health = %v для ключа %q, ожидалось %v", val, key, tt.want)
					}
				}
			}
			if !found {
				t.Errorf("Нет записи для remote-access в Health(), keys=%v", healthKeys(health))
			}
		})
	}
}

// healthKeys возвращает ключи карты health для вывода в сообщениях об ошибках.
func healthKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
