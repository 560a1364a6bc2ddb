package replica

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// mockRoleProvider — mock реализация RoleProvider для тестов.
type mockRoleProvider struct {
	role       Role
	leaderAddr string
}

func (m *mockRoleProvider) CurrentRole() Role  { return m.role }
func (m *mockRoleProvider) IsLeader() bool     { return m.role == RoleLeader }
func (m *mockRoleProvider) LeaderAddr() string { return m.leaderAddr }

// localHandler — обработчик, который возвращает "local" в теле ответа.
func localHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("local"))
	})
}

// TestProxy_LocalRequests — leader, чтения и запросы вне перемещений
// обрабатываются локально.
func TestProxy_LocalRequests(t *testing.T) {
	tests := []struct {
		name   string
		role   Role
		method string
		path   string
	}{
		{"leader POST", RoleLeader, http.MethodPost, "/api/v1/ingests/obj-1/finalize"},
		{"follower GET", RoleFollower, http.MethodGet, "/api/v1/ingests/obj-1"},
		{"follower HEAD", RoleFollower, http.MethodHead, "/api/v1/downloads/dl-1"},
		{"follower POST вне перемещений", RoleFollower, http.MethodPost, "/api/v1/other"},
		{"follower POST health", RoleFollower, http.MethodPost, "/health/live"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockRoleProvider{role: tt.role, leaderAddr: "stg-0:8090"}
			handler := NewLeaderProxy(provider, false, false, newTestLogger()).Middleware(localHandler())

			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK || rec.Body.String() != "local" {
				t.Errorf("Ожидался локальный ответ, получен %d %q", rec.Code, rec.Body.String())
			}
		})
	}
}

// TestProxy_FollowerPOSTProxy — follower проксирует POST к leader по HTTPS.
func TestProxy_FollowerPOSTProxy(t *testing.T) {
	leaderServer := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ingests/obj-1/finalize" {
			t.Errorf("Неожиданный путь %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("from-leader"))
	}))
	defer leaderServer.Close()

	leaderAddr := strings.TrimPrefix(leaderServer.URL, "https://")
	provider := &mockRoleProvider{role: RoleFollower, leaderAddr: leaderAddr}
	handler := NewLeaderProxy(provider, true, true, newTestLogger()).Middleware(localHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingests/obj-1/finalize", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("Ожидался статус 201, получен %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Result().Body)
	if string(body) != "from-leader" {
		t.Errorf("Ожидался ответ 'from-leader', получен %q", string(body))
	}
}

// TestProxy_FollowerDELETEProxyHTTP — без TLS follower проксирует по HTTP.
func TestProxy_FollowerDELETEProxyHTTP(t *testing.T) {
	leaderServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Ожидался DELETE, получен %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer leaderServer.Close()

	leaderAddr := strings.TrimPrefix(leaderServer.URL, "http://")
	provider := &mockRoleProvider{role: RoleFollower, leaderAddr: leaderAddr}
	handler := NewLeaderProxy(provider, false, false, newTestLogger()).Middleware(localHandler())

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/downloads/dl-1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Ожидался статус 204, получен %d", rec.Code)
	}
}

// TestProxy_FollowerLeaderUnknown — follower с неизвестным leader возвращает 503.
func TestProxy_FollowerLeaderUnknown(t *testing.T) {
	provider := &mockRoleProvider{role: RoleFollower}
	handler := NewLeaderProxy(provider, false, false, newTestLogger()).Middleware(localHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/downloads/obj-1/schedule", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Ожидался статус 503, получен %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), CodeLeaderUnknown) {
		t.Errorf("Ожидался код ошибки %q в ответе, получен %q", CodeLeaderUnknown, rec.Body.String())
	}
}

// TestProxy_LeaderUnreachable — недоступный leader даёт 502.
func TestProxy_LeaderUnreachable(t *testing.T) {
	leaderServer := httptest.NewServer(http.NotFoundHandler())
	leaderAddr := strings.TrimPrefix(leaderServer.URL, "http://")
	leaderServer.Close()

	provider := &mockRoleProvider{role: RoleFollower, leaderAddr: leaderAddr}
	handler := NewLeaderProxy(provider, false, false, newTestLogger()).Middleware(localHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingests/obj-1/flush", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("Ожидался статус 502, получен %d", rec.Code)
	}
}

// TestProxy_ForwardedHeaders — пересланный запрос помечен и сохраняет тело.
func TestProxy_ForwardedHeaders(t *testing.T) {
	leaderServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderForwarded) == "" {
			t.Errorf("Нет заголовка %s", HeaderForwarded)
		}
		if r.Header.Get("X-Forwarded-For") == "" {
			t.Error("Нет заголовка X-Forwarded-For")
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"status":"PRE_INGEST_RUNNING"}` {
			t.Errorf("Тело запроса %q", string(body))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer leaderServer.Close()

	provider := &mockRoleProvider{role: RoleFollower, leaderAddr: strings.TrimPrefix(leaderServer.URL, "http://")}
	handler := NewLeaderProxy(provider, false, false, newTestLogger()).Middleware(localHandler())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/ingests/obj-1/status", strings.NewReader(`{"status":"PRE_INGEST_RUNNING"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Ожидался статус 200, получен %d", rec.Code)
	}
}

// TestProxy_Loop — пересланный запрос на follower не пересылается повторно.
func TestProxy_Loop(t *testing.T) {
	provider := &mockRoleProvider{role: RoleFollower, leaderAddr: "stg-0:8090"}
	handler := NewLeaderProxy(provider, false, false, newTestLogger()).Middleware(localHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingests/obj-1/finalize", nil)
	req.Header.Set(HeaderForwarded, "1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Ожидался статус 503, получен %d", rec.Code)
	}
}

// TestProxy_LeaderChange — после смены leader запросы идут новому leader.
func TestProxy_LeaderChange(t *testing.T) {
	newLeader := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(name))
		}))
	}
	first, second := newLeader("stg-0"), newLeader("stg-1")
	defer first.Close()
	defer second.Close()

	provider := &mockRoleProvider{role: RoleFollower, leaderAddr: strings.TrimPrefix(first.URL, "http://")}
	proxy := NewLeaderProxy(provider, false, false, newTestLogger())
	handler := proxy.Middleware(localHandler())

	send := func() string {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/downloads/dl-1/flush", nil))
		return rec.Body.String()
	}

	if got := send(); got != "stg-0" {
		t.Fatalf("Ответ %q, ожидался stg-0", got)
	}
	cached := proxy.target
	if got := send(); got != "stg-0" || proxy.target != cached {
		t.Errorf("Proxy пересоздан без смены leader")
	}

	provider.leaderAddr = strings.TrimPrefix(second.URL, "http://")
	if got := send(); got != "stg-1" {
		t.Errorf("Ответ %q, ожидался stg-1", got)
	}
}

// countingReloader считает вызовы Reload.
type countingReloader struct {
	calls int
	err   error
}

func (r *countingReloader) Reload() error {
	r.calls++
	return r.err
}

// TestFollowerRefresh_Refresh — записи перечитываются только на follower.
func TestFollowerRefresh_Refresh(t *testing.T) {
	tests := []struct {
		name      string
		role      Role
		err       error
		want      bool
		wantCalls int
	}{
		{"follower", RoleFollower, nil, true, 1},
		{"leader", RoleLeader, nil, false, 0},
		{"ошибка чтения", RoleFollower, errors.New("диск недоступен"), false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &countingReloader{err: tt.err}
			svc := NewFollowerRefreshService(store, &mockRoleProvider{role: tt.role}, 0, newTestLogger())

			if got := svc.Refresh(); got != tt.want {
				t.Errorf("Refresh() = %v, ожидалось %v", got, tt.want)
			}
			if store.calls != tt.wantCalls {
				t.Errorf("Reload вызван %d раз, ожидалось %d", store.calls, tt.wantCalls)
			}
		})
	}
}
