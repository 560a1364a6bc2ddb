// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/arturkryukov/artsore/staging-service/internal/config"
)

const (
	statusOK       = "ok"
	statusFail     = "fail"
	statusDegraded = "degraded"
	serviceName    = "staging-service"
)

// ReadinessChecker — проверка готовности хранилища записей.
// Реализации: record.FileStore, postgres.ReadinessChecker.
type ReadinessChecker interface {
	CheckReady() (status string, message string)
}

// RoleProvider — роль экземпляра для проверки связи с leader.
type RoleProvider interface {
	IsLeader() bool
	LeaderAddr() string
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// records — проверка хранилища записей о перемещениях
	records ReadinessChecker
	// stagingDirs — корневые директории точек доступа (проверка записи)
	stagingDirs []string
	// walDir — директория журнала финализаций (пусто — журнал отключён)
	walDir string
	// roleProvider — провайдер роли (nil — единственный экземпляр)
	roleProvider RoleProvider
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(records ReadinessChecker, stagingDirs []string, walDir string, roleProvider RoleProvider) *HealthHandler {
	return &HealthHandler{
		version:      config.Version,
		records:      records,
		stagingDirs:  stagingDirs,
		walDir:       walDir,
		roleProvider: roleProvider,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    statusOK,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   serviceName,
	})
}

// HealthReady обрабатывает GET /health/ready.
// Хранилище записей и директории staging обязательны, недоступность
// журнала финализаций или неизвестный leader дают статус degraded.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := statusOK
	httpStatus := http.StatusOK
	fail := func() {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}
	degrade := func() {
		if overallStatus != statusFail {
			overallStatus = statusDegraded
		}
	}

	checks := map[string]any{}

	recordsCheck := map[string]any{"status": statusOK, "message": "Проверка не настроена"}
	if h.records != nil {
		status, message := h.records.CheckReady()
		recordsCheck = map[string]any{"status": status, "message": message}
	}
	checks["records"] = recordsCheck
	if recordsCheck["status"] != statusOK {
		fail()
	}

	stagingCheck := map[string]any{"status": statusOK}
	for _, dir := range h.stagingDirs {
		if err := checkWritable(dir); err != nil {
			stagingCheck = map[string]any{
				"status":  statusFail,
				"message": "Директория staging недоступна для записи: " + err.Error(),
			}
			fail()
			break
		}
	}
	checks["staging"] = stagingCheck

	if h.walDir != "" {
		walCheck := map[string]any{"status": statusOK}
		if err := checkWritable(h.walDir); err != nil {
			walCheck = map[string]any{
				"status":  statusFail,
				"message": "Директория журнала недоступна для записи: " + err.Error(),
			}
			degrade()
		}
		checks["wal"] = walCheck
	}

	if h.roleProvider != nil && !h.roleProvider.IsLeader() {
		leaderCheck := map[string]any{"status": statusOK, "leader_addr": h.roleProvider.LeaderAddr()}
		if h.roleProvider.LeaderAddr() == "" {
			leaderCheck = map[string]any{"status": statusFail, "message": "Адрес leader неизвестен"}
			degrade()
		}
		checks["leader_connection"] = leaderCheck
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   serviceName,
		"checks":    checks,
	})
}

// checkWritable проверяет, что в директорию можно записать файл.
func checkWritable(dir string) error {
	testFile := filepath.Join(dir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return err
	}
	_ = os.Remove(testFile)
	return nil
}

// writeJSON записывает JSON-ответ.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
