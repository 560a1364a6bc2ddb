// Пакет config — загрузка и валидация конфигурации Staging Service:
// параметры процесса из переменных окружения STG_* и иерархический
// документ staging (адаптеры, лимиты, точки доступа, процессоры)
// из YAML-файла STG_CONFIG_FILE.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит параметры процесса.
type Config struct {
	// Путь к YAML-документу staging
	ConfigFile string
	// Документ staging, загруженный из ConfigFile
	Staging *Staging

	// Порт HTTP-сервера демона
	Port int
	// Путь к TLS сертификату (опционально, вместе с TLSKey)
	TLSCert string
	// Путь к TLS приватному ключу
	TLSKey string
	// Не проверять TLS-сертификаты исходящих запросов (leader, JWKS, dephealth)
	TLSSkipVerify bool

	// Директория журнала финализаций (пусто — журнал отключён)
	WALDir string
	// Интервал запуска финализации в демоне
	FinalizeInterval time.Duration
	// Интервал очистки истёкших и удалённых перемещений
	CleanupInterval time.Duration
	// Восстанавливать зависшие перемещения при старте демона
	RecoverStale bool
	// Применять миграции PostgreSQL при старте
	DBMigrate bool

	// URL JWKS endpoint для API операций (пусто — API операций отключён)
	JWKSUrl string
	// CA-сертификат JWKS endpoint (опционально)
	JWKSCACert string
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// Допустимое расхождение часов при проверке JWT
	JWTLeeway time.Duration

	// Файл блокировки лидера (пусто — выборы отключены, процесс всегда лидер)
	LeaderLockFile string
	// Интервал повторного захвата блокировки лидера
	ElectionRetryInterval time.Duration
	// Интервал перечитывания файловых записей на follower
	FollowerRefreshInterval time.Duration

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Имя владельца пода для метки name в topologymetrics (DEPHEALTH_NAME)
	DephealthName string

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения и документ
// staging из STG_CONFIG_FILE.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// STG_CONFIG_FILE — обязательный
	cfg.ConfigFile, err = getEnvRequired("STG_CONFIG_FILE")
	if err != nil {
		return nil, err
	}

	// STG_PORT — порт HTTP-сервера (по умолчанию 8090)
	cfg.Port, err = getEnvInt("STG_PORT", 8090)
	if err != nil {
		return nil, fmt.Errorf("STG_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("STG_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.TLSCert = getEnvDefault("STG_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("STG_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("STG_TLS_CERT и STG_TLS_KEY задаются только вместе")
	}

	cfg.TLSSkipVerify, err = getEnvBool("STG_TLS_SKIP_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("STG_TLS_SKIP_VERIFY: %w", err)
	}

	cfg.WALDir = getEnvDefault("STG_WAL_DIR", "")

	// STG_FINALIZE_INTERVAL — интервал финализации (по умолчанию 30s)
	cfg.FinalizeInterval, err = getEnvDuration("STG_FINALIZE_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("STG_FINALIZE_INTERVAL: %w", err)
	}
	if cfg.FinalizeInterval <= 0 {
		return nil, fmt.Errorf("STG_FINALIZE_INTERVAL: значение должно быть положительным")
	}

	// STG_CLEANUP_INTERVAL — интервал очистки (по умолчанию 1h)
	cfg.CleanupInterval, err = getEnvDuration("STG_CLEANUP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("STG_CLEANUP_INTERVAL: %w", err)
	}
	if cfg.CleanupInterval <= 0 {
		return nil, fmt.Errorf("STG_CLEANUP_INTERVAL: значение должно быть положительным")
	}

	cfg.RecoverStale, err = getEnvBool("STG_RECOVER_STALE", false)
	if err != nil {
		return nil, fmt.Errorf("STG_RECOVER_STALE: %w", err)
	}

	cfg.DBMigrate, err = getEnvBool("STG_DB_MIGRATE", true)
	if err != nil {
		return nil, fmt.Errorf("STG_DB_MIGRATE: %w", err)
	}

	cfg.JWKSUrl = getEnvDefault("STG_JWKS_URL", "")
	cfg.JWKSCACert = getEnvDefault("STG_JWKS_CA_CERT", "")

	cfg.JWKSRefreshInterval, err = getEnvDuration("STG_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("STG_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.JWTLeeway, err = getEnvDuration("STG_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("STG_JWT_LEEWAY: %w", err)
	}

	cfg.LeaderLockFile = getEnvDefault("STG_LEADER_LOCK_FILE", "")

	cfg.ElectionRetryInterval, err = getEnvDuration("STG_ELECTION_RETRY_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("STG_ELECTION_RETRY_INTERVAL: %w", err)
	}

	cfg.FollowerRefreshInterval, err = getEnvDuration("STG_FOLLOWER_REFRESH_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("STG_FOLLOWER_REFRESH_INTERVAL: %w", err)
	}
	if cfg.FollowerRefreshInterval <= 0 {
		return nil, fmt.Errorf("STG_FOLLOWER_REFRESH_INTERVAL: значение должно быть положительным")
	}

	// STG_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("STG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("STG_LOG_LEVEL: %w", err)
	}

	// STG_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("STG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("STG_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.DephealthCheckInterval, err = getEnvDuration("STG_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("STG_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("STG_DEPHEALTH_GROUP", "staging-service")
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	cfg.ShutdownTimeout, err = getEnvDuration("STG_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("STG_SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg.Staging, err = LoadStaging(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает логическое значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
