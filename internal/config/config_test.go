package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setEnvVars устанавливает переменные окружения для теста и возвращает
// функцию очистки. Всегда вызывать defer cleanup().
func setEnvVars(t *testing.T, vars map[string]string) func() {
	t.Helper()

	originals := make(map[string]string)
	origSet := make(map[string]bool)
	for k := range vars {
		if v, ok := os.LookupEnv(k); ok {
			originals[k] = v
			origSet[k] = true
		}
	}

	for k, v := range vars {
		os.Setenv(k, v)
	}

	return func() {
		for k := range vars {
			if origSet[k] {
				os.Setenv(k, originals[k])
			} else {
				os.Unsetenv(k)
			}
		}
	}
}

// clearAllSTGEnvVars очищает все переменные окружения STG_* для чистого теста.
func clearAllSTGEnvVars(t *testing.T) func() {
	t.Helper()
	keys := []string{
		"STG_CONFIG_FILE", "STG_PORT", "STG_TLS_CERT", "STG_TLS_KEY",
		"STG_WAL_DIR", "STG_FINALIZE_INTERVAL", "STG_CLEANUP_INTERVAL",
		"STG_RECOVER_STALE", "STG_DB_MIGRATE", "STG_JWKS_URL",
		"STG_JWKS_REFRESH_INTERVAL", "STG_JWT_LEEWAY",
		"STG_LEADER_LOCK_FILE", "STG_ELECTION_RETRY_INTERVAL",
		"STG_TLS_SKIP_VERIFY", "STG_JWKS_CA_CERT", "STG_FOLLOWER_REFRESH_INTERVAL",
		"STG_LOG_LEVEL", "STG_LOG_FORMAT",
		"STG_DEPHEALTH_CHECK_INTERVAL", "STG_DEPHEALTH_GROUP", "DEPHEALTH_NAME",
		"STG_SHUTDOWN_TIMEOUT",
	}
	originals := make(map[string]string)
	origSet := make(map[string]bool)
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			originals[k] = v
			origSet[k] = true
		}
		os.Unsetenv(k)
	}
	return func() {
		for _, k := range keys {
			if origSet[k] {
				os.Setenv(k, originals[k])
			} else {
				os.Unsetenv(k)
			}
		}
	}
}

const minimalStaging = `
adapters:
  dataOrganization:
    implementation: local-tree
    properties:
      dir: /var/lib/staging/trees
  ingestInformation:
    implementation: file
    target: local
    properties:
      dir: /var/lib/staging/records
  downloadInformation:
    implementation: file
    properties:
      dir: /var/lib/staging/records
  storageVirtualization:
    implementation: local-archive
    properties:
      archiveUrl: file:///var/lib/archive
accessPoints:
  items:
    - id: local-ap
      implementation: basic
      localBasePath: /var/lib/staging/cache
      remoteBaseUrl: https://staging.example.org/cache
      default: true
`

// writeStaging записывает документ staging во временный файл.
func writeStaging(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staging.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	cleanup := clearAllSTGEnvVars(t)
	defer cleanup()

	cleanupVars := setEnvVars(t, map[string]string{
		"STG_CONFIG_FILE": writeStaging(t, minimalStaging),
	})
	defer cleanupVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if cfg.Port != 8090 {
		t.Errorf("Port: ожидалось 8090, получено %d", cfg.Port)
	}
	if cfg.FinalizeInterval != 30*time.Second {
		t.Errorf("FinalizeInterval: ожидалось 30s, получено %v", cfg.FinalizeInterval)
	}
	if cfg.CleanupInterval != time.Hour {
		t.Errorf("CleanupInterval: ожидалось 1h, получено %v", cfg.CleanupInterval)
	}
	if cfg.RecoverStale {
		t.Error("RecoverStale: ожидалось false")
	}
	if !cfg.DBMigrate {
		t.Error("DBMigrate: ожидалось true")
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: ожидалось INFO, получено %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: ожидалось 'json', получено %q", cfg.LogFormat)
	}
	if cfg.DephealthGroup != "staging-service" {
		t.Errorf("DephealthGroup: ожидалось 'staging-service', получено %q", cfg.DephealthGroup)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout: ожидалось 5s, получено %v", cfg.ShutdownTimeout)
	}

	lim := cfg.Staging.Limits
	if lim.MaxParallelIngests != 2 || lim.MaxParallelDownloads != 2 {
		t.Errorf("лимиты по умолчанию: %+v", lim)
	}
	if lim.TransferLifetime != 168*time.Hour {
		t.Errorf("TransferLifetime: ожидалось 168h, получено %v", lim.TransferLifetime)
	}
	if lim.RequireUploadedData {
		t.Error("RequireUploadedData: ожидалось false")
	}
	if cfg.Staging.AccessPoints.Source != SourceFile {
		t.Errorf("Source: ожидалось file, получено %q", cfg.Staging.AccessPoints.Source)
	}

	ap := cfg.Staging.AccessPoints.Items[0]
	if ap.LocalBasePath != "/var/lib/staging/cache/" {
		t.Errorf("LocalBasePath без завершающего слэша: %q", ap.LocalBasePath)
	}
	if ap.RemoteBaseURL != "https://staging.example.org/cache/" {
		t.Errorf("RemoteBaseURL без завершающего слэша: %q", ap.RemoteBaseURL)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	cleanup := clearAllSTGEnvVars(t)
	defer cleanup()

	_, err := Load()
	if err == nil {
		t.Fatal("ожидалась ошибка без STG_CONFIG_FILE")
	}
	if !strings.Contains(err.Error(), "STG_CONFIG_FILE") {
		t.Errorf("ошибка должна называть переменную: %v", err)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	path := writeStaging(t, minimalStaging)

	tests := []struct {
		name string
		vars map[string]string
	}{
		{"порт вне диапазона", map[string]string{"STG_PORT": "70000"}},
		{"порт не число", map[string]string{"STG_PORT": "abc"}},
		{"интервал финализации", map[string]string{"STG_FINALIZE_INTERVAL": "5"}},
		{"нулевой интервал очистки", map[string]string{"STG_CLEANUP_INTERVAL": "0s"}},
		{"уровень логирования", map[string]string{"STG_LOG_LEVEL": "verbose"}},
		{"формат логов", map[string]string{"STG_LOG_FORMAT": "xml"}},
		{"логическое значение", map[string]string{"STG_RECOVER_STALE": "maybe"}},
		{"TLS без ключа", map[string]string{"STG_TLS_CERT": "/tmp/tls.crt"}},
		{"нулевой интервал follower", map[string]string{"STG_FOLLOWER_REFRESH_INTERVAL": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := clearAllSTGEnvVars(t)
			defer cleanup()

			vars := map[string]string{"STG_CONFIG_FILE": path}
			for k, v := range tt.vars {
				vars[k] = v
			}
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			if _, err := Load(); err == nil {
				t.Error("ожидалась ошибка")
			}
		})
	}
}

func TestLoad_CustomValues(t *testing.T) {
	cleanup := clearAllSTGEnvVars(t)
	defer cleanup()

	cleanupVars := setEnvVars(t, map[string]string{
		"STG_CONFIG_FILE":               writeStaging(t, minimalStaging),
		"STG_PORT":                      "9000",
		"STG_RECOVER_STALE":             "true",
		"STG_FINALIZE_INTERVAL":         "10s",
		"STG_LOG_LEVEL":                 "debug",
		"STG_LOG_FORMAT":                "text",
		"STG_WAL_DIR":                   "/tmp/wal",
		"STG_TLS_SKIP_VERIFY":           "true",
		"STG_JWKS_CA_CERT":              "/etc/staging/ca.crt",
		"STG_FOLLOWER_REFRESH_INTERVAL": "30s",
	})
	defer cleanupVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if cfg.Port != 9000 || !cfg.RecoverStale || cfg.FinalizeInterval != 10*time.Second {
		t.Errorf("значения не применены: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "text" || cfg.WALDir != "/tmp/wal" {
		t.Errorf("значения не применены: %+v", cfg)
	}
	if !cfg.TLSSkipVerify || cfg.JWKSCACert != "/etc/staging/ca.crt" || cfg.FollowerRefreshInterval != 30*time.Second {
		t.Errorf("параметры TLS и follower не применены: %+v", cfg)
	}
}

func TestParseStaging_Full(t *testing.T) {
	doc := `
adapters:
  dataOrganization:
    implementation: local-tree
    properties: {dir: /trees, cacheSize: "64", cacheTTL: 5m}
  ingestInformation:
    implementation: postgres
    target: postgres://staging:secret@db:5432/staging
  downloadInformation:
    implementation: postgres
    target: postgres://staging:secret@db:5432/staging
  storageVirtualization:
    implementation: local-archive
    properties: {archiveUrl: "file://$tmp/archive", pathPattern: "$owner/$year"}
remoteAccess:
  restUrl: https://platform.example.org/api
mail:
  server: smtp.example.org:25
  sender: staging@example.org
limits:
  maxParallelIngests: 4
  maxParallelDownloads: 1
  transferLifetime: 24h
  requireUploadedData: true
accessPoints:
  source: database
  items:
    - {id: local-ap, implementation: basic, localBasePath: /cache, remoteBaseUrl: "https://s/cache", default: true}
processors:
  preArchive:
    - {id: hash, implementation: input-hash, priority: 10}
  postArchive:
    - {id: hash, implementation: input-hash, priority: 10}
  download:
    - {id: zip, implementation: download-zipper, properties: {keepFiles: "false"}}
`
	s, err := ParseStaging([]byte(doc))
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if s.PostgresDSN() != "postgres://staging:secret@db:5432/staging" {
		t.Errorf("PostgresDSN: %q", s.PostgresDSN())
	}
	if s.Limits.MaxParallelIngests != 4 || s.Limits.MaxParallelDownloads != 1 ||
		s.Limits.TransferLifetime != 24*time.Hour || !s.Limits.RequireUploadedData {
		t.Errorf("лимиты: %+v", s.Limits)
	}
	if s.Mail.Server != "smtp.example.org:25" || s.Mail.Sender != "staging@example.org" {
		t.Errorf("почта: %+v", s.Mail)
	}
	if s.RemoteAccess.RestURL != "https://platform.example.org/api" {
		t.Errorf("restUrl: %q", s.RemoteAccess.RestURL)
	}
	if len(s.Processors.Download) != 1 || s.Processors.Download[0].Property("keepFiles", "") != "false" {
		t.Errorf("процессоры download: %+v", s.Processors.Download)
	}
	if s.Adapters.DataOrganization.Property("cacheSize", "") != "64" {
		t.Errorf("параметры dataOrganization: %+v", s.Adapters.DataOrganization.Properties)
	}
}

func TestParseStaging_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{
			name:  "нет реализации виртуализации",
			doc:   strings.Replace(minimalStaging, "implementation: local-archive", "implementation: \"\"", 1),
			field: "adapters.storageVirtualization.implementation",
		},
		{
			name:  "postgres без DSN",
			doc:   strings.Replace(minimalStaging, "implementation: file\n    target: local", "implementation: postgres\n    target: local", 1),
			field: "adapters.ingestInformation.target",
		},
		{
			name:  "неизвестное хранилище записей",
			doc:   strings.Replace(minimalStaging, "implementation: file\n    properties", "implementation: redis\n    properties", 1),
			field: "adapters.downloadInformation.implementation",
		},
		{
			name:  "источник database без postgres",
			doc:   strings.Replace(minimalStaging, "accessPoints:\n", "accessPoints:\n  source: database\n", 1),
			field: "accessPoints.source",
		},
		{
			name:  "точка доступа без URL",
			doc:   strings.Replace(minimalStaging, "      remoteBaseUrl: https://staging.example.org/cache\n", "", 1),
			field: "accessPoints.items[0].remoteBaseUrl",
		},
		{
			name:  "отрицательный лимит",
			doc:   minimalStaging + "limits:\n  maxParallelIngests: -1\n",
			field: "limits.maxParallelIngests",
		},
		{
			name:  "процессор без реализации",
			doc:   minimalStaging + "processors:\n  preArchive:\n    - id: hash\n",
			field: "processors.preArchive[0].implementation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStaging([]byte(tt.doc))
			if err == nil {
				t.Fatal("ожидалась ошибка")
			}
			var cfgErr *Error
			if !errors.As(err, &cfgErr) {
				t.Fatalf("ожидалась *Error, получено %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("ошибка должна называть поле %s: %v", tt.field, err)
			}
		})
	}
}

func TestFileCatalog_Reread(t *testing.T) {
	path := writeStaging(t, minimalStaging)
	catalog := NewFileCatalog(path)
	ctx := context.Background()

	aps, err := catalog.AccessPoints(ctx)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(aps) != 1 || aps[0].ID != "local-ap" || aps[0].Disabled {
		t.Fatalf("неожиданный каталог: %+v", aps)
	}

	// Изменение файла видно без перезапуска
	updated := strings.Replace(minimalStaging, "      default: true\n", "      default: true\n      disabled: true\n", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	aps, err = catalog.AccessPoints(ctx)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !aps[0].Disabled {
		t.Error("изменение каталога не применено")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ошибка: %v, ожидалась: %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ожидалось %v, получено %v", tt.want, got)
			}
		})
	}
}
