package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeStaging создаёт документ staging с файловыми хранилищами записей.
func writeStaging(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	doc := fmt.Sprintf(`
adapters:
  dataOrganization:
    implementation: local-tree
    properties: {dir: %[1]s/trees}
  ingestInformation:
    implementation: file
    properties: {dir: %[1]s/records}
  downloadInformation:
    implementation: file
    properties: {dir: %[1]s/records}
  storageVirtualization:
    implementation: local-archive
    properties: {archiveUrl: "file://%[1]s/archive"}
accessPoints:
  items:
    - {id: ap, implementation: basic, localBasePath: %[1]s/cache, remoteBaseUrl: "https://staging/cache", default: true}
`, root)
	path := filepath.Join(root, "staging.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_ExitCodes(t *testing.T) {
	t.Setenv("STG_CONFIG_FILE", "")
	t.Setenv("STG_LOG_LEVEL", "error")
	configPath := writeStaging(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"справка", []string{"--help"}, exitOK},
		{"неизвестный тип", []string{"--type", "UPLOAD"}, exitUsage},
		{"неизвестный флаг", []string{"--type", "INGEST", "--verbose"}, exitUsage},
		{"нет конфигурации", []string{"--type", "INGEST"}, exitInitError},
		{"несуществующая конфигурация", []string{"--type", "INGEST", "--config", filepath.Join(t.TempDir(), "missing.yaml")}, exitInitError},
		{"ingest без записей", []string{"--type", "INGEST", "--config", configPath}, exitOK},
		{"download без записей", []string{"-t", "download", "-c", configPath}, exitOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			args := append([]string{"staging-finalizer"}, tt.args...)
			if got := run(context.Background(), args, &stderr); got != tt.want {
				t.Errorf("код возврата %d, ожидался %d; вывод: %s", got, tt.want, stderr.String())
			}
		})
	}
}
