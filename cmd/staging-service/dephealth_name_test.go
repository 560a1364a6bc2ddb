package main

import "testing"

func TestParseOwnerName(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		want     string
	}{
		{"Deployment", "staging-service-7d8f9b6c4f-x2k9z", "staging-service"},
		{"Deployment с коротким hash", "stg-api-5fbcd8-k4m2j", "stg-api"},
		{"StatefulSet", "staging-0", "staging"},
		{"StatefulSet с составным именем", "staging-service-12", "staging-service"},
		{"суффикс с заглавными", "staging-7d8f9b6c4f-X2K9Z", "staging-7d8f9b6c4f-X2K9Z"},
		{"простое имя", "staging", "staging"},
		{"два сегмента", "staging-node", "staging-node"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseOwnerName(tt.hostname); got != tt.want {
				t.Errorf("parseOwnerName(%q) = %q, ожидалось %q", tt.hostname, got, tt.want)
			}
		})
	}
}

func TestDephealthName_Configured(t *testing.T) {
	if got := dephealthName("staging-main"); got != "staging-main" {
		t.Errorf("dephealthName = %q, ожидалось staging-main", got)
	}
}

func TestGetDiskUsage(t *testing.T) {
	total, used, available, err := getDiskUsage(t.TempDir())
	if err != nil {
		t.Fatalf("getDiskUsage: %v", err)
	}
	if total <= 0 || available < 0 || used != total-available {
		t.Errorf("некорректные значения: total=%d used=%d available=%d", total, used, available)
	}
	if _, _, _, err := getDiskUsage("/nonexistent/staging"); err == nil {
		t.Error("ожидалась ошибка для несуществующей директории")
	}
}
