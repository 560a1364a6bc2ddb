package main

import (
	"os"
	"strings"
)

// dephealthName возвращает имя вершины графа topologymetrics:
// DEPHEALTH_NAME, если задан, иначе имя владельца пода из hostname.
func dephealthName(configured string) string {
	if configured != "" {
		return configured
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "staging-service"
	}
	return parseOwnerName(hostname)
}

// parseOwnerName извлекает имя Deployment или StatefulSet из hostname пода:
//   - {deployment}-{pod-template-hash}-{suffix} → {deployment}
//   - {statefulset}-{ordinal} → {statefulset}
//
// Остальные имена возвращаются без изменений.
func parseOwnerName(hostname string) string {
	parts := strings.Split(hostname, "-")
	n := len(parts)

	if n >= 3 && len(parts[n-1]) == 5 && isAlnum(parts[n-1]) &&
		len(parts[n-2]) >= 6 && len(parts[n-2]) <= 10 && isAlnum(parts[n-2]) {
		return strings.Join(parts[:n-2], "-")
	}
	if n >= 2 && isDigits(parts[n-1]) {
		return strings.Join(parts[:n-1], "-")
	}
	return hostname
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return s != ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
