package model

import (
	"fmt"
	"net/url"
	"path/filepath"
)

// FileURL возвращает file:// URL для локального пути.
func FileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// PathFromURL возвращает локальный путь из file:// URL.
func PathFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("некорректный URL %q: %w", raw, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("неподдерживаемая схема URL %q, ожидается file://", raw)
	}
	if u.Path == "" {
		return "", fmt.Errorf("пустой путь в URL %q", raw)
	}
	return filepath.FromSlash(u.Path), nil
}
