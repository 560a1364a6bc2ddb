// disk_usage.go — метрики дискового пространства корней staging.
// Платформозависимый код для Unix-подобных систем.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var stagingDiskBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "stg_staging_disk_bytes",
	Help: "Дисковое пространство корня точки доступа в байтах.",
}, []string{"path", "kind"})

// getDiskUsage возвращает информацию о дисковом пространстве в директории.
// Возвращает total, used, available в байтах.
func getDiskUsage(path string) (total, used, available int64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, 0, fmt.Errorf("ошибка statfs %s: %w", path, err)
	}

	total = int64(stat.Blocks) * int64(stat.Bsize)
	available = int64(stat.Bavail) * int64(stat.Bsize)
	used = total - available

	return total, used, available, nil
}

// updateDiskMetrics обновляет метрики для каждой директории.
func updateDiskMetrics(dirs []string, logger *slog.Logger) {
	for _, dir := range dirs {
		total, used, available, err := getDiskUsage(dir)
		if err != nil {
			logger.Debug("Не удалось получить ёмкость диска", slog.String("path", dir), slog.String("error", err.Error()))
			continue
		}
		stagingDiskBytes.WithLabelValues(dir, "total").Set(float64(total))
		stagingDiskBytes.WithLabelValues(dir, "used").Set(float64(used))
		stagingDiskBytes.WithLabelValues(dir, "available").Set(float64(available))
	}
}

// reportDiskUsage периодически обновляет метрики до отмены ctx.
func reportDiskUsage(ctx context.Context, dirs []string, interval time.Duration, logger *slog.Logger) {
	if len(dirs) == 0 {
		return
	}
	updateDiskMetrics(dirs, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateDiskMetrics(dirs, logger)
		}
	}
}
