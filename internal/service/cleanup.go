// cleanup.go — сервис очистки перемещений.
//
// Очистка выполняет две задачи:
//  1. Переводит активные и завершённые перемещения с истёкшим ExpiresAt
//     в удалённый статус (маркер удаления + статус записи)
//  2. Удаляет папки удалённых перемещений в кэше staging
//
// Записи о перемещениях не удаляются. Запускается после финализации
// в CLI и периодически в демоне (STG_CLEANUP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

// Prometheus метрики очистки
var (
	cleanupRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stg_cleanup_runs_total",
		Help: "Общее количество запусков очистки",
	})

	cleanupExpiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stg_cleanup_expired_total",
		Help: "Количество перемещений, удалённых по истечении срока",
	}, []string{"direction"})

	cleanupFlushedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stg_cleanup_flushed_total",
		Help: "Количество удалённых папок перемещений",
	}, []string{"direction"})

	cleanupDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stg_cleanup_duration_seconds",
		Help:    "Длительность очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// CleanupResult — результат одного запуска очистки.
type CleanupResult struct {
	// ExpiredCount — перемещения, переведённые в удалённый статус по сроку
	ExpiredCount int
	// FlushedCount — удалённые папки
	FlushedCount int
	// Errors — количество ошибок
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// CleanupService — сервис очистки перемещений.
type CleanupService struct {
	orch     *Orchestrator
	interval time.Duration
	isLeader func() bool
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCleanupService создаёт сервис очистки. isLeader может быть nil —
// тогда очистка выполняется всегда.
func NewCleanupService(orch *Orchestrator, interval time.Duration, isLeader func() bool, logger *slog.Logger) *CleanupService {
	return &CleanupService{
		orch:     orch,
		interval: interval,
		isLeader: isLeader,
		logger:   logger.With(slog.String("component", "cleanup")),
	}
}

// Start запускает фоновую горутину очистки.
func (s *CleanupService) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx)

	s.logger.Info("Очистка запущена", slog.String("interval", s.interval.String()))
}

// Stop останавливает фоновую очистку и ждёт завершения текущего запуска.
func (s *CleanupService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Очистка остановлена")
}

func (s *CleanupService) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.isLeader != nil && !s.isLeader() {
				continue
			}
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл очистки.
func (s *CleanupService) RunOnce(ctx context.Context) *CleanupResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &CleanupResult{}
	now := s.orch.now()

	s.cleanIngests(ctx, now, result)
	s.cleanDownloads(ctx, now, result)

	result.Duration = time.Since(start)
	cleanupRunsTotal.Inc()
	cleanupDurationSeconds.Observe(result.Duration.Seconds())

	s.logger.Info("Очистка завершена",
		slog.Int("expired", result.ExpiredCount),
		slog.Int("flushed", result.FlushedCount),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)
	return result
}

func (s *CleanupService) cleanIngests(ctx context.Context, now time.Time, result *CleanupResult) {
	recs, err := s.orch.ingests.ListIngests(ctx)
	if err != nil {
		s.logger.Error("Ошибка чтения записей ingest", slog.String("error", err.Error()))
		result.Errors++
		return
	}

	for _, rec := range recs {
		if ctx.Err() != nil {
			return
		}
		// Выполняющаяся финализация не прерывается
		if rec.Status == model.IngestRunning {
			continue
		}
		if rec.Status != model.IngestRemoved {
			if !rec.IsExpired(now) {
				continue
			}
			if !s.orch.deleteIngest(ctx, rec) {
				result.Errors++
				continue
			}
			result.ExpiredCount++
			cleanupExpiredTotal.WithLabelValues(directionIngest).Inc()
		}

		removed, err := s.orch.flushFolder(ctx, &rec.Transfer, false)
		if err != nil {
			result.Errors++
			continue
		}
		if removed {
			result.FlushedCount++
			cleanupFlushedTotal.WithLabelValues(directionIngest).Inc()
		}
	}
}

func (s *CleanupService) cleanDownloads(ctx context.Context, now time.Time, result *CleanupResult) {
	recs, err := s.orch.downloads.ListDownloads(ctx)
	if err != nil {
		s.logger.Error("Ошибка чтения записей download", slog.String("error", err.Error()))
		result.Errors++
		return
	}

	for _, rec := range recs {
		if ctx.Err() != nil {
			return
		}
		if rec.Status == model.DownloadPreparing {
			continue
		}
		if rec.Status != model.DownloadRemoved {
			if !rec.IsExpired(now) {
				continue
			}
			if !s.orch.deleteDownload(ctx, rec) {
				result.Errors++
				continue
			}
			result.ExpiredCount++
			cleanupExpiredTotal.WithLabelValues(directionDownload).Inc()
		}

		removed, err := s.orch.flushFolder(ctx, &rec.Transfer, true)
		if err != nil {
			result.Errors++
			continue
		}
		if removed {
			result.FlushedCount++
			cleanupFlushedTotal.WithLabelValues(directionDownload).Inc()
		}
	}
}
