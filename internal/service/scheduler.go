// scheduler.go — периодическая финализация перемещений в режиме демона.
//
// На каждом тике FinalizerService вызывает FinalizeIngests и
// FinalizeDownloads, пока они возвращают true и есть готовые записи,
// но не больше лимита параллельности направления. Финализация
// выполняется только на лидере (isLeader), чтобы несколько демонов
// с общим корнем staging не конкурировали за записи.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var finalizerTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "stg_finalizer_ticks_total",
	Help: "Количество циклов периодической финализации",
})

// FinalizerResult — результат одного цикла финализации.
type FinalizerResult struct {
	// Ingests — количество успешных финализаций ingest
	Ingests int
	// Downloads — количество успешных финализаций download
	Downloads int
	Duration  time.Duration
}

// FinalizerService — периодический финализатор.
type FinalizerService struct {
	orch     *Orchestrator
	interval time.Duration
	isLeader func() bool
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFinalizerService создаёт финализатор. isLeader может быть nil.
func NewFinalizerService(orch *Orchestrator, interval time.Duration, isLeader func() bool, logger *slog.Logger) *FinalizerService {
	return &FinalizerService{
		orch:     orch,
		interval: interval,
		isLeader: isLeader,
		logger:   logger.With(slog.String("component", "finalizer")),
	}
}

// Start запускает фоновую горутину финализации.
func (s *FinalizerService) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx)

	s.logger.Info("Финализатор запущен", slog.String("interval", s.interval.String()))
}

// Stop останавливает финализатор и ждёт завершения текущего цикла.
// Начатая финализация не прерывается.
func (s *FinalizerService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Финализатор остановлен")
}

func (s *FinalizerService) run(ctx context.Context) {
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

// RunOnce выполняет один цикл финализации обоих направлений.
func (s *FinalizerService) RunOnce(ctx context.Context) *FinalizerResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &FinalizerResult{}

	result.Ingests = s.drain(ctx, s.orch.limits.MaxParallelIngests, s.orch.FinalizeIngests, s.orch.hasEligibleIngests)
	result.Downloads = s.drain(ctx, s.orch.limits.MaxParallelDownloads, s.orch.FinalizeDownloads, s.orch.hasEligibleDownloads)

	result.Duration = time.Since(start)
	finalizerTicksTotal.Inc()

	if result.Ingests > 0 || result.Downloads > 0 {
		s.logger.Info("Цикл финализации завершён",
			slog.Int("ingests", result.Ingests),
			slog.Int("downloads", result.Downloads),
			slog.Duration("duration", result.Duration),
		)
	}
	return result
}

// drain вызывает finalize, пока есть готовые записи, не больше limit раз.
func (s *FinalizerService) drain(ctx context.Context, limit int, finalize func(context.Context) bool, pending func(context.Context) bool) int {
	done := 0
	for i := 0; i < limit; i++ {
		if ctx.Err() != nil || !pending(ctx) {
			break
		}
		if !finalize(ctx) {
			break
		}
		done++
	}
	return done
}
