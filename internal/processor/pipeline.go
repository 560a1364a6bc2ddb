package processor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/task"
)

var (
	processorRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stg_processor_runs_total",
		Help: "Количество выполнений процессоров по реализации, фазе и результату.",
	}, []string{"implementation", "phase", "result"})

	processorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stg_processor_duration_seconds",
		Help:    "Длительность выполнения процессоров.",
		Buckets: prometheus.DefBuckets,
	}, []string{"implementation", "phase"})
)

// Pipeline выполняет процессоры перемещения.
type Pipeline struct {
	registry *Registry
	logger   *slog.Logger
}

// NewPipeline создаёт конвейер.
func NewPipeline(registry *Registry, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		registry: registry,
		logger:   logger.With(slog.String("component", "pipeline")),
	}
}

// RunPreArchive выполняет процессоры до архивирования по приоритету.
// Первая ошибка прерывает конвейер, оставшиеся процессоры не выполняются.
func (p *Pipeline) RunPreArchive(ctx context.Context, c *task.Container, cfgs []model.StagingProcessorConfig) error {
	return p.runFailFast(ctx, c, cfgs, PhasePreArchive)
}

// RunDownload выполняет процессоры после восстановления данных.
// Первая ошибка прерывает конвейер.
func (p *Pipeline) RunDownload(ctx context.Context, c *task.Container, cfgs []model.StagingProcessorConfig) error {
	return p.runFailFast(ctx, c, cfgs, PhaseDownload)
}

// RunPostArchive выполняет процессоры после архивирования.
// Ошибки каждого процессора логируются и возвращаются, конвейер
// продолжается.
func (p *Pipeline) RunPostArchive(ctx context.Context, c *task.Container, cfgs []model.StagingProcessorConfig) []error {
	var errs []error
	for _, cfg := range Ordered(cfgs) {
		if err := p.runOne(ctx, c, cfg, PhasePostArchive); err != nil {
			p.logger.Warn("Ошибка процессора после архивирования",
				slog.String("transfer_id", c.Transfer().TransferID),
				slog.String("processor", cfg.DisplayName()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}
	return errs
}

func (p *Pipeline) runFailFast(ctx context.Context, c *task.Container, cfgs []model.StagingProcessorConfig, phase Phase) error {
	for _, cfg := range Ordered(cfgs) {
		if err := p.runOne(ctx, c, cfg, phase); err != nil {
			p.logger.Error("Ошибка процессора, конвейер прерван",
				slog.String("transfer_id", c.Transfer().TransferID),
				slog.String("processor", cfg.DisplayName()),
				slog.String("phase", string(phase)),
				slog.String("error", err.Error()),
			)
			return err
		}
	}
	return nil
}

func (p *Pipeline) runOne(ctx context.Context, c *task.Container, cfg model.StagingProcessorConfig, phase Phase) error {
	proc, err := p.registry.Create(cfg, phase, p.logger)
	if err != nil {
		processorRunsTotal.WithLabelValues(cfg.Implementation, string(phase), "config_error").Inc()
		return err
	}

	start := time.Now()
	err = p.execute(ctx, proc, c, cfg, phase)
	processorDuration.WithLabelValues(cfg.Implementation, string(phase)).Observe(time.Since(start).Seconds())

	if err != nil {
		processorRunsTotal.WithLabelValues(cfg.Implementation, string(phase), "error").Inc()
		return &Error{Processor: cfg.DisplayName(), Phase: phase, Op: OpExecute, Err: err}
	}
	processorRunsTotal.WithLabelValues(cfg.Implementation, string(phase), "ok").Inc()

	p.logger.Debug("Процессор выполнен",
		slog.String("transfer_id", c.Transfer().TransferID),
		slog.String("processor", cfg.DisplayName()),
		slog.String("phase", string(phase)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// execute вызывает процессор. Паника процессора возвращается как ошибка.
func (p *Pipeline) execute(ctx context.Context, proc Processor, c *task.Container, cfg model.StagingProcessorConfig, phase Phase) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Паника в процессоре",
				slog.String("transfer_id", c.Transfer().TransferID),
				slog.String("processor", cfg.DisplayName()),
				slog.String("phase", string(phase)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("паника: %v", r)
		}
	}()
	return proc.Execute(ctx, c, phase)
}
