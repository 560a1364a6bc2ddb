// orchestrator.go — оркестратор перемещений staging.
//
// Orchestrator ведёт записи ingest и download по их конечным автоматам:
// подготовка папки через точку доступа, финализация (архивирование
// загруженных данных или восстановление данных из архива), удаление
// и очистка. Каждая финализация сохраняет запись ровно дважды:
// статус начала работы до выполнения и итоговый статус после.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/artsore/staging-service/internal/accesspoint"
	"github.com/arturkryukov/artsore/staging-service/internal/config"
	"github.com/arturkryukov/artsore/staging-service/internal/dataorg"
	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/notify"
	"github.com/arturkryukov/artsore/staging-service/internal/processor"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/record"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/wal"
	"github.com/arturkryukov/artsore/staging-service/internal/virtualization"
)

// Направления для меток метрик и имён аренды.
const (
	directionIngest   = string(model.DirectionIngest)
	directionDownload = string(model.DirectionDownload)
)

// Prometheus метрики оркестратора
var (
	finalizationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stg_finalizations_total",
		Help: "Количество финализаций по направлению и результату",
	}, []string{"direction", "result"})

	finalizationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stg_finalization_duration_seconds",
		Help:    "Длительность финализации в секундах",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
	}, []string{"direction"})

	preparationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stg_preparations_total",
		Help: "Количество подготовок папок перемещений по направлению и результату",
	}, []string{"direction", "result"})

	finalizationPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stg_finalization_panics_total",
		Help: "Количество паник, перехваченных на этапах финализации",
	}, []string{"stage"})

	flushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stg_flushes_total",
		Help: "Количество очисток папок перемещений по направлению и результату",
	}, []string{"direction", "result"})
)

// Сообщения об ошибках, сохраняемые в записях.
const (
	msgNoUploadedData  = "Загруженные данные не найдены."
	msgTransferMissing = "Перемещение не найдено."
	msgStoreFailed     = "Не удалось сохранить данные в архив."
	msgRestoreFailed   = "Не удалось восстановить данные из архива."
	msgPanic           = "Внутренняя ошибка финализации"
)

// Deps — зависимости оркестратора.
type Deps struct {
	Ingests   record.IngestStore
	Downloads record.DownloadStore
	// Resolver разрешает точки доступа по каталогу.
	Resolver *accesspoint.Resolver
	// Pipeline выполняет процессоры.
	Pipeline *processor.Pipeline
	// Trees — порт организации данных.
	Trees dataorg.Store
	// Storage — порт виртуализации хранилища.
	Storage virtualization.Adapter
	// Mailer — отправка уведомлений (nil — уведомления не отправляются).
	Mailer notify.Sender
	// WAL — журнал финализаций (nil — журнал отключён).
	WAL *wal.WAL
	// Leaser — аренда пакетной финализации (nil — без аренды).
	Leaser record.Leaser
	// Limits — лимиты параллельности и срок жизни перемещений.
	Limits config.Limits
	// Processors — процессоры, назначаемые новым перемещениям.
	Processors config.Processors
}

// Orchestrator — оркестратор перемещений.
type Orchestrator struct {
	ingests    record.IngestStore
	downloads  record.DownloadStore
	resolver   *accesspoint.Resolver
	pipeline   *processor.Pipeline
	trees      dataorg.Store
	storage    virtualization.Adapter
	mailer     notify.Sender
	wal        *wal.WAL
	leaser     record.Leaser
	limits     config.Limits
	processors config.Processors
	now        func() time.Time
	logger     *slog.Logger
}

// NewOrchestrator создаёт оркестратор.
func NewOrchestrator(deps Deps, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		ingests:    deps.Ingests,
		downloads:  deps.Downloads,
		resolver:   deps.Resolver,
		pipeline:   deps.Pipeline,
		trees:      deps.Trees,
		storage:    deps.Storage,
		mailer:     deps.Mailer,
		wal:        deps.WAL,
		leaser:     deps.Leaser,
		limits:     deps.Limits,
		processors: deps.Processors,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "orchestrator")),
	}
}

// acquire берёт аренду пакетной финализации направления.
// Без Leaser аренда всегда успешна.
func (o *Orchestrator) acquire(ctx context.Context, direction string) (func(), bool) {
	if o.leaser == nil {
		return func() {}, true
	}
	release, ok, err := o.leaser.Acquire(ctx, "finalize-"+direction)
	if err != nil {
		o.logger.Error("Ошибка получения аренды финализации",
			slog.String("direction", direction),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	if !ok {
		o.logger.Debug("Аренда финализации удерживается другим исполнителем",
			slog.String("direction", direction),
		)
		return nil, false
	}
	return release, true
}

// walBegin открывает запись журнала финализаций. Без журнала возвращает nil.
func (o *Orchestrator) walBegin(op wal.OperationType, transferID, from string) (*wal.Entry, error) {
	if o.wal == nil {
		return nil, nil
	}
	return o.wal.Begin(op, transferID, from)
}

// walComplete фиксирует результат финализации в журнале. Если итоговый
// статус не сохранён, запись остаётся pending для восстановления.
func (o *Orchestrator) walComplete(entry *wal.Entry, finalStatus string, persisted bool) {
	if entry == nil || !persisted {
		return
	}
	if err := o.wal.Commit(entry.TransactionID, finalStatus); err != nil {
		o.logger.Warn("Не удалось зафиксировать WAL-запись",
			slog.String("tx_id", entry.TransactionID),
			slog.String("error", err.Error()),
		)
	}
}

func (o *Orchestrator) walRollback(entry *wal.Entry) {
	if entry == nil {
		return
	}
	if err := o.wal.Rollback(entry.TransactionID); err != nil {
		o.logger.Warn("Не удалось откатить WAL-запись",
			slog.String("tx_id", entry.TransactionID),
			slog.String("error", err.Error()),
		)
	}
}

// safely выполняет этап финализации fn. Паника превращается в ошибку,
// чтобы запись получила итоговый статус вместо зависшего рабочего.
func (o *Orchestrator) safely(transferID, stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Паника при финализации",
				slog.String("transfer_id", transferID),
				slog.String("stage", stage),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			finalizationPanicsTotal.WithLabelValues(stage).Inc()
			err = fmt.Errorf("%s (%s): %v", msgPanic, stage, r)
		}
	}()
	return fn()
}

// preparationMessage формирует сообщение ошибки подготовки для записи.
func preparationMessage(err error) string {
	var prepErr *accesspoint.PreparationError
	switch {
	case errors.As(err, &prepErr):
		return prepErr.Error()
	case errors.Is(err, accesspoint.ErrUnknownAccessPoint):
		return fmt.Sprintf("Точка доступа не найдена: %v", err)
	case errors.Is(err, accesspoint.ErrDisabled):
		return fmt.Sprintf("Точка доступа отключена: %v", err)
	default:
		return err.Error()
	}
}

// resultLabel возвращает метку результата для метрик.
func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// hasEligibleIngests сообщает, есть ли ingest, готовые к финализации.
func (o *Orchestrator) hasEligibleIngests(ctx context.Context) bool {
	recs, err := record.ListEligibleIngests(ctx, o.ingests)
	return err == nil && len(recs) > 0
}

// hasEligibleDownloads сообщает, есть ли выгрузки, готовые к финализации.
func (o *Orchestrator) hasEligibleDownloads(ctx context.Context) bool {
	recs, err := record.ListEligibleDownloads(ctx, o.downloads)
	return err == nil && len(recs) > 0
}
