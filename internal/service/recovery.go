// recovery.go — восстановление зависших перемещений при старте демона.
//
// Финализация сохраняет статус начала работы до выполнения. Если процесс
// завершился во время финализации, запись остаётся в INGEST_RUNNING или
// PREPARING и не выбирается финализатором. Восстановление:
//   - INGEST_RUNNING → INGEST_FAILED, если представление default уже
//     сохранено (архивирование выполнено), иначе → PRE_INGEST_FINISHED
//   - download PREPARING → SCHEDULED
//
// Незавершённые записи журнала финализаций помечаются отменёнными.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/domain/transfer"
)

const msgInterrupted = "Финализация прервана, архивная копия уже создана."

var recoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stg_recovered_transfers_total",
	Help: "Количество восстановленных зависших перемещений",
}, []string{"direction", "status"})

// RecoveryResult — результат восстановления.
type RecoveryResult struct {
	Ingests   int
	Downloads int
	// PendingWAL — незавершённые записи журнала на момент старта
	PendingWAL int
}

// RecoverStale восстанавливает зависшие перемещения. Вызывается
// до запуска финализатора, когда другие исполнители не работают.
func (o *Orchestrator) RecoverStale(ctx context.Context) (*RecoveryResult, error) {
	result := &RecoveryResult{}

	if o.wal != nil {
		pending, err := o.wal.RecoverPending()
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения WAL: %w", err)
		}
		result.PendingWAL = len(pending)
	}

	ingests, err := o.ingests.ListIngests(ctx, model.IngestRunning)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки зависших ingest: %w", err)
	}
	for _, rec := range ingests {
		hasView, err := o.trees.HasView(ctx, rec.DigitalObjectID, model.DefaultView)
		if err != nil {
			return nil, err
		}
		target, message := model.IngestPreIngestFinished, ""
		if hasView {
			target, message = model.IngestFailed, msgInterrupted
		}
		if err := transfer.Ingest.Check(rec.Status, target); err != nil {
			return nil, err
		}
		rec.Status = target
		rec.ErrorMessage = message
		if err := o.ingests.TransitionIngest(ctx, rec, model.IngestRunning); err != nil {
			return nil, fmt.Errorf("ошибка сохранения ingest %s: %w", rec.TransferID, err)
		}
		o.resolveWAL(rec.TransferID)
		recoveredTotal.WithLabelValues(directionIngest, string(target)).Inc()
		result.Ingests++

		o.logger.Warn("Восстановлен зависший ingest",
			slog.String("transfer_id", rec.TransferID),
			slog.String("status", string(target)),
		)
	}

	downloads, err := o.downloads.ListDownloads(ctx, model.DownloadPreparing)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки зависших download: %w", err)
	}
	for _, rec := range downloads {
		if err := transfer.Download.Check(rec.Status, model.DownloadScheduled); err != nil {
			return nil, err
		}
		rec.Status = model.DownloadScheduled
		rec.ErrorMessage = ""
		if err := o.downloads.TransitionDownload(ctx, rec, model.DownloadPreparing); err != nil {
			return nil, fmt.Errorf("ошибка сохранения download %s: %w", rec.TransferID, err)
		}
		o.resolveWAL(rec.TransferID)
		recoveredTotal.WithLabelValues(directionDownload, string(model.DownloadScheduled)).Inc()
		result.Downloads++

		o.logger.Warn("Восстановлен зависший download", slog.String("transfer_id", rec.TransferID))
	}

	if o.wal != nil {
		if _, err := o.wal.CleanCommitted(); err != nil {
			o.logger.Warn("Ошибка очистки WAL", slog.String("error", err.Error()))
		}
	}

	o.logger.Info("Восстановление перемещений завершено",
		slog.Int("ingests", result.Ingests),
		slog.Int("downloads", result.Downloads),
		slog.Int("pending_wal", result.PendingWAL),
	)
	return result, nil
}

func (o *Orchestrator) resolveWAL(transferID string) {
	if o.wal == nil {
		return
	}
	if err := o.wal.Resolve(transferID); err != nil {
		o.logger.Warn("Не удалось закрыть WAL-записи перемещения",
			slog.String("transfer_id", transferID),
			slog.String("error", err.Error()),
		)
	}
}
