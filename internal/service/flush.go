package service

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/domain/transfer"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/record"
)

// DeleteIngest переводит запись ingest объекта в INGEST_REMOVED и
// помечает папку загрузки на удаление. Запись в INGEST_RUNNING не
// удаляется. Если точка доступа не смогла поставить маркер удаления,
// прежний статус восстанавливается и возвращается false.
func (o *Orchestrator) DeleteIngest(ctx context.Context, objectID string) bool {
	rec, err := o.ingests.GetIngest(ctx, objectID)
	if err != nil {
		o.logger.Error("Ошибка чтения записи ingest",
			slog.String("object_id", objectID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return o.deleteIngest(ctx, rec)
}

func (o *Orchestrator) deleteIngest(ctx context.Context, rec *model.IngestRecord) bool {
	log := o.logger.With(slog.String("transfer_id", rec.TransferID))
	switch rec.Status {
	case model.IngestRemoved:
		return true
	case model.IngestRunning:
		log.Warn("Ingest финализируется, удаление отклонено")
		return false
	}

	from := rec.Status
	if err := transfer.Ingest.Check(from, model.IngestRemoved); err != nil {
		log.Error("Недопустимый переход ingest", slog.String("error", err.Error()))
		return false
	}
	rec.Status = model.IngestRemoved
	if err := o.ingests.TransitionIngest(ctx, rec, from); err != nil {
		rec.Status = from
		if errors.Is(err, record.ErrStatusChanged) {
			log.Warn("Статус ingest изменился, удаление отменено", slog.String("error", err.Error()))
			return false
		}
		log.Error("Не удалось сохранить удаление ingest", slog.String("error", err.Error()))
		return false
	}

	if !o.prepareCleanup(ctx, &rec.Transfer) {
		rec.Status = from
		if err := o.ingests.TransitionIngest(ctx, rec, model.IngestRemoved); err != nil {
			log.Error("Не удалось вернуть статус ingest после ошибки очистки",
				slog.String("status", string(from)),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	log.Info("Ingest удалён")
	return true
}

// DeleteDownload переводит запись в DOWNLOAD_REMOVED и помечает папку
// выгрузки на удаление. Выгрузка в PREPARING не удаляется.
func (o *Orchestrator) DeleteDownload(ctx context.Context, transferID string) bool {
	rec, err := o.downloads.GetDownload(ctx, transferID)
	if err != nil {
		o.logger.Error("Ошибка чтения записи download",
			slog.String("transfer_id", transferID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return o.deleteDownload(ctx, rec)
}

func (o *Orchestrator) deleteDownload(ctx context.Context, rec *model.DownloadRecord) bool {
	log := o.logger.With(slog.String("transfer_id", rec.TransferID))
	switch rec.Status {
	case model.DownloadRemoved:
		return true
	case model.DownloadPreparing:
		log.Warn("Download финализируется, удаление отклонено")
		return false
	}

	from := rec.Status
	if err := transfer.Download.Check(from, model.DownloadRemoved); err != nil {
		log.Error("Недопустимый переход download", slog.String("error", err.Error()))
		return false
	}
	rec.Status = model.DownloadRemoved
	if err := o.downloads.TransitionDownload(ctx, rec, from); err != nil {
		rec.Status = from
		if errors.Is(err, record.ErrStatusChanged) {
			log.Warn("Статус download изменился, удаление отменено", slog.String("error", err.Error()))
			return false
		}
		log.Error("Не удалось сохранить удаление download", slog.String("error", err.Error()))
		return false
	}

	if !o.prepareCleanup(ctx, &rec.Transfer) {
		rec.Status = from
		if err := o.downloads.TransitionDownload(ctx, rec, model.DownloadRemoved); err != nil {
			log.Error("Не удалось вернуть статус download после ошибки очистки",
				slog.String("status", string(from)),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	log.Info("Download удалён")
	return true
}

// prepareCleanup ставит маркер удаления через точку доступа записи.
func (o *Orchestrator) prepareCleanup(ctx context.Context, t *model.Transfer) bool {
	ap, err := o.resolver.ResolveForRecord(ctx, t)
	if err != nil {
		o.logger.Error("Точка доступа перемещения не разрешена",
			slog.String("transfer_id", t.TransferID),
			slog.String("access_point_id", t.AccessPointID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ap.PrepareCleanup(ctx, t, t.Context())
}

// IsTransferDeleted проверяет, удалена ли папка перемещения (маркер
// удаления или отсутствие папки).
func (o *Orchestrator) IsTransferDeleted(ctx context.Context, t *model.Transfer) (bool, error) {
	ap, err := o.resolver.ResolveForRecord(ctx, t)
	if err != nil {
		return false, err
	}
	return ap.IsTransferDeleted(t, t.Context()), nil
}

// FlushIngest удаляет папку загрузки объекта. Отсутствующая запись —
// успех; недоступная папка — false без ошибки.
func (o *Orchestrator) FlushIngest(ctx context.Context, objectID string) bool {
	rec, err := o.ingests.GetIngest(ctx, objectID)
	if errors.Is(err, record.ErrNotFound) {
		return true
	}
	if err != nil {
		o.logger.Error("Ошибка чтения записи ingest",
			slog.String("object_id", objectID),
			slog.String("error", err.Error()),
		)
		return false
	}
	_, err = o.flushFolder(ctx, &rec.Transfer, false)
	flushesTotal.WithLabelValues(directionIngest, resultLabel(err == nil)).Inc()
	return err == nil
}

// FlushDownload удаляет папку выгрузки и ставит маркер удаления через
// точку доступа. Ошибка маркера после удаления папки только логируется.
func (o *Orchestrator) FlushDownload(ctx context.Context, transferID string) bool {
	rec, err := o.downloads.GetDownload(ctx, transferID)
	if errors.Is(err, record.ErrNotFound) {
		return true
	}
	if err != nil {
		o.logger.Error("Ошибка чтения записи download",
			slog.String("transfer_id", transferID),
			slog.String("error", err.Error()),
		)
		return false
	}
	_, err = o.flushFolder(ctx, &rec.Transfer, true)
	flushesTotal.WithLabelValues(directionDownload, resultLabel(err == nil)).Inc()
	return err == nil
}

// flushFolder удаляет папку перемещения t. removed=true, если папка
// существовала и удалена. cleanup=true дополнительно ставит маркер
// удаления через точку доступа.
func (o *Orchestrator) flushFolder(ctx context.Context, t *model.Transfer, cleanup bool) (removed bool, err error) {
	if t.StagingURL == "" {
		return false, nil
	}
	ap, err := o.resolver.ResolveForRecord(ctx, t)
	if err != nil {
		o.logger.Warn("Точка доступа перемещения не разрешена, очистка пропущена",
			slog.String("transfer_id", t.TransferID),
			slog.String("error", err.Error()),
		)
		return false, err
	}
	localPath, err := ap.LocalPathForURL(t.StagingURL, t.Context())
	if err != nil {
		return false, err
	}

	_, statErr := os.Stat(localPath)
	switch {
	case errors.Is(statErr, os.ErrNotExist):
	case statErr != nil:
		o.logger.Warn("Папка перемещения недоступна",
			slog.String("transfer_id", t.TransferID),
			slog.String("path", localPath),
			slog.String("error", statErr.Error()),
		)
		return false, statErr
	default:
		if err := os.RemoveAll(localPath); err != nil {
			o.logger.Warn("Не удалось удалить папку перемещения",
				slog.String("transfer_id", t.TransferID),
				slog.String("path", localPath),
				slog.String("error", err.Error()),
			)
			return false, err
		}
		removed = true
		o.logger.Info("Папка перемещения удалена",
			slog.String("transfer_id", t.TransferID),
			slog.String("path", localPath),
		)
	}

	if cleanup && !ap.PrepareCleanup(ctx, t, t.Context()) {
		o.logger.Warn("Точка доступа не выполнила очистку после удаления папки",
			slog.String("transfer_id", t.TransferID),
			slog.String("access_point_id", ap.Config().ID),
		)
	}
	return removed, nil
}
