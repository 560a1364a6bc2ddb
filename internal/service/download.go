package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/arturkryukov/artsore/staging-service/internal/dataorg"
	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/domain/transfer"
	"github.com/arturkryukov/artsore/staging-service/internal/notify"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/record"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/wal"
	"github.com/arturkryukov/artsore/staging-service/internal/task"
)

// DownloadRequest — параметры новой выгрузки.
type DownloadRequest struct {
	DigitalObjectID string
	AccessPointID   string
	// ViewName — представление дерева файлов (пусто — default)
	ViewName string
	// NotificationReceiver — адрес уведомления о готовности (опционально)
	NotificationReceiver string
}

// RegisterDownload создаёт запись download в статусе SCHEDULED
// с процессорами из конфигурации. Если у объекта уже есть активная
// выгрузка, возвращается она.
func (o *Orchestrator) RegisterDownload(ctx context.Context, req DownloadRequest, auth model.AuthContext) (*model.DownloadRecord, error) {
	existing, err := o.downloads.GetDownloadByObject(ctx, req.DigitalObjectID)
	switch {
	case err == nil && existing.Status.IsActive():
		return existing, nil
	case err != nil && !errors.Is(err, record.ErrNotFound):
		return nil, err
	}

	now := o.now().UTC()
	rec := &model.DownloadRecord{
		Transfer: model.Transfer{
			TransferID:      uuid.New().String(),
			DigitalObjectID: req.DigitalObjectID,
			OwnerID:         auth.UserID,
			GroupID:         auth.GroupID,
			AccessPointID:   req.AccessPointID,
			ExpiresAt:       model.ExpiresAtFor(now, o.limits.TransferLifetime),
		},
		Status:               model.DownloadScheduled,
		ViewName:             req.ViewName,
		NotificationReceiver: req.NotificationReceiver,
		Processors:           o.processors.Download,
	}
	if err := o.downloads.CreateDownload(ctx, rec); err != nil {
		if errors.Is(err, record.ErrConflict) {
			return o.downloads.GetDownloadByObject(ctx, req.DigitalObjectID)
		}
		return nil, err
	}

	o.logger.Info("Создана запись download",
		slog.String("transfer_id", rec.TransferID),
		slog.String("object_id", rec.DigitalObjectID),
		slog.String("view", rec.View()),
	)
	return rec, nil
}

// ScheduleDownload подготавливает папку выгрузки объекта objectID.
//
// Подготовка выполняется только для SCHEDULED без URL. DOWNLOAD_READY
// возвращается как SCHEDULED с текущим URL (устаревшие данные очищает
// вызывающая сторона), SCHEDULED с URL возвращается без изменений,
// остальные статусы — с сообщением об ошибке записи. Ошибки подготовки
// сохраняются в записи со статусом PREPARATION_FAILED. error
// возвращается только при сбое хранилища записей.
func (o *Orchestrator) ScheduleDownload(ctx context.Context, objectID, accessPointID string, auth model.AuthContext) (model.PreparationResult, error) {
	rec, err := o.downloads.GetDownloadByObject(ctx, objectID)
	if errors.Is(err, record.ErrNotFound) {
		return model.PreparationResult{Status: string(model.DownloadUnknown), ErrorMessage: msgTransferMissing}, nil
	}
	if err != nil {
		return model.PreparationResult{}, fmt.Errorf("ошибка чтения записи download %s: %w", objectID, err)
	}

	switch {
	case rec.Status == model.DownloadReady:
		return model.PreparationResult{Status: string(model.DownloadScheduled), StagingURL: rec.StagingURL}, nil
	case rec.Status == model.DownloadScheduled && rec.StagingURL != "":
		return model.PreparationResult{Status: string(rec.Status), StagingURL: rec.StagingURL}, nil
	case rec.Status != model.DownloadScheduled:
		return model.PreparationResult{Status: string(rec.Status), ErrorMessage: rec.ErrorMessage}, nil
	}

	if accessPointID == "" {
		accessPointID = rec.AccessPointID
	}

	stagingURL, prepErr := o.prepareDownloadFolder(ctx, rec, accessPointID, auth)
	if prepErr != nil {
		if err := transfer.Download.Check(rec.Status, model.DownloadPreparationFailed); err != nil {
			return model.PreparationResult{}, err
		}
		rec.Status = model.DownloadPreparationFailed
		rec.ErrorMessage = preparationMessage(prepErr)
		preparationsTotal.WithLabelValues(directionDownload, "error").Inc()

		o.logger.Warn("Ошибка планирования download",
			slog.String("transfer_id", rec.TransferID),
			slog.String("access_point_id", accessPointID),
			slog.String("error", prepErr.Error()),
		)
	} else {
		rec.StagingURL = stagingURL
		rec.ErrorMessage = ""
		preparationsTotal.WithLabelValues(directionDownload, "ok").Inc()

		o.logger.Info("Download запланирован",
			slog.String("transfer_id", rec.TransferID),
			slog.String("staging_url", stagingURL),
		)
	}

	if err := o.downloads.TransitionDownload(ctx, rec, model.DownloadScheduled); err != nil {
		return model.PreparationResult{}, fmt.Errorf("ошибка сохранения записи download %s: %w", rec.TransferID, err)
	}
	return model.PreparationResult{
		Status:       string(rec.Status),
		StagingURL:   rec.StagingURL,
		ErrorMessage: rec.ErrorMessage,
	}, nil
}

// prepareDownloadFolder создаёт папку выгрузки и записывает в settings/
// дерево представления и параметры уведомления.
func (o *Orchestrator) prepareDownloadFolder(ctx context.Context, rec *model.DownloadRecord, accessPointID string, auth model.AuthContext) (string, error) {
	ap, err := o.resolver.Resolve(ctx, accessPointID, auth)
	if err != nil {
		return "", err
	}
	rec.AccessPointID = ap.Config().ID

	localPath, err := ap.Prepare(ctx, &rec.Transfer, auth)
	if err != nil {
		return "", err
	}

	tree, err := o.trees.LoadFileTree(ctx, rec.DigitalObjectID, rec.View())
	if err != nil {
		return "", fmt.Errorf("представление %s объекта %s: %w", rec.View(), rec.DigitalObjectID, err)
	}
	settings := filepath.Join(localPath, model.SettingsFolder)
	if err := dataorg.WriteTreeFile(filepath.Join(settings, model.TreeFile), tree); err != nil {
		return "", fmt.Errorf("ошибка записи дерева выгрузки: %w", err)
	}
	if rec.NotificationReceiver != "" {
		if err := notify.WriteProperties(settings, notify.Properties{Receiver: rec.NotificationReceiver}); err != nil {
			return "", fmt.Errorf("ошибка записи параметров уведомления: %w", err)
		}
	}

	return ap.AccessURL(&rec.Transfer, auth)
}

// FinalizeDownload финализирует выгрузку transferID.
func (o *Orchestrator) FinalizeDownload(ctx context.Context, transferID string, auth model.AuthContext) bool {
	rec, err := o.downloads.GetDownload(ctx, transferID)
	if err != nil {
		o.logger.Error("Ошибка чтения записи download",
			slog.String("transfer_id", transferID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return o.finalizeDownload(ctx, rec, auth)
}

// FinalizeDownloads финализирует одну запланированную выгрузку с
// наименьшим ExpiresAt. Политика та же, что у FinalizeIngests.
func (o *Orchestrator) FinalizeDownloads(ctx context.Context) bool {
	release, ok := o.acquire(ctx, directionDownload)
	if !ok {
		return false
	}
	defer release()

	preparing, err := o.downloads.CountDownloads(ctx, model.DownloadPreparing)
	if err != nil {
		o.logger.Error("Ошибка подсчёта подготавливаемых download", slog.String("error", err.Error()))
		return false
	}
	if preparing >= o.limits.MaxParallelDownloads {
		o.logger.Info("Достигнут лимит параллельных download",
			slog.Int("preparing", preparing),
			slog.Int("max", o.limits.MaxParallelDownloads),
		)
		return false
	}

	eligible, err := record.ListEligibleDownloads(ctx, o.downloads)
	if err != nil {
		o.logger.Error("Ошибка выборки download для финализации", slog.String("error", err.Error()))
		return false
	}
	if len(eligible) == 0 {
		o.logger.Debug("Нет download для финализации")
		return true
	}
	return o.finalizeDownload(ctx, eligible[0], model.SystemContext)
}

func (o *Orchestrator) finalizeDownload(ctx context.Context, rec *model.DownloadRecord, auth model.AuthContext) bool {
	log := o.logger.With(
		slog.String("transfer_id", rec.TransferID),
		slog.String("object_id", rec.DigitalObjectID),
	)
	if rec.Status != model.DownloadScheduled {
		log.Warn("Download не готов к финализации", slog.String("status", string(rec.Status)))
		return false
	}

	start := time.Now()
	journal := transfer.NewJournal(transfer.Download, rec.TransferID, rec.Status)
	if err := journal.Transition(model.DownloadPreparing, ""); err != nil {
		log.Error("Недопустимый переход download", slog.String("error", err.Error()))
		return false
	}

	entry, err := o.walBegin(wal.OpDownloadFinalize, rec.TransferID, string(rec.Status))
	if err != nil {
		log.Error("Ошибка записи в WAL, финализация отменена", slog.String("error", err.Error()))
		return false
	}

	rec.Status = journal.Current()
	rec.ErrorMessage = ""
	if err := journal.Checkpoint(ctx, transfer.CheckpointStart, func(ctx context.Context) error {
		return o.downloads.TransitionDownload(ctx, rec, model.DownloadScheduled)
	}); err != nil {
		o.walRollback(entry)
		if errors.Is(err, record.ErrStatusChanged) {
			log.Info("Download уже финализируется или изменён другим исполнителем", slog.String("error", err.Error()))
			finalizationsTotal.WithLabelValues(directionDownload, "conflict").Inc()
			return false
		}
		log.Error("Не удалось сохранить начало финализации download", slog.String("error", err.Error()))
		finalizationsTotal.WithLabelValues(directionDownload, "store_error").Inc()
		return false
	}

	log.Info("Финализация download начата")

	var settingsDir string
	restoreErr := o.safely(rec.TransferID, "restore", func() error {
		var err error
		settingsDir, err = o.restoreDownload(ctx, rec, auth)
		return err
	})
	if restoreErr != nil {
		_ = journal.Fail(model.DownloadPreparationFailed, restoreErr.Error())
	} else {
		_ = journal.Transition(model.DownloadReady, "")
	}

	rec.Status = journal.Current()
	rec.ErrorMessage = journal.Message()
	persistErr := journal.Checkpoint(ctx, transfer.CheckpointEnd, func(ctx context.Context) error {
		return o.downloads.TransitionDownload(ctx, rec, model.DownloadPreparing)
	})
	if errors.Is(persistErr, record.ErrStatusChanged) {
		o.walRollback(entry)
	} else {
		o.walComplete(entry, string(rec.Status), persistErr == nil)
	}

	finalizationDuration.WithLabelValues(directionDownload).Observe(time.Since(start).Seconds())
	switch {
	case persistErr != nil:
		finalizationsTotal.WithLabelValues(directionDownload, "store_error").Inc()
		log.Error("Не удалось сохранить итоговый статус download",
			slog.String("status", string(rec.Status)),
			slog.String("error", persistErr.Error()),
		)
		return false
	case restoreErr != nil:
		finalizationsTotal.WithLabelValues(directionDownload, "error").Inc()
		log.Error("Финализация download завершилась ошибкой", slog.String("error", restoreErr.Error()))
		return false
	}

	finalizationsTotal.WithLabelValues(directionDownload, "ok").Inc()
	log.Info("Download готов",
		slog.String("staging_url", rec.StagingURL),
		slog.Duration("duration", time.Since(start)),
	)
	o.notifyReady(ctx, rec, settingsDir)
	return true
}

// restoreDownload восстанавливает данные представления из архива
// в папку выгрузки и выполняет процессоры download.
// Возвращает путь к папке settings.
func (o *Orchestrator) restoreDownload(ctx context.Context, rec *model.DownloadRecord, auth model.AuthContext) (string, error) {
	ap, err := o.resolver.ResolveForRecord(ctx, &rec.Transfer)
	if err != nil {
		return "", err
	}
	localPath, err := ap.LocalPathForURL(rec.StagingURL, rec.Context())
	if err != nil {
		return "", err
	}
	settingsDir := filepath.Join(localPath, model.SettingsFolder)

	tree, err := dataorg.ReadTreeFromFile(filepath.Join(settingsDir, model.TreeFile))
	if err != nil {
		return "", fmt.Errorf("ошибка чтения дерева выгрузки: %w", err)
	}
	if err := o.storage.Restore(ctx, rec, tree, localPath); err != nil {
		return "", fmt.Errorf("%s %w", msgRestoreFailed, err)
	}

	c := task.New(&rec.Transfer, auth, localPath, tree)
	if err := o.pipeline.RunDownload(ctx, c, rec.Processors); err != nil {
		return "", err
	}
	return settingsDir, nil
}

// notifyReady отправляет уведомление о готовности, если при
// планировании были сохранены параметры уведомления. Ошибки
// только логируются.
func (o *Orchestrator) notifyReady(ctx context.Context, rec *model.DownloadRecord, settingsDir string) {
	props, ok, err := notify.TakeProperties(settingsDir)
	if err != nil {
		o.logger.Warn("Не удалось прочитать параметры уведомления",
			slog.String("transfer_id", rec.TransferID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !ok || o.mailer == nil {
		return
	}

	subject, body := notify.DownloadReady(rec.TransferID, rec.StagingURL)
	if err := o.mailer.Send(ctx, props.Receiver, subject, body); err != nil {
		o.logger.Warn("Не удалось отправить уведомление о готовности",
			slog.String("transfer_id", rec.TransferID),
			slog.String("error", err.Error()),
		)
	}
}

// RescheduleDownload возвращает готовую выгрузку в SCHEDULED для
// повторного восстановления данных в ту же папку.
func (o *Orchestrator) RescheduleDownload(ctx context.Context, transferID string) (*model.DownloadRecord, error) {
	rec, err := o.downloads.GetDownload(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if err := transfer.Download.Check(rec.Status, model.DownloadScheduled); err != nil {
		return nil, err
	}
	rec.Status = model.DownloadScheduled
	rec.ErrorMessage = ""
	if err := o.downloads.TransitionDownload(ctx, rec, model.DownloadReady); err != nil {
		return nil, err
	}
	o.logger.Info("Download запланирован повторно", slog.String("transfer_id", rec.TransferID))
	return rec, nil
}
