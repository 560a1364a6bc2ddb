package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/danjacques/gofslock/fslock"
	"github.com/google/uuid"

	"github.com/arturkryukov/artsore/staging-service/internal/dataorg"
	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/domain/transfer"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/record"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/wal"
	"github.com/arturkryukov/artsore/staging-service/internal/task"
)

// RegisterIngest создаёт запись ingest объекта в статусе PREPARING
// с процессорами из конфигурации. Если у объекта уже есть активная
// запись, возвращается она.
func (o *Orchestrator) RegisterIngest(ctx context.Context, objectID, accessPointID string, auth model.AuthContext) (*model.IngestRecord, error) {
	existing, err := o.ingests.GetIngest(ctx, objectID)
	switch {
	case err == nil && existing.Status.IsActive():
		return existing, nil
	case err != nil && !errors.Is(err, record.ErrNotFound):
		return nil, err
	}

	now := o.now().UTC()
	rec := &model.IngestRecord{
		Transfer: model.Transfer{
			TransferID:      uuid.New().String(),
			DigitalObjectID: objectID,
			OwnerID:         auth.UserID,
			GroupID:         auth.GroupID,
			AccessPointID:   accessPointID,
			ExpiresAt:       model.ExpiresAtFor(now, o.limits.TransferLifetime),
		},
		Status:         model.IngestPreparing,
		PreProcessors:  o.processors.PreArchive,
		PostProcessors: o.processors.PostArchive,
	}
	if err := o.ingests.CreateIngest(ctx, rec); err != nil {
		if errors.Is(err, record.ErrConflict) {
			return o.ingests.GetIngest(ctx, objectID)
		}
		return nil, err
	}

	o.logger.Info("Создана запись ingest",
		slog.String("transfer_id", rec.TransferID),
		slog.String("object_id", objectID),
		slog.String("owner_id", rec.OwnerID),
	)
	return rec, nil
}

// PrepareIngest подготавливает папку загрузки объекта objectID.
//
// Подготовка выполняется только из PREPARING. Для PRE_INGEST_SCHEDULED
// возвращается текущий URL, для остальных статусов — статус и сообщение
// об ошибке записи без изменений. Ошибки точки доступа сохраняются
// в записи со статусом PREPARATION_FAILED. error возвращается только
// при сбое хранилища записей.
func (o *Orchestrator) PrepareIngest(ctx context.Context, objectID, accessPointID string, auth model.AuthContext) (model.PreparationResult, error) {
	rec, err := o.ingests.GetIngest(ctx, objectID)
	if errors.Is(err, record.ErrNotFound) {
		return model.PreparationResult{Status: string(model.IngestUnknown), ErrorMessage: msgTransferMissing}, nil
	}
	if err != nil {
		return model.PreparationResult{}, fmt.Errorf("ошибка чтения записи ingest %s: %w", objectID, err)
	}

	switch rec.Status {
	case model.IngestPreIngestScheduled:
		return model.PreparationResult{Status: string(rec.Status), StagingURL: rec.StagingURL}, nil
	case model.IngestPreparing:
	default:
		return model.PreparationResult{Status: string(rec.Status), ErrorMessage: rec.ErrorMessage}, nil
	}

	if accessPointID == "" {
		accessPointID = rec.AccessPointID
	}

	stagingURL, prepErr := o.prepareIngestFolder(ctx, rec, accessPointID, auth)
	if prepErr != nil {
		if err := transfer.Ingest.Check(rec.Status, model.IngestPreparationFailed); err != nil {
			return model.PreparationResult{}, err
		}
		rec.Status = model.IngestPreparationFailed
		rec.ErrorMessage = preparationMessage(prepErr)
		preparationsTotal.WithLabelValues(directionIngest, "error").Inc()

		o.logger.Warn("Ошибка подготовки ingest",
			slog.String("transfer_id", rec.TransferID),
			slog.String("access_point_id", accessPointID),
			slog.String("error", prepErr.Error()),
		)
	} else {
		if err := transfer.Ingest.Check(rec.Status, model.IngestPreIngestScheduled); err != nil {
			return model.PreparationResult{}, err
		}
		rec.Status = model.IngestPreIngestScheduled
		rec.StagingURL = stagingURL
		rec.ErrorMessage = ""
		preparationsTotal.WithLabelValues(directionIngest, "ok").Inc()

		o.logger.Info("Папка загрузки подготовлена",
			slog.String("transfer_id", rec.TransferID),
			slog.String("staging_url", stagingURL),
		)
	}

	if err := o.ingests.TransitionIngest(ctx, rec, model.IngestPreparing); err != nil {
		return model.PreparationResult{}, fmt.Errorf("ошибка сохранения записи ingest %s: %w", rec.TransferID, err)
	}
	return model.PreparationResult{
		Status:       string(rec.Status),
		StagingURL:   rec.StagingURL,
		ErrorMessage: rec.ErrorMessage,
	}, nil
}

func (o *Orchestrator) prepareIngestFolder(ctx context.Context, rec *model.IngestRecord, accessPointID string, auth model.AuthContext) (string, error) {
	ap, err := o.resolver.Resolve(ctx, accessPointID, auth)
	if err != nil {
		return "", err
	}
	rec.AccessPointID = ap.Config().ID

	if _, err := ap.Prepare(ctx, &rec.Transfer, auth); err != nil {
		return "", err
	}
	return ap.AccessURL(&rec.Transfer, auth)
}

// clientIngestStatuses — статусы, которые сообщает клиент загрузки.
var clientIngestStatuses = map[model.IngestStatus]bool{
	model.IngestPreIngestRunning:  true,
	model.IngestPreIngestFinished: true,
	model.IngestPreIngestFailed:   true,
}

// UpdateIngestStatus сохраняет статус загрузки, сообщённый клиентом:
// PRE_INGEST_RUNNING, PRE_INGEST_FINISHED или PRE_INGEST_FAILED.
// Переход проверяется конечным автоматом ingest и сохраняется условно
// по прочитанному статусу. Повтор текущего статуса не меняет запись.
func (o *Orchestrator) UpdateIngestStatus(ctx context.Context, objectID string, to model.IngestStatus, message string) (*model.IngestRecord, error) {
	if !clientIngestStatuses[to] {
		return nil, &transfer.TransitionError{
			Code:    transfer.CodeInvalidTransition,
			Message: fmt.Sprintf("статус %s не устанавливается клиентом", to),
		}
	}

	rec, err := o.ingests.GetIngest(ctx, objectID)
	if err != nil {
		return nil, err
	}
	if rec.Status == to {
		return rec, nil
	}

	from := rec.Status
	if from == model.IngestRunning {
		return nil, &transfer.TransitionError{
			Code:    transfer.CodeInvalidTransition,
			Message: fmt.Sprintf("ingest %s финализируется", rec.TransferID),
		}
	}
	if err := transfer.Ingest.Check(from, to); err != nil {
		return nil, err
	}
	rec.Status = to
	rec.ErrorMessage = ""
	if to == model.IngestPreIngestFailed {
		rec.ErrorMessage = message
	}
	if err := o.ingests.TransitionIngest(ctx, rec, from); err != nil {
		return nil, err
	}

	o.logger.Info("Статус загрузки обновлён клиентом",
		slog.String("transfer_id", rec.TransferID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	return rec, nil
}

// FinalizeIngest финализирует ingest объекта objectID.
// Возвращает false, если запись не найдена, не готова к финализации,
// финализация завершилась ошибкой или итоговый статус не сохранён.
func (o *Orchestrator) FinalizeIngest(ctx context.Context, objectID string, auth model.AuthContext) bool {
	rec, err := o.ingests.GetIngest(ctx, objectID)
	if err != nil {
		o.logger.Error("Ошибка чтения записи ingest",
			slog.String("object_id", objectID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return o.finalizeIngest(ctx, rec, auth)
}

// FinalizeIngests финализирует одну запись ingest с наименьшим ExpiresAt.
// Возвращает false, если достигнут лимит параллельных ingest или
// финализация выбранной записи не удалась; true, если готовых записей
// нет или финализация успешна.
func (o *Orchestrator) FinalizeIngests(ctx context.Context) bool {
	release, ok := o.acquire(ctx, directionIngest)
	if !ok {
		return false
	}
	defer release()

	running, err := o.ingests.CountIngests(ctx, model.IngestRunning)
	if err != nil {
		o.logger.Error("Ошибка подсчёта выполняющихся ingest", slog.String("error", err.Error()))
		return false
	}
	if running >= o.limits.MaxParallelIngests {
		o.logger.Info("Достигнут лимит параллельных ingest",
			slog.Int("running", running),
			slog.Int("max", o.limits.MaxParallelIngests),
		)
		return false
	}

	eligible, err := record.ListEligibleIngests(ctx, o.ingests)
	if err != nil {
		o.logger.Error("Ошибка выборки ingest для финализации", slog.String("error", err.Error()))
		return false
	}
	if len(eligible) == 0 {
		o.logger.Debug("Нет ingest для финализации")
		return true
	}
	return o.finalizeIngest(ctx, eligible[0], model.SystemContext)
}

func (o *Orchestrator) finalizeIngest(ctx context.Context, rec *model.IngestRecord, auth model.AuthContext) bool {
	log := o.logger.With(
		slog.String("transfer_id", rec.TransferID),
		slog.String("object_id", rec.DigitalObjectID),
	)
	if !rec.Status.IsFinalizable() {
		log.Warn("Ingest не готов к финализации", slog.String("status", string(rec.Status)))
		return false
	}

	start := time.Now()
	from := rec.Status
	journal := transfer.NewJournal(transfer.Ingest, rec.TransferID, from)
	if err := journal.Transition(model.IngestRunning, ""); err != nil {
		log.Error("Недопустимый переход ingest", slog.String("error", err.Error()))
		return false
	}

	entry, err := o.walBegin(wal.OpIngestFinalize, rec.TransferID, string(from))
	if err != nil {
		log.Error("Ошибка записи в WAL, финализация отменена", slog.String("error", err.Error()))
		return false
	}

	rec.Status = journal.Current()
	rec.ErrorMessage = ""
	if err := journal.Checkpoint(ctx, transfer.CheckpointStart, func(ctx context.Context) error {
		return o.ingests.TransitionIngest(ctx, rec, from)
	}); err != nil {
		o.walRollback(entry)
		if errors.Is(err, record.ErrStatusChanged) {
			log.Info("Ingest уже финализируется или изменён другим исполнителем", slog.String("error", err.Error()))
			finalizationsTotal.WithLabelValues(directionIngest, "conflict").Inc()
			return false
		}
		log.Error("Не удалось сохранить начало финализации ingest", slog.String("error", err.Error()))
		finalizationsTotal.WithLabelValues(directionIngest, "store_error").Inc()
		return false
	}

	log.Info("Финализация ingest начата", slog.String("from", string(from)))

	var c *task.Container
	archiveErr := o.safely(rec.TransferID, "archive", func() error {
		var err error
		c, err = o.archiveIngest(ctx, rec, auth)
		return err
	})
	if archiveErr != nil {
		_ = journal.Fail(model.IngestFailed, archiveErr.Error())
	} else {
		_ = journal.Transition(model.IngestFinished, "")
		if c != nil {
			// Процессоры после архивирования не меняют итоговый статус
			_ = o.safely(rec.TransferID, "post-archive", func() error {
				o.pipeline.RunPostArchive(ctx, c, rec.PostProcessors)
				return nil
			})
		}
	}

	rec.Status = journal.Current()
	rec.ErrorMessage = journal.Message()
	persistErr := journal.Checkpoint(ctx, transfer.CheckpointEnd, func(ctx context.Context) error {
		return o.ingests.TransitionIngest(ctx, rec, model.IngestRunning)
	})
	if errors.Is(persistErr, record.ErrStatusChanged) {
		o.walRollback(entry)
	} else {
		o.walComplete(entry, string(rec.Status), persistErr == nil)
	}

	finalizationDuration.WithLabelValues(directionIngest).Observe(time.Since(start).Seconds())
	switch {
	case persistErr != nil:
		finalizationsTotal.WithLabelValues(directionIngest, "store_error").Inc()
		log.Error("Не удалось сохранить итоговый статус ingest",
			slog.String("status", string(rec.Status)),
			slog.String("error", persistErr.Error()),
		)
		return false
	case archiveErr != nil:
		finalizationsTotal.WithLabelValues(directionIngest, "error").Inc()
		log.Error("Финализация ingest завершилась ошибкой", slog.String("error", archiveErr.Error()))
		return false
	}

	finalizationsTotal.WithLabelValues(directionIngest, "ok").Inc()
	log.Info("Финализация ingest завершена",
		slog.String("storage_url", rec.StorageURL),
		slog.Duration("duration", time.Since(start)),
	)
	return true
}

// archiveIngest выполняет работу финализации ingest: сканирование папки,
// процессоры до архивирования, архивирование и сохранение представлений.
// При успехе заполняет rec.StorageURL и возвращает закрытый контейнер.
func (o *Orchestrator) archiveIngest(ctx context.Context, rec *model.IngestRecord, auth model.AuthContext) (*task.Container, error) {
	ap, err := o.resolver.ResolveForRecord(ctx, &rec.Transfer)
	if err != nil {
		return nil, err
	}
	localPath, err := ap.LocalPathForURL(rec.StagingURL, rec.Context())
	if err != nil {
		return nil, err
	}

	unlock := o.lockFolder(localPath, rec.TransferID)
	defer unlock()

	tree, err := dataorg.Scan(localPath, rec.DigitalObjectID)
	if err != nil {
		return nil, err
	}
	if o.limits.RequireUploadedData {
		data := tree.Subtree(model.DataFolder, model.DefaultView)
		if data == nil || data.FileCount() == 0 {
			return nil, errors.New(msgNoUploadedData)
		}
	}

	c := task.New(&rec.Transfer, auth, localPath, tree)
	if err := o.pipeline.RunPreArchive(ctx, c, rec.PreProcessors); err != nil {
		return nil, err
	}
	if err := c.Close(); err != nil {
		return nil, err
	}

	stored, err := o.storage.Store(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%s %w", msgStoreFailed, err)
	}
	if stored == nil {
		return nil, errors.New(msgStoreFailed)
	}
	if err := o.saveViews(ctx, rec, stored); err != nil {
		return nil, err
	}
	rec.StorageURL = c.StorageURL()
	return c, nil
}

// saveViews сохраняет представления архивированного дерева:
// data → default, generated → generated (если не пусто). Без коллекции
// data всё дерево сохраняется как default.
func (o *Orchestrator) saveViews(ctx context.Context, rec *model.IngestRecord, stored *model.FileTree) error {
	data := stored.Subtree(model.DataFolder, model.DefaultView)
	if data == nil {
		o.logger.Warn("В архивированном дереве нет коллекции data, сохраняется всё дерево",
			slog.String("transfer_id", rec.TransferID),
		)
		data = &model.FileTree{
			DigitalObjectID: stored.DigitalObjectID,
			ViewName:        model.DefaultView,
			Root:            stored.Root,
		}
	}
	if err := o.trees.SaveFileTree(ctx, data); err != nil {
		return fmt.Errorf("ошибка сохранения представления %s: %w", model.DefaultView, err)
	}

	generated := stored.Subtree(model.GeneratedFolder, model.GeneratedView)
	if generated != nil && generated.FileCount() > 0 {
		if err := o.trees.SaveFileTree(ctx, generated); err != nil {
			return fmt.Errorf("ошибка сохранения представления %s: %w", model.GeneratedView, err)
		}
	}
	return nil
}

// lockFolder берёт advisory-блокировку папки перемещения.
// Блокировка не обязательна: при ошибке выводится предупреждение,
// финализация продолжается.
func (o *Orchestrator) lockFolder(localPath, transferID string) func() {
	handle, err := fslock.Lock(filepath.Join(localPath, model.LockFile))
	if err != nil {
		o.logger.Warn("Не удалось заблокировать папку перемещения",
			slog.String("transfer_id", transferID),
			slog.String("path", localPath),
			slog.String("error", err.Error()),
		)
		return func() {}
	}
	return func() {
		if err := handle.Unlock(); err != nil {
			o.logger.Warn("Не удалось снять блокировку папки перемещения",
				slog.String("transfer_id", transferID),
				slog.String("error", err.Error()),
			)
		}
	}
}
