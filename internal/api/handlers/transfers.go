// transfers.go — HTTP handlers операционного API перемещений:
// подготовка, статус загрузки, финализация, удаление и очистка
// ingest и download.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/arturkryukov/artsore/staging-service/internal/api/errors"
	"github.com/arturkryukov/artsore/staging-service/internal/api/generated"
	"github.com/arturkryukov/artsore/staging-service/internal/api/middleware"
	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/domain/transfer"
	"github.com/arturkryukov/artsore/staging-service/internal/service"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/record"
)

// Orchestrator — операции оркестратора, доступные через API.
// Реализация: service.Orchestrator.
type Orchestrator interface {
	RegisterIngest(ctx context.Context, objectID, accessPointID string, auth model.AuthContext) (*model.IngestRecord, error)
	PrepareIngest(ctx context.Context, objectID, accessPointID string, auth model.AuthContext) (model.PreparationResult, error)
	FinalizeIngest(ctx context.Context, objectID string, auth model.AuthContext) bool
	DeleteIngest(ctx context.Context, objectID string) bool
	FlushIngest(ctx context.Context, objectID string) bool
	UpdateIngestStatus(ctx context.Context, objectID string, to model.IngestStatus, message string) (*model.IngestRecord, error)

	RegisterDownload(ctx context.Context, req service.DownloadRequest, auth model.AuthContext) (*model.DownloadRecord, error)
	ScheduleDownload(ctx context.Context, objectID, accessPointID string, auth model.AuthContext) (model.PreparationResult, error)
	FinalizeDownload(ctx context.Context, transferID string, auth model.AuthContext) bool
	RescheduleDownload(ctx context.Context, transferID string) (*model.DownloadRecord, error)
	DeleteDownload(ctx context.Context, transferID string) bool
	FlushDownload(ctx context.Context, transferID string) bool
}

// TransfersHandler — обработчик endpoints перемещений, реализует
// generated.ServerInterface. Scopes и схемы запросов проверяет
// middleware.OpenAPIValidator.
type TransfersHandler struct {
	orch      Orchestrator
	ingests   record.IngestStore
	downloads record.DownloadStore
	logger    *slog.Logger
}

// NewTransfersHandler создаёт обработчик endpoints перемещений.
func NewTransfersHandler(orch Orchestrator, ingests record.IngestStore, downloads record.DownloadStore, logger *slog.Logger) *TransfersHandler {
	return &TransfersHandler{
		orch:      orch,
		ingests:   ingests,
		downloads: downloads,
		logger:    logger.With(slog.String("component", "transfers_api")),
	}
}

var _ generated.ServerInterface = (*TransfersHandler)(nil)

// decodeBody читает необязательное тело запроса в dst.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// --- Ingest ---

// GetIngest обрабатывает GET /api/v1/ingests/{objectId}.
func (h *TransfersHandler) GetIngest(w http.ResponseWriter, r *http.Request, objectID generated.ObjectId) {
	rec, ok := h.loadIngest(w, r, objectID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ingestToAPI(rec))
}

// PrepareIngest обрабатывает POST /api/v1/ingests/{objectId}/prepare.
// Создаёт запись, если активной нет, и подготавливает папку загрузки.
func (h *TransfersHandler) PrepareIngest(w http.ResponseWriter, r *http.Request, objectID generated.ObjectId) {
	auth, ok := authOrFail(w, r)
	if !ok {
		return
	}
	var req generated.PrepareIngestJSONRequestBody
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}
	accessPointID := deref(req.AccessPointId)

	rec, err := h.orch.RegisterIngest(r.Context(), objectID, accessPointID, auth)
	if err != nil {
		h.storeFailure(w, "регистрации ingest", objectID, err)
		return
	}
	if !owns(auth, &rec.Transfer) {
		apierrors.Forbidden(w, "Перемещение принадлежит другой группе")
		return
	}

	result, err := h.orch.PrepareIngest(r.Context(), objectID, accessPointID, auth)
	if err != nil {
		h.storeFailure(w, "подготовки ingest", objectID, err)
		return
	}
	writePreparation(w, result, model.IngestPreIngestScheduled == model.IngestStatus(result.Status))
}

// FinalizeIngest обрабатывает POST /api/v1/ingests/{objectId}/finalize.
func (h *TransfersHandler) FinalizeIngest(w http.ResponseWriter, r *http.Request, objectID generated.ObjectId) {
	auth, ok := authOrFail(w, r)
	if !ok {
		return
	}
	if _, ok := h.loadIngest(w, r, objectID); !ok {
		return
	}

	finalized := h.orch.FinalizeIngest(r.Context(), objectID, auth)

	rec, err := h.ingests.GetIngest(r.Context(), objectID)
	if err != nil {
		h.storeFailure(w, "чтения ingest", objectID, err)
		return
	}
	if !finalized {
		apierrors.FinalizeFailed(w, failureMessage(string(rec.Status), rec.ErrorMessage))
		return
	}
	writeJSON(w, http.StatusOK, ingestToAPI(rec))
}

// UpdateIngestStatus обрабатывает PUT /api/v1/ingests/{objectId}/status.
// Клиент сообщает начало и завершение загрузки данных в папку.
func (h *TransfersHandler) UpdateIngestStatus(w http.ResponseWriter, r *http.Request, objectID generated.ObjectId) {
	if _, ok := h.loadIngest(w, r, objectID); !ok {
		return
	}
	var req generated.UpdateIngestStatusJSONRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	rec, err := h.orch.UpdateIngestStatus(r.Context(), objectID, model.IngestStatus(req.Status), deref(req.ErrorMessage))
	if err != nil {
		h.transitionFailure(w, "обновления статуса ingest", objectID, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestToAPI(rec))
}

// DeleteIngest обрабатывает DELETE /api/v1/ingests/{objectId}.
func (h *TransfersHandler) DeleteIngest(w http.ResponseWriter, r *http.Request, objectID generated.ObjectId) {
	if _, ok := h.loadIngest(w, r, objectID); !ok {
		return
	}
	if !h.orch.DeleteIngest(r.Context(), objectID) {
		apierrors.FlushFailed(w, "Не удалось удалить папку загрузки")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FlushIngest обрабатывает POST /api/v1/ingests/{objectId}/flush.
func (h *TransfersHandler) FlushIngest(w http.ResponseWriter, r *http.Request, objectID generated.ObjectId) {
	if _, ok := h.loadIngest(w, r, objectID); !ok {
		return
	}
	if !h.orch.FlushIngest(r.Context(), objectID) {
		apierrors.FlushFailed(w, "Не удалось очистить папку загрузки")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Download ---

// GetDownload обрабатывает GET /api/v1/downloads/{transferId}.
func (h *TransfersHandler) GetDownload(w http.ResponseWriter, r *http.Request, transferID generated.TransferId) {
	rec, ok := h.loadDownload(w, r, transferID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, downloadToAPI(rec))
}

// ScheduleDownload обрабатывает POST /api/v1/downloads/{objectId}/schedule.
// Создаёт запись выгрузки, если активной нет, и подготавливает папку.
func (h *TransfersHandler) ScheduleDownload(w http.ResponseWriter, r *http.Request, objectID generated.ObjectId) {
	auth, ok := authOrFail(w, r)
	if !ok {
		return
	}
	var req generated.ScheduleDownloadJSONRequestBody
	if err := decodeBody(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}
	accessPointID := deref(req.AccessPointId)

	rec, err := h.orch.RegisterDownload(r.Context(), service.DownloadRequest{
		DigitalObjectID:      objectID,
		AccessPointID:        accessPointID,
		ViewName:             deref(req.ViewName),
		NotificationReceiver: deref(req.NotificationReceiver),
	}, auth)
	if err != nil {
		h.storeFailure(w, "регистрации download", objectID, err)
		return
	}
	if !owns(auth, &rec.Transfer) {
		apierrors.Forbidden(w, "Перемещение принадлежит другой группе")
		return
	}

	result, err := h.orch.ScheduleDownload(r.Context(), objectID, accessPointID, auth)
	if err != nil {
		h.storeFailure(w, "планирования download", objectID, err)
		return
	}
	w.Header().Set("Location", "/api/v1/downloads/"+rec.TransferID)
	writePreparation(w, result, model.DownloadScheduled == model.DownloadStatus(result.Status))
}

// FinalizeDownload обрабатывает POST /api/v1/downloads/{transferId}/finalize.
func (h *TransfersHandler) FinalizeDownload(w http.ResponseWriter, r *http.Request, transferID generated.TransferId) {
	auth, ok := authOrFail(w, r)
	if !ok {
		return
	}
	if _, ok := h.loadDownload(w, r, transferID); !ok {
		return
	}

	finalized := h.orch.FinalizeDownload(r.Context(), transferID, auth)

	rec, err := h.downloads.GetDownload(r.Context(), transferID)
	if err != nil {
		h.storeFailure(w, "чтения download", transferID, err)
		return
	}
	if !finalized {
		apierrors.FinalizeFailed(w, failureMessage(string(rec.Status), rec.ErrorMessage))
		return
	}
	writeJSON(w, http.StatusOK, downloadToAPI(rec))
}

// RescheduleDownload обрабатывает POST /api/v1/downloads/{transferId}/reschedule.
func (h *TransfersHandler) RescheduleDownload(w http.ResponseWriter, r *http.Request, transferID generated.TransferId) {
	if _, ok := h.loadDownload(w, r, transferID); !ok {
		return
	}

	rec, err := h.orch.RescheduleDownload(r.Context(), transferID)
	if err != nil {
		h.transitionFailure(w, "повторного планирования download", transferID, err)
		return
	}
	writeJSON(w, http.StatusOK, downloadToAPI(rec))
}

// DeleteDownload обрабатывает DELETE /api/v1/downloads/{transferId}.
func (h *TransfersHandler) DeleteDownload(w http.ResponseWriter, r *http.Request, transferID generated.TransferId) {
	if _, ok := h.loadDownload(w, r, transferID); !ok {
		return
	}
	if !h.orch.DeleteDownload(r.Context(), transferID) {
		apierrors.FlushFailed(w, "Не удалось удалить папку выгрузки")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FlushDownload обрабатывает POST /api/v1/downloads/{transferId}/flush.
func (h *TransfersHandler) FlushDownload(w http.ResponseWriter, r *http.Request, transferID generated.TransferId) {
	if _, ok := h.loadDownload(w, r, transferID); !ok {
		return
	}
	if !h.orch.FlushDownload(r.Context(), transferID) {
		apierrors.FlushFailed(w, "Не удалось очистить папку выгрузки")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Вспомогательные функции ---

// loadIngest читает запись ingest и проверяет группу вызывающего.
// При ошибке ответ уже записан.
func (h *TransfersHandler) loadIngest(w http.ResponseWriter, r *http.Request, objectID string) (*model.IngestRecord, bool) {
	auth, ok := authOrFail(w, r)
	if !ok {
		return nil, false
	}
	rec, err := h.ingests.GetIngest(r.Context(), objectID)
	if errors.Is(err, record.ErrNotFound) {
		apierrors.NotFound(w, fmt.Sprintf("Ingest объекта %s не найден", objectID))
		return nil, false
	}
	if err != nil {
		h.storeFailure(w, "чтения ingest", objectID, err)
		return nil, false
	}
	if !owns(auth, &rec.Transfer) {
		apierrors.Forbidden(w, "Перемещение принадлежит другой группе")
		return nil, false
	}
	return rec, true
}

// loadDownload читает запись download и проверяет группу вызывающего.
func (h *TransfersHandler) loadDownload(w http.ResponseWriter, r *http.Request, transferID string) (*model.DownloadRecord, bool) {
	auth, ok := authOrFail(w, r)
	if !ok {
		return nil, false
	}
	rec, err := h.downloads.GetDownload(r.Context(), transferID)
	if errors.Is(err, record.ErrNotFound) {
		apierrors.NotFound(w, fmt.Sprintf("Download %s не найден", transferID))
		return nil, false
	}
	if err != nil {
		h.storeFailure(w, "чтения download", transferID, err)
		return nil, false
	}
	if !owns(auth, &rec.Transfer) {
		apierrors.Forbidden(w, "Перемещение принадлежит другой группе")
		return nil, false
	}
	return rec, true
}

func (h *TransfersHandler) storeFailure(w http.ResponseWriter, op, id string, err error) {
	h.logger.Error("Ошибка хранилища записей при "+op,
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
	apierrors.InternalError(w, "Хранилище записей недоступно")
}

// transitionFailure отвечает на ошибку смены статуса: недопустимый
// переход или гонка с другим исполнителем — 409.
func (h *TransfersHandler) transitionFailure(w http.ResponseWriter, op, id string, err error) {
	var terr *transfer.TransitionError
	switch {
	case errors.As(err, &terr):
		apierrors.InvalidTransition(w, terr.Message)
	case errors.Is(err, record.ErrStatusChanged):
		apierrors.InvalidTransition(w, "Статус перемещения изменён другим исполнителем, повторите запрос")
	case errors.Is(err, record.ErrNotFound):
		apierrors.NotFound(w, fmt.Sprintf("Перемещение %s не найдено", id))
	default:
		h.storeFailure(w, op, id, err)
	}
}

// authOrFail извлекает AuthContext, записанный JWT middleware.
func authOrFail(w http.ResponseWriter, r *http.Request) (model.AuthContext, bool) {
	auth, ok := middleware.AuthFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
	}
	return auth, ok
}

// owns проверяет, что перемещение принадлежит группе вызывающего.
func owns(auth model.AuthContext, t *model.Transfer) bool {
	return t.GroupID == "" || t.GroupID == auth.GroupID
}

// writePreparation отвечает результатом подготовки: 200 при успехе,
// 422 с телом результата, если подготовка не удалась.
func writePreparation(w http.ResponseWriter, result model.PreparationResult, ok bool) {
	if ok {
		writeJSON(w, http.StatusOK, preparationToAPI(result))
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, preparationToAPI(result))
}

func failureMessage(status, message string) string {
	if message != "" {
		return message
	}
	return "Финализация не выполнена, статус " + status
}
