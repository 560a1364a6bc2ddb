// Пакет record — хранилище записей о перемещениях (Transfer Record Store).
//
// Порт хранилища описан интерфейсами IngestStore и DownloadStore.
// Реализации: FileStore (JSON-файлы в локальной директории) и
// postgres.Store (таблицы ingest_transfers, download_transfers).
// Любая ошибка, кроме ErrNotFound, трактуется оркестратором как
// сбой доступа к хранилищу.
package record

import (
	"context"
	"errors"
	"sort"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — для цифрового объекта уже есть активная запись.
	ErrConflict = errors.New("для объекта уже существует активное перемещение")
	// ErrStatusChanged — статус записи не совпал с ожидаемым при переходе.
	ErrStatusChanged = errors.New("статус записи изменён другим исполнителем")
)

// IngestStore — хранилище записей ingest.
type IngestStore interface {
	// GetIngest возвращает актуальную запись ingest объекта:
	// активную, а при её отсутствии самую позднюю.
	GetIngest(ctx context.Context, objectID string) (*model.IngestRecord, error)
	CreateIngest(ctx context.Context, rec *model.IngestRecord) error
	UpdateIngest(ctx context.Context, rec *model.IngestRecord) error
	// TransitionIngest сохраняет запись, только если сохранённый статус
	// равен from. Иначе возвращает ErrStatusChanged.
	TransitionIngest(ctx context.Context, rec *model.IngestRecord, from model.IngestStatus) error
	// ListIngests возвращает записи в указанных статусах (все — если статусы не заданы).
	ListIngests(ctx context.Context, statuses ...model.IngestStatus) ([]*model.IngestRecord, error)
	CountIngests(ctx context.Context, statuses ...model.IngestStatus) (int, error)
}

// DownloadStore — хранилище записей download.
type DownloadStore interface {
	// GetDownload возвращает запись по идентификатору перемещения.
	GetDownload(ctx context.Context, transferID string) (*model.DownloadRecord, error)
	// GetDownloadByObject возвращает актуальную запись download объекта.
	GetDownloadByObject(ctx context.Context, objectID string) (*model.DownloadRecord, error)
	CreateDownload(ctx context.Context, rec *model.DownloadRecord) error
	UpdateDownload(ctx context.Context, rec *model.DownloadRecord) error
	// TransitionDownload — аналог TransitionIngest для download.
	TransitionDownload(ctx context.Context, rec *model.DownloadRecord, from model.DownloadStatus) error
	ListDownloads(ctx context.Context, statuses ...model.DownloadStatus) ([]*model.DownloadRecord, error)
	CountDownloads(ctx context.Context, statuses ...model.DownloadStatus) (int, error)
}

// Store — полное хранилище записей.
type Store interface {
	IngestStore
	DownloadStore
}

// ListEligibleIngests возвращает записи, готовые к финализации,
// отсортированные по возрастанию ExpiresAt.
func ListEligibleIngests(ctx context.Context, s IngestStore) ([]*model.IngestRecord, error) {
	recs, err := s.ListIngests(ctx, model.FinalizableIngestStatuses...)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].ExpiresAt < recs[j].ExpiresAt
	})
	return recs, nil
}

// ListEligibleDownloads возвращает запланированные выгрузки с
// подготовленной папкой, отсортированные по возрастанию ExpiresAt.
func ListEligibleDownloads(ctx context.Context, s DownloadStore) ([]*model.DownloadRecord, error) {
	all, err := s.ListDownloads(ctx, model.DownloadScheduled)
	if err != nil {
		return nil, err
	}
	recs := all[:0]
	for _, rec := range all {
		if rec.StagingURL != "" {
			recs = append(recs, rec)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].ExpiresAt < recs[j].ExpiresAt
	})
	return recs, nil
}

func containsStatus[S comparable](statuses []S, s S) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
