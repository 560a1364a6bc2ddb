package record

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/atomicfile"
)

const (
	ingestDir   = "ingests"
	downloadDir = "downloads"
	recordExt   = ".json"
)

// FileStore — хранилище записей в JSON-файлах: по одному файлу
// {transfer_id}.json на запись в поддиректориях ingests/ и downloads/.
//
// Записи держатся в in-memory индексе, который строится при старте
// (Reload) и обновляется синхронно при каждой записи. Запись на диск
// атомарная (temp → fsync → rename). Возвращаемые записи — копии:
// изменения вызывающего не видны другим до Update.
type FileStore struct {
	dir string

	mu        sync.RWMutex
	ingests   map[string]*model.IngestRecord   // transfer_id → запись
	downloads map[string]*model.DownloadRecord // transfer_id → запись
	lastID    int64

	now    func() time.Time
	logger *slog.Logger
}

// NewFileStore создаёт хранилище в директории dir и загружает записи.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	for _, sub := range []string{ingestDir, downloadDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию записей %s: %w", dir, err)
		}
	}

	s := &FileStore{
		dir:    dir,
		now:    time.Now,
		logger: logger.With(slog.String("component", "record_store")),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload перечитывает все записи с диска, заменяя содержимое индекса.
func (s *FileStore) Reload() error {
	ingests := make(map[string]*model.IngestRecord)
	downloads := make(map[string]*model.DownloadRecord)
	var lastID int64

	err := scanRecords(filepath.Join(s.dir, ingestDir), func(path string) error {
		var rec model.IngestRecord
		if err := atomicfile.ReadJSON(path, &rec); err != nil {
			return err
		}
		ingests[rec.TransferID] = &rec
		lastID = max(lastID, rec.ID)
		return nil
	})
	if err != nil {
		return err
	}

	err = scanRecords(filepath.Join(s.dir, downloadDir), func(path string) error {
		var rec model.DownloadRecord
		if err := atomicfile.ReadJSON(path, &rec); err != nil {
			return err
		}
		downloads[rec.TransferID] = &rec
		lastID = max(lastID, rec.ID)
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ingests = ingests
	s.downloads = downloads
	s.lastID = lastID
	s.mu.Unlock()

	s.logger.Debug("Записи о перемещениях загружены",
		slog.Int("ingests", len(ingests)),
		slog.Int("downloads", len(downloads)),
		slog.String("dir", s.dir),
	)
	return nil
}

// scanRecords вызывает fn для каждого файла записи в dir.
func scanRecords(dir string, fn func(path string) error) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), recordExt) {
			return nil
		}
		return fn(path)
	})
	if err != nil {
		return fmt.Errorf("ошибка сканирования записей в %s: %w", dir, err)
	}
	return nil
}

// --- ingest ---

// GetIngest реализует IngestStore.
func (s *FileStore) GetIngest(_ context.Context, objectID string) (*model.IngestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *model.IngestRecord
	for _, rec := range s.ingests {
		if rec.DigitalObjectID != objectID {
			continue
		}
		if found == nil || newerIngest(rec, found) {
			found = rec
		}
	}
	if found == nil {
		return nil, fmt.Errorf("ingest объекта %s: %w", objectID, ErrNotFound)
	}
	return copyIngest(found), nil
}

// newerIngest: активная запись важнее неактивной, затем более поздняя.
func newerIngest(a, b *model.IngestRecord) bool {
	if a.Status.IsActive() != b.Status.IsActive() {
		return a.Status.IsActive()
	}
	return a.ID > b.ID
}

// CreateIngest реализует IngestStore. Присваивает ID и время создания.
func (s *FileStore) CreateIngest(_ context.Context, rec *model.IngestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ingests[rec.TransferID]; exists {
		return fmt.Errorf("ingest %s: %w", rec.TransferID, ErrConflict)
	}
	if rec.Status.IsActive() {
		for _, other := range s.ingests {
			if other.DigitalObjectID == rec.DigitalObjectID && other.Status.IsActive() {
				return fmt.Errorf("ingest объекта %s: %w", rec.DigitalObjectID, ErrConflict)
			}
		}
	}

	now := s.now().UTC()
	s.lastID++
	rec.ID = s.lastID
	rec.Direction = model.DirectionIngest
	rec.CreatedAt = now
	rec.UpdatedAt = now

	stored := copyIngest(rec)
	if err := atomicfile.WriteJSON(s.ingestPath(rec.TransferID), stored); err != nil {
		s.lastID--
		return fmt.Errorf("не удалось сохранить ingest %s: %w", rec.TransferID, err)
	}
	s.ingests[rec.TransferID] = stored
	return nil
}

// UpdateIngest реализует IngestStore.
func (s *FileStore) UpdateIngest(_ context.Context, rec *model.IngestRecord) error {
	return s.putIngest(rec, nil)
}

// TransitionIngest реализует IngestStore. Сравнение и запись выполняются
// под одной блокировкой.
func (s *FileStore) TransitionIngest(_ context.Context, rec *model.IngestRecord, from model.IngestStatus) error {
	return s.putIngest(rec, &from)
}

func (s *FileStore) putIngest(rec *model.IngestRecord, from *model.IngestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.ingests[rec.TransferID]
	if !exists {
		return fmt.Errorf("ingest %s: %w", rec.TransferID, ErrNotFound)
	}
	if from != nil && current.Status != *from {
		return fmt.Errorf("ingest %s: ожидался %s, сохранён %s: %w",
			rec.TransferID, *from, current.Status, ErrStatusChanged)
	}

	rec.UpdatedAt = s.now().UTC()
	stored := copyIngest(rec)
	if err := atomicfile.WriteJSON(s.ingestPath(rec.TransferID), stored); err != nil {
		return fmt.Errorf("не удалось сохранить ingest %s: %w", rec.TransferID, err)
	}
	s.ingests[rec.TransferID] = stored
	return nil
}

// ListIngests реализует IngestStore.
func (s *FileStore) ListIngests(_ context.Context, statuses ...model.IngestStatus) ([]*model.IngestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.IngestRecord, 0)
	for _, rec := range s.ingests {
		if containsStatus(statuses, rec.Status) {
			result = append(result, copyIngest(rec))
		}
	}
	return result, nil
}

// CountIngests реализует IngestStore.
func (s *FileStore) CountIngests(_ context.Context, statuses ...model.IngestStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.ingests {
		if containsStatus(statuses, rec.Status) {
			n++
		}
	}
	return n, nil
}

// --- download ---

// GetDownload реализует DownloadStore.
func (s *FileStore) GetDownload(_ context.Context, transferID string) (*model.DownloadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.downloads[transferID]
	if !ok {
		return nil, fmt.Errorf("download %s: %w", transferID, ErrNotFound)
	}
	return copyDownload(rec), nil
}

// GetDownloadByObject реализует DownloadStore.
func (s *FileStore) GetDownloadByObject(_ context.Context, objectID string) (*model.DownloadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *model.DownloadRecord
	for _, rec := range s.downloads {
		if rec.DigitalObjectID != objectID {
			continue
		}
		if found == nil || newerDownload(rec, found) {
			found = rec
		}
	}
	if found == nil {
		return nil, fmt.Errorf("download объекта %s: %w", objectID, ErrNotFound)
	}
	return copyDownload(found), nil
}

func newerDownload(a, b *model.DownloadRecord) bool {
	if a.Status.IsActive() != b.Status.IsActive() {
		return a.Status.IsActive()
	}
	return a.ID > b.ID
}

// CreateDownload реализует DownloadStore.
func (s *FileStore) CreateDownload(_ context.Context, rec *model.DownloadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.downloads[rec.TransferID]; exists {
		return fmt.Errorf("download %s: %w", rec.TransferID, ErrConflict)
	}
	if rec.Status.IsActive() {
		for _, other := range s.downloads {
			if other.DigitalObjectID == rec.DigitalObjectID && other.Status.IsActive() {
				return fmt.Errorf("download объекта %s: %w", rec.DigitalObjectID, ErrConflict)
			}
		}
	}

	now := s.now().UTC()
	s.lastID++
	rec.ID = s.lastID
	rec.Direction = model.DirectionDownload
	rec.CreatedAt = now
	rec.UpdatedAt = now

	stored := copyDownload(rec)
	if err := atomicfile.WriteJSON(s.downloadPath(rec.TransferID), stored); err != nil {
		s.lastID--
		return fmt.Errorf("не удалось сохранить download %s: %w", rec.TransferID, err)
	}
	s.downloads[rec.TransferID] = stored
	return nil
}

// UpdateDownload реализует DownloadStore.
func (s *FileStore) UpdateDownload(_ context.Context, rec *model.DownloadRecord) error {
	return s.putDownload(rec, nil)
}

// TransitionDownload реализует DownloadStore.
func (s *FileStore) TransitionDownload(_ context.Context, rec *model.DownloadRecord, from model.DownloadStatus) error {
	return s.putDownload(rec, &from)
}

func (s *FileStore) putDownload(rec *model.DownloadRecord, from *model.DownloadStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.downloads[rec.TransferID]
	if !exists {
		return fmt.Errorf("download %s: %w", rec.TransferID, ErrNotFound)
	}
	if from != nil && current.Status != *from {
		return fmt.Errorf("download %s: ожидался %s, сохранён %s: %w",
			rec.TransferID, *from, current.Status, ErrStatusChanged)
	}

	rec.UpdatedAt = s.now().UTC()
	stored := copyDownload(rec)
	if err := atomicfile.WriteJSON(s.downloadPath(rec.TransferID), stored); err != nil {
		return fmt.Errorf("не удалось сохранить download %s: %w", rec.TransferID, err)
	}
	s.downloads[rec.TransferID] = stored
	return nil
}

// ListDownloads реализует DownloadStore.
func (s *FileStore) ListDownloads(_ context.Context, statuses ...model.DownloadStatus) ([]*model.DownloadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.DownloadRecord, 0)
	for _, rec := range s.downloads {
		if containsStatus(statuses, rec.Status) {
			result = append(result, copyDownload(rec))
		}
	}
	return result, nil
}

// CountDownloads реализует DownloadStore.
func (s *FileStore) CountDownloads(_ context.Context, statuses ...model.DownloadStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.downloads {
		if containsStatus(statuses, rec.Status) {
			n++
		}
	}
	return n, nil
}

// Ping проверяет доступность директории хранилища.
func (s *FileStore) Ping(_ context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("директория записей %s не существует", s.dir)
		}
		return fmt.Errorf("директория записей %s недоступна: %w", s.dir, err)
	}
	return nil
}

// Dir возвращает директорию хранилища.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) ingestPath(transferID string) string {
	return filepath.Join(s.dir, ingestDir, transferID+recordExt)
}

func (s *FileStore) downloadPath(transferID string) string {
	return filepath.Join(s.dir, downloadDir, transferID+recordExt)
}

func copyIngest(rec *model.IngestRecord) *model.IngestRecord {
	c := *rec
	c.PreProcessors = append([]model.StagingProcessorConfig(nil), rec.PreProcessors...)
	c.PostProcessors = append([]model.StagingProcessorConfig(nil), rec.PostProcessors...)
	return &c
}

func copyDownload(rec *model.DownloadRecord) *model.DownloadRecord {
	c := *rec
	c.Processors = append([]model.StagingProcessorConfig(nil), rec.Processors...)
	return &c
}

// CheckReady проверяет директорию записей для health endpoint.
// Возвращает статус ("ok", "fail") и сообщение.
func (s *FileStore) CheckReady() (status string, message string) {
	if err := s.Ping(context.Background()); err != nil {
		return "fail", err.Error()
	}
	return "ok", "директория записей доступна"
}
