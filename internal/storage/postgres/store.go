package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/record"
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store — хранилище записей о перемещениях в PostgreSQL.
// Реализует record.Store.
type Store struct {
	db DBTX
}

// NewStore создаёт хранилище поверх db.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

var _ record.Store = (*Store)(nil)

const ingestColumns = `id, transfer_id, digital_object_id, owner_id, group_id, access_point_id,
	staging_url, storage_url, status, error_message, expires_at,
	pre_processors, post_processors, created_at, updated_at`

const downloadColumns = `id, transfer_id, digital_object_id, owner_id, group_id, access_point_id,
	staging_url, status, error_message, expires_at, view_name, notification_receiver,
	processors, created_at, updated_at`

// --- ingest ---

// GetIngest реализует record.IngestStore.
func (s *Store) GetIngest(ctx context.Context, objectID string) (*model.IngestRecord, error) {
	query := `SELECT ` + ingestColumns + `
		FROM ingest_transfers
		WHERE digital_object_id = $1
		ORDER BY (status = ANY($2)) DESC, id DESC
		LIMIT 1`

	rec, err := scanIngest(s.db.QueryRow(ctx, query, objectID, activeIngestStatuses()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ingest объекта %s: %w", objectID, record.ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения ingest объекта %s: %w", objectID, err)
	}
	return rec, nil
}

// CreateIngest реализует record.IngestStore.
func (s *Store) CreateIngest(ctx context.Context, rec *model.IngestRecord) error {
	pre, post, err := marshalProcessors(rec.PreProcessors, rec.PostProcessors)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ingest_transfers (transfer_id, digital_object_id, owner_id, group_id,
			access_point_id, staging_url, storage_url, status, error_message, expires_at,
			pre_processors, post_processors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		rec.TransferID, rec.DigitalObjectID, rec.OwnerID, rec.GroupID,
		rec.AccessPointID, rec.StagingURL, rec.StorageURL, string(rec.Status), rec.ErrorMessage, rec.ExpiresAt,
		pre, post,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("ingest %s: %w", rec.TransferID, record.ErrConflict)
		}
		return fmt.Errorf("ошибка создания ingest %s: %w", rec.TransferID, err)
	}
	rec.Direction = model.DirectionIngest
	return nil
}

// UpdateIngest реализует record.IngestStore.
func (s *Store) UpdateIngest(ctx context.Context, rec *model.IngestRecord) error {
	return s.putIngest(ctx, rec, nil)
}

// TransitionIngest реализует record.IngestStore: условие по статусу
// входит в WHERE, поэтому сравнение и запись атомарны.
func (s *Store) TransitionIngest(ctx context.Context, rec *model.IngestRecord, from model.IngestStatus) error {
	expected := string(from)
	return s.putIngest(ctx, rec, &expected)
}

func (s *Store) putIngest(ctx context.Context, rec *model.IngestRecord, from *string) error {
	pre, post, err := marshalProcessors(rec.PreProcessors, rec.PostProcessors)
	if err != nil {
		return err
	}

	query := `
		UPDATE ingest_transfers SET
			access_point_id = $2, staging_url = $3, storage_url = $4, status = $5,
			error_message = $6, expires_at = $7, pre_processors = $8, post_processors = $9,
			updated_at = now()
		WHERE transfer_id = $1 AND ($10::text IS NULL OR status = $10)
		RETURNING updated_at`

	err = s.db.QueryRow(ctx, query,
		rec.TransferID, rec.AccessPointID, rec.StagingURL, rec.StorageURL, string(rec.Status),
		rec.ErrorMessage, rec.ExpiresAt, pre, post, from,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.missedUpdate(ctx, "ingest_transfers", "ingest", rec.TransferID, from)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("ingest %s: %w", rec.TransferID, record.ErrConflict)
		}
		return fmt.Errorf("ошибка обновления ingest %s: %w", rec.TransferID, err)
	}
	return nil
}

// missedUpdate различает отсутствующую запись и несовпавший статус
// после UPDATE, не затронувшего ни одной строки.
func (s *Store) missedUpdate(ctx context.Context, table, kind, transferID string, from *string) error {
	if from == nil {
		return fmt.Errorf("%s %s: %w", kind, transferID, record.ErrNotFound)
	}
	var current string
	err := s.db.QueryRow(ctx, `SELECT status FROM `+table+` WHERE transfer_id = $1`, transferID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s %s: %w", kind, transferID, record.ErrNotFound)
		}
		return fmt.Errorf("ошибка чтения статуса %s %s: %w", kind, transferID, err)
	}
	return fmt.Errorf("%s %s: ожидался %s, сохранён %s: %w",
		kind, transferID, *from, current, record.ErrStatusChanged)
}

// ListIngests реализует record.IngestStore.
func (s *Store) ListIngests(ctx context.Context, statuses ...model.IngestStatus) ([]*model.IngestRecord, error) {
	query, args := withStatusFilter(`SELECT `+ingestColumns+` FROM ingest_transfers`, statusStrings(statuses))
	query += ` ORDER BY expires_at, id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка ingest: %w", err)
	}
	defer rows.Close()

	result := make([]*model.IngestRecord, 0)
	for rows.Next() {
		rec, err := scanIngest(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ingest: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// CountIngests реализует record.IngestStore.
func (s *Store) CountIngests(ctx context.Context, statuses ...model.IngestStatus) (int, error) {
	query, args := withStatusFilter(`SELECT count(*) FROM ingest_transfers`, statusStrings(statuses))

	var n int
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта ingest: %w", err)
	}
	return n, nil
}

// --- download ---

// GetDownload реализует record.DownloadStore.
func (s *Store) GetDownload(ctx context.Context, transferID string) (*model.DownloadRecord, error) {
	query := `SELECT ` + downloadColumns + ` FROM download_transfers WHERE transfer_id = $1`

	rec, err := scanDownload(s.db.QueryRow(ctx, query, transferID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("download %s: %w", transferID, record.ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения download %s: %w", transferID, err)
	}
	return rec, nil
}

// GetDownloadByObject реализует record.DownloadStore.
func (s *Store) GetDownloadByObject(ctx context.Context, objectID string) (*model.DownloadRecord, error) {
	query := `SELECT ` + downloadColumns + `
		FROM download_transfers
		WHERE digital_object_id = $1
		ORDER BY (status = ANY($2)) DESC, id DESC
		LIMIT 1`

	active := []string{string(model.DownloadScheduled), string(model.DownloadPreparing), string(model.DownloadReady)}
	rec, err := scanDownload(s.db.QueryRow(ctx, query, objectID, active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("download объекта %s: %w", objectID, record.ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения download объекта %s: %w", objectID, err)
	}
	return rec, nil
}

// CreateDownload реализует record.DownloadStore.
func (s *Store) CreateDownload(ctx context.Context, rec *model.DownloadRecord) error {
	procs, err := json.Marshal(nonNil(rec.Processors))
	if err != nil {
		return fmt.Errorf("ошибка сериализации процессоров: %w", err)
	}

	query := `
		INSERT INTO download_transfers (transfer_id, digital_object_id, owner_id, group_id,
			access_point_id, staging_url, status, error_message, expires_at, view_name,
			notification_receiver, processors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		rec.TransferID, rec.DigitalObjectID, rec.OwnerID, rec.GroupID,
		rec.AccessPointID, rec.StagingURL, string(rec.Status), rec.ErrorMessage, rec.ExpiresAt,
		rec.ViewName, rec.NotificationReceiver, procs,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("download %s: %w", rec.TransferID, record.ErrConflict)
		}
		return fmt.Errorf("ошибка создания download %s: %w", rec.TransferID, err)
	}
	rec.Direction = model.DirectionDownload
	return nil
}

// UpdateDownload реализует record.DownloadStore.
func (s *Store) UpdateDownload(ctx context.Context, rec *model.DownloadRecord) error {
	return s.putDownload(ctx, rec, nil)
}

// TransitionDownload реализует record.DownloadStore.
func (s *Store) TransitionDownload(ctx context.Context, rec *model.DownloadRecord, from model.DownloadStatus) error {
	expected := string(from)
	return s.putDownload(ctx, rec, &expected)
}

func (s *Store) putDownload(ctx context.Context, rec *model.DownloadRecord, from *string) error {
	procs, err := json.Marshal(nonNil(rec.Processors))
	if err != nil {
		return fmt.Errorf("ошибка сериализации процессоров: %w", err)
	}

	query := `
		UPDATE download_transfers SET
			access_point_id = $2, staging_url = $3, status = $4, error_message = $5,
			expires_at = $6, view_name = $7, notification_receiver = $8, processors = $9,
			updated_at = now()
		WHERE transfer_id = $1 AND ($10::text IS NULL OR status = $10)
		RETURNING updated_at`

	err = s.db.QueryRow(ctx, query,
		rec.TransferID, rec.AccessPointID, rec.StagingURL, string(rec.Status), rec.ErrorMessage,
		rec.ExpiresAt, rec.ViewName, rec.NotificationReceiver, procs, from,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.missedUpdate(ctx, "download_transfers", "download", rec.TransferID, from)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("download %s: %w", rec.TransferID, record.ErrConflict)
		}
		return fmt.Errorf("ошибка обновления download %s: %w", rec.TransferID, err)
	}
	return nil
}

// ListDownloads реализует record.DownloadStore.
func (s *Store) ListDownloads(ctx context.Context, statuses ...model.DownloadStatus) ([]*model.DownloadRecord, error) {
	query, args := withStatusFilter(`SELECT `+downloadColumns+` FROM download_transfers`, statusStrings(statuses))
	query += ` ORDER BY expires_at, id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка download: %w", err)
	}
	defer rows.Close()

	result := make([]*model.DownloadRecord, 0)
	for rows.Next() {
		rec, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования download: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// CountDownloads реализует record.DownloadStore.
func (s *Store) CountDownloads(ctx context.Context, statuses ...model.DownloadStatus) (int, error) {
	query, args := withStatusFilter(`SELECT count(*) FROM download_transfers`, statusStrings(statuses))

	var n int
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта download: %w", err)
	}
	return n, nil
}

// --- вспомогательные ---

func scanIngest(row pgx.Row) (*model.IngestRecord, error) {
	rec := &model.IngestRecord{}
	var status string
	var pre, post []byte
	err := row.Scan(
		&rec.ID, &rec.TransferID, &rec.DigitalObjectID, &rec.OwnerID, &rec.GroupID, &rec.AccessPointID,
		&rec.StagingURL, &rec.StorageURL, &status, &rec.ErrorMessage, &rec.ExpiresAt,
		&pre, &post, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Direction = model.DirectionIngest
	rec.Status = model.IngestStatus(status)
	if err := json.Unmarshal(pre, &rec.PreProcessors); err != nil {
		return nil, fmt.Errorf("pre_processors: %w", err)
	}
	if err := json.Unmarshal(post, &rec.PostProcessors); err != nil {
		return nil, fmt.Errorf("post_processors: %w", err)
	}
	return rec, nil
}

func scanDownload(row pgx.Row) (*model.DownloadRecord, error) {
	rec := &model.DownloadRecord{}
	var status string
	var procs []byte
	err := row.Scan(
		&rec.ID, &rec.TransferID, &rec.DigitalObjectID, &rec.OwnerID, &rec.GroupID, &rec.AccessPointID,
		&rec.StagingURL, &status, &rec.ErrorMessage, &rec.ExpiresAt, &rec.ViewName, &rec.NotificationReceiver,
		&procs, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Direction = model.DirectionDownload
	rec.Status = model.DownloadStatus(status)
	if err := json.Unmarshal(procs, &rec.Processors); err != nil {
		return nil, fmt.Errorf("processors: %w", err)
	}
	return rec, nil
}

func marshalProcessors(pre, post []model.StagingProcessorConfig) ([]byte, []byte, error) {
	preJSON, err := json.Marshal(nonNil(pre))
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка сериализации pre_processors: %w", err)
	}
	postJSON, err := json.Marshal(nonNil(post))
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка сериализации post_processors: %w", err)
	}
	return preJSON, postJSON, nil
}

func nonNil(p []model.StagingProcessorConfig) []model.StagingProcessorConfig {
	if p == nil {
		return []model.StagingProcessorConfig{}
	}
	return p
}

func statusStrings[S ~string](statuses []S) []string {
	result := make([]string, len(statuses))
	for i, s := range statuses {
		result[i] = string(s)
	}
	return result
}

func activeIngestStatuses() []string {
	return []string{
		string(model.IngestPreparing),
		string(model.IngestPreIngestScheduled),
		string(model.IngestPreIngestRunning),
		string(model.IngestPreIngestFinished),
		string(model.IngestRunning),
	}
}

// withStatusFilter добавляет условие по статусам, если они заданы.
func withStatusFilter(query string, statuses []string) (string, []any) {
	if len(statuses) == 0 {
		return query, nil
	}
	var b strings.Builder
	b.WriteString(query)
	b.WriteString(` WHERE status = ANY($1)`)
	return b.String(), []any{statuses}
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
