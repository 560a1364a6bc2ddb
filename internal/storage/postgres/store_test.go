package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/record"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers,
// применяет миграции и возвращает пул подключений.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("staging_test"),
		postgres.WithUsername("staging"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Не удалось получить DSN контейнера: %v", err)
	}

	if err := Migrate(dsn, testLogger()); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	// Повторное применение без ошибки (ErrNoChange)
	if err := Migrate(dsn, testLogger()); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	pool, err := Connect(ctx, dsn, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// TestMigrateURL проверяет преобразование DSN для golang-migrate.
func TestMigrateURL(t *testing.T) {
	tests := []struct {
		dsn     string
		want    string
		wantErr bool
	}{
		{"postgres://u:p@db:5432/staging?sslmode=disable", "pgx5://u:p@db:5432/staging?sslmode=disable", false},
		{"postgresql://u@db/staging", "pgx5://u@db/staging", false},
		{"mysql://u@db/staging", "", true},
	}

	for _, tt := range tests {
		got, err := MigrateURL(tt.dsn)
		if (err != nil) != tt.wantErr {
			t.Errorf("MigrateURL(%q): ошибка %v, ожидалась ошибка: %v", tt.dsn, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("MigrateURL(%q) = %q, ожидалось %q", tt.dsn, got, tt.want)
		}
	}
}

// TestStore_Ingest проверяет операции ingest на реальной БД.
func TestStore_Ingest(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	s := NewStore(pool)

	rec := &model.IngestRecord{
		Transfer: model.Transfer{
			TransferID:      "tr-1",
			DigitalObjectID: "obj-1",
			OwnerID:         "user",
			AccessPointID:   "local-ap",
			ExpiresAt:       100,
		},
		Status: model.IngestPreparing,
		PreProcessors: []model.StagingProcessorConfig{
			{ID: "hash", Implementation: "input-hash", Priority: 1},
		},
	}
	if err := s.CreateIngest(ctx, rec); err != nil {
		t.Fatalf("CreateIngest: %v", err)
	}
	if rec.ID == 0 {
		t.Error("ID должен быть присвоен")
	}

	dup := *rec
	dup.TransferID = "tr-2"
	if err := s.CreateIngest(ctx, &dup); !errors.Is(err, record.ErrConflict) {
		t.Errorf("второй активный ingest объекта: ожидалась ErrConflict, получено %v", err)
	}

	got, err := s.GetIngest(ctx, "obj-1")
	if err != nil {
		t.Fatalf("GetIngest: %v", err)
	}
	if len(got.PreProcessors) != 1 || got.PreProcessors[0].Implementation != "input-hash" {
		t.Errorf("процессоры не сохранены: %+v", got.PreProcessors)
	}

	got.Status = model.IngestPreIngestScheduled
	got.StagingURL = "file:///cache/user/tr-1/"
	if err := s.UpdateIngest(ctx, got); err != nil {
		t.Fatalf("UpdateIngest: %v", err)
	}

	eligible, err := record.ListEligibleIngests(ctx, s)
	if err != nil {
		t.Fatalf("ListEligibleIngests: %v", err)
	}
	if len(eligible) != 1 || eligible[0].TransferID != "tr-1" {
		t.Errorf("ожидалась одна запись tr-1, получено %+v", eligible)
	}

	n, err := s.CountIngests(ctx, model.IngestRunning)
	if err != nil || n != 0 {
		t.Errorf("CountIngests(INGEST_RUNNING) = %d, %v", n, err)
	}

	if _, err := s.GetIngest(ctx, "missing"); !errors.Is(err, record.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

// TestStore_Download проверяет операции download на реальной БД.
func TestStore_Download(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	s := NewStore(pool)

	rec := &model.DownloadRecord{
		Transfer: model.Transfer{TransferID: "d-1", DigitalObjectID: "obj-1", ExpiresAt: 10},
		Status:   model.DownloadScheduled,
		ViewName: model.DefaultView,
	}
	if err := s.CreateDownload(ctx, rec); err != nil {
		t.Fatalf("CreateDownload: %v", err)
	}

	got, err := s.GetDownload(ctx, "d-1")
	if err != nil {
		t.Fatalf("GetDownload: %v", err)
	}
	got.Status = model.DownloadPreparing
	if err := s.UpdateDownload(ctx, got); err != nil {
		t.Fatalf("UpdateDownload: %v", err)
	}

	n, err := s.CountDownloads(ctx, model.DownloadPreparing)
	if err != nil || n != 1 {
		t.Errorf("CountDownloads(PREPARING) = %d, %v", n, err)
	}

	byObj, err := s.GetDownloadByObject(ctx, "obj-1")
	if err != nil || byObj.TransferID != "d-1" {
		t.Errorf("GetDownloadByObject: %v, %+v", err, byObj)
	}
}

// TestStore_Transition проверяет условное обновление статуса на реальной БД.
func TestStore_Transition(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	s := NewStore(pool)

	in := &model.IngestRecord{
		Transfer: model.Transfer{TransferID: "tr-1", DigitalObjectID: "obj-1", ExpiresAt: 10},
		Status:   model.IngestPreIngestScheduled,
	}
	if err := s.CreateIngest(ctx, in); err != nil {
		t.Fatalf("CreateIngest: %v", err)
	}

	in.Status = model.IngestRunning
	if err := s.TransitionIngest(ctx, in, model.IngestPreIngestScheduled); err != nil {
		t.Fatalf("TransitionIngest: %v", err)
	}
	in.Status = model.IngestRemoved
	if err := s.TransitionIngest(ctx, in, model.IngestPreIngestScheduled); !errors.Is(err, record.ErrStatusChanged) {
		t.Errorf("устаревший статус: ожидалась ErrStatusChanged, получено %v", err)
	}
	missing := &model.IngestRecord{Transfer: model.Transfer{TransferID: "missing"}}
	if err := s.TransitionIngest(ctx, missing, model.IngestPreparing); !errors.Is(err, record.ErrNotFound) {
		t.Errorf("несуществующая запись: ожидалась ErrNotFound, получено %v", err)
	}

	got, err := s.GetIngest(ctx, "obj-1")
	if err != nil || got.Status != model.IngestRunning {
		t.Errorf("GetIngest: %v, статус %v", err, got)
	}

	dl := &model.DownloadRecord{
		Transfer: model.Transfer{TransferID: "d-1", DigitalObjectID: "obj-1", ExpiresAt: 10},
		Status:   model.DownloadScheduled,
		ViewName: model.DefaultView,
	}
	if err := s.CreateDownload(ctx, dl); err != nil {
		t.Fatalf("CreateDownload: %v", err)
	}
	dl.Status = model.DownloadPreparing
	if err := s.TransitionDownload(ctx, dl, model.DownloadScheduled); err != nil {
		t.Fatalf("TransitionDownload: %v", err)
	}
	if err := s.TransitionDownload(ctx, dl, model.DownloadScheduled); !errors.Is(err, record.ErrStatusChanged) {
		t.Errorf("повторный переход: ожидалась ErrStatusChanged, получено %v", err)
	}
}

// TestAccessPointRepository проверяет каталог точек доступа.
func TestAccessPointRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAccessPointRepository(pool)

	ap := model.AccessPointConfig{
		ID:             "local-ap",
		Implementation: "basic",
		LocalBasePath:  "/cache/",
		RemoteBaseURL:  "file:///cache/",
		Default:        true,
		Properties:     map[string]string{"k": "v"},
	}
	if err := repo.Upsert(ctx, ap); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	ap.Disabled = true
	if err := repo.Upsert(ctx, ap); err != nil {
		t.Fatalf("повторный Upsert: %v", err)
	}

	aps, err := repo.AccessPoints(ctx)
	if err != nil {
		t.Fatalf("AccessPoints: %v", err)
	}
	if len(aps) != 1 || !aps[0].Disabled || aps[0].Properties["k"] != "v" {
		t.Errorf("неожиданный каталог: %+v", aps)
	}
}

// TestAdvisoryLeaser проверяет эксклюзивность аренды.
func TestAdvisoryLeaser(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	l := NewAdvisoryLeaser(pool, testLogger())

	release, ok, err := l.Acquire(ctx, "ingest")
	if err != nil || !ok {
		t.Fatalf("первая аренда: ok=%v err=%v", ok, err)
	}
	if _, ok, err := l.Acquire(ctx, "ingest"); err != nil || ok {
		t.Errorf("повторная аренда должна быть отклонена: ok=%v err=%v", ok, err)
	}
	release()

	release2, ok, err := l.Acquire(ctx, "ingest")
	if err != nil || !ok {
		t.Fatalf("аренда после освобождения: ok=%v err=%v", ok, err)
	}
	release2()
}
