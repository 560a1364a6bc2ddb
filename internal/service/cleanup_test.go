package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arturkryukov/artsore/staging-service/internal/config"
	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

func TestCleanupService_RunOnce(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), config.Processors{})
	ctx := context.Background()
	future := time.Now().Add(time.Hour).UnixMilli()

	env.scheduledIngest(t, "tr-expired", "obj-expired", 100, map[string]string{"a.txt": "a"})
	env.scheduledIngest(t, "tr-alive", "obj-alive", future, map[string]string{"a.txt": "a"})
	env.addIngest(t, "tr-running", "obj-running", model.IngestRunning, 100)

	svc := NewCleanupService(env.orch, time.Hour, nil, testLogger())
	result := svc.RunOnce(ctx)

	if result.ExpiredCount != 1 {
		t.Errorf("ExpiredCount: ожидалось 1, получено %d", result.ExpiredCount)
	}
	if result.FlushedCount != 1 {
		t.Errorf("FlushedCount: ожидалось 1, получено %d", result.FlushedCount)
	}
	if result.Errors != 0 {
		t.Errorf("Errors: ожидалось 0, получено %d", result.Errors)
	}

	if got := env.ingest(t, "obj-expired").Status; got != model.IngestRemoved {
		t.Errorf("obj-expired: ожидался INGEST_REMOVED, получен %s", got)
	}
	if _, err := os.Stat(filepath.Join(env.cache, "user-1", "tr-expired")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("папка истёкшего перемещения не удалена: %v", err)
	}
	if got := env.ingest(t, "obj-alive").Status; got != model.IngestPreIngestScheduled {
		t.Errorf("obj-alive: статус изменился на %s", got)
	}
	if _, err := os.Stat(filepath.Join(env.cache, "user-1", "tr-alive")); err != nil {
		t.Errorf("папка активного перемещения удалена: %v", err)
	}
	if got := env.ingest(t, "obj-running").Status; got != model.IngestRunning {
		t.Errorf("obj-running: выполняющаяся финализация затронута, статус %s", got)
	}

	// Повторный запуск: удалённых папок больше нет
	again := svc.RunOnce(ctx)
	if again.ExpiredCount != 0 || again.FlushedCount != 0 {
		t.Errorf("повторная очистка: %+v", again)
	}
}

func TestCleanupService_Downloads(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), config.Processors{})
	ctx := context.Background()
	env.finishedObject(t, "obj-1", map[string]string{"a.txt": "alpha"})

	rec, err := env.orch.RegisterDownload(ctx, DownloadRequest{DigitalObjectID: "obj-1"}, testAuth)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.orch.ScheduleDownload(ctx, "obj-1", "", testAuth); err != nil {
		t.Fatal(err)
	}

	// Срок выгрузки истекает через два часа
	env.orch.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	svc := NewCleanupService(env.orch, time.Hour, nil, testLogger())
	result := svc.RunOnce(ctx)
	// Истекли и ingest (expiresAt=100), и выгрузка
	if result.ExpiredCount != 2 {
		t.Errorf("ExpiredCount: ожидалось 2, получено %d", result.ExpiredCount)
	}
	if got := env.download(t, rec.TransferID).Status; got != model.DownloadRemoved {
		t.Errorf("статус выгрузки: ожидался DOWNLOAD_REMOVED, получен %s", got)
	}
	if _, err := os.Stat(filepath.Join(env.cache, "user-1", rec.TransferID)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("папка выгрузки не удалена: %v", err)
	}
}

func TestCleanupService_StartStop(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), config.Processors{})
	env.scheduledIngest(t, "tr-expired", "obj-expired", 100, nil)

	svc := NewCleanupService(env.orch, 50*time.Millisecond, func() bool { return true }, testLogger())
	svc.Start(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if env.ingest(t, "obj-expired").Status == model.IngestRemoved {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	svc.Stop()

	if got := env.ingest(t, "obj-expired").Status; got != model.IngestRemoved {
		t.Errorf("фоновая очистка не выполнена, статус %s", got)
	}
}

func TestCleanupService_NotLeader(t *testing.T) {
	env := newTestEnv(t, defaultLimits(), config.Processors{})
	env.scheduledIngest(t, "tr-expired", "obj-expired", 100, nil)

	svc := NewCleanupService(env.orch, 20*time.Millisecond, func() bool { return false }, testLogger())
	svc.Start(context.Background())
	time.Sleep(150 * time.Millisecond)
	svc.Stop()

	if got := env.ingest(t, "obj-expired").Status; got != model.IngestPreIngestScheduled {
		t.Errorf("очистка на не-лидере изменила статус: %s", got)
	}
}
