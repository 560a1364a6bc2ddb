package wal

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// testLogger возвращает логгер для тестов (вывод подавляется).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestNew_CreatesDirectory проверяет, что New создаёт директорию журнала.
func TestNew_CreatesDirectory(t *testing.T) {
	walDir := filepath.Join(t.TempDir(), "wal")

	w, err := New(walDir, testLogger())
	if err != nil {
		t.Fatalf("ожидалось успешное создание WAL, получена ошибка: %v", err)
	}
	if w.Dir() != walDir {
		t.Errorf("ожидался путь %s, получен %s", walDir, w.Dir())
	}
	if info, err := os.Stat(walDir); err != nil || !info.IsDir() {
		t.Fatalf("директория WAL не создана: %v", err)
	}
}

// TestBeginCommit проверяет полный цикл транзакции.
func TestBeginCommit(t *testing.T) {
	w, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания WAL: %v", err)
	}

	entry, err := w.Begin(OpIngestFinalize, "tr-1", "PRE_INGEST_FINISHED")
	if err != nil {
		t.Fatalf("ошибка Begin: %v", err)
	}
	if entry.Status != StatusPending {
		t.Errorf("ожидался статус %s, получен %s", StatusPending, entry.Status)
	}

	if err := w.Commit(entry.TransactionID, "INGEST_FINISHED"); err != nil {
		t.Fatalf("ошибка Commit: %v", err)
	}

	got, err := w.GetTransaction(entry.TransactionID)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if got.Status != StatusCommitted || got.FinalStatus != "INGEST_FINISHED" {
		t.Errorf("ожидалось committed/INGEST_FINISHED, получено %s/%s", got.Status, got.FinalStatus)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt должен быть заполнен")
	}

	if err := w.Commit(entry.TransactionID, "INGEST_FAILED"); err == nil {
		t.Error("повторный Commit должен вернуть ошибку")
	}
}

// TestRecoverPendingAndResolve проверяет поиск прерванных финализаций.
func TestRecoverPendingAndResolve(t *testing.T) {
	w, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания WAL: %v", err)
	}

	done, _ := w.Begin(OpDownloadFinalize, "d-1", "SCHEDULED")
	if err := w.Commit(done.TransactionID, "DOWNLOAD_READY"); err != nil {
		t.Fatalf("ошибка Commit: %v", err)
	}
	if _, err := w.Begin(OpDownloadFinalize, "d-2", "SCHEDULED"); err != nil {
		t.Fatalf("ошибка Begin: %v", err)
	}

	pending, err := w.RecoverPending()
	if err != nil {
		t.Fatalf("ошибка RecoverPending: %v", err)
	}
	if len(pending) != 1 || pending[0].TransferID != "d-2" {
		t.Fatalf("ожидалась одна pending-запись d-2, получено %+v", pending)
	}

	if err := w.Resolve("d-2"); err != nil {
		t.Fatalf("ошибка Resolve: %v", err)
	}
	pending, _ = w.RecoverPending()
	if len(pending) != 0 {
		t.Errorf("после Resolve не должно остаться pending-записей, получено %d", len(pending))
	}

	cleaned, err := w.CleanCommitted()
	if err != nil {
		t.Fatalf("ошибка CleanCommitted: %v", err)
	}
	if cleaned != 2 {
		t.Errorf("ожидалось удаление 2 записей, удалено %d", cleaned)
	}
}

// TestConcurrentBegin проверяет параллельное создание транзакций.
func TestConcurrentBegin(t *testing.T) {
	w, err := New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания WAL: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.Begin(OpIngestFinalize, "tr", "PRE_INGEST_FINISHED"); err != nil {
				t.Errorf("ошибка Begin: %v", err)
			}
		}()
	}
	wg.Wait()

	pending, _ := w.RecoverPending()
	if len(pending) != 10 {
		t.Errorf("ожидалось 10 pending-записей, получено %d", len(pending))
	}
}
