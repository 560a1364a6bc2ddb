package virtualization

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestNewLocalArchive_Config проверяет разбор параметров.
func TestNewLocalArchive_Config(t *testing.T) {
	if _, err := NewLocalArchive(map[string]string{}, testLogger()); err == nil {
		t.Error("без archiveUrl ожидалась ошибка")
	}
	if _, err := NewLocalArchive(map[string]string{"archiveUrl": "s3://bucket"}, testLogger()); err == nil {
		t.Error("для s3:// ожидалась ошибка")
	}

	a, err := NewLocalArchive(map[string]string{"archiveUrl": "file://$tmp/archive"}, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}
	want := filepath.Join(os.TempDir(), "archive")
	if got := a.(*LocalArchive).Root(); got != want {
		t.Errorf("$tmp: ожидалось %s, получено %s", want, got)
	}
}

// TestLocalArchive_StoreRestore проверяет архивирование и восстановление.
func TestLocalArchive_StoreRestore(t *testing.T) {
	archive := t.TempDir()
	adapter, err := NewLocalArchive(map[string]string{
		"archiveUrl":  model.FileURL(archive),
		"pathPattern": "$owner/$year",
	}, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}
	la := adapter.(*LocalArchive)
	la.now = func() time.Time { return time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC) }

	cache := t.TempDir()
	writeFile(t, filepath.Join(cache, "data", "a.txt"), "aaa")
	writeFile(t, filepath.Join(cache, "data", "sub", "b.txt"), "bb")
	writeFile(t, filepath.Join(cache, "generated", "m.sha256"), "x")

	tr := &model.Transfer{TransferID: "tr-1", DigitalObjectID: "obj-1", OwnerID: "alice"}
	c := task.New(tr, tr.Context(), cache, nil)
	ctx := context.Background()

	if _, err := adapter.Store(ctx, c); err == nil {
		t.Error("Store незакрытого контейнера должен вернуть ошибку")
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	tree, err := adapter.Store(ctx, c)
	if err != nil {
		t.Fatalf("ошибка Store: %v", err)
	}
	dest := filepath.Join(archive, "alice", "2026", "tr-1")
	if _, err := os.Stat(filepath.Join(dest, "data", "sub", "b.txt")); err != nil {
		t.Errorf("файл не скопирован в архив: %v", err)
	}
	if c.StorageURL() != model.FileURL(dest)+"/" {
		t.Errorf("неожиданный StorageURL: %s", c.StorageURL())
	}

	data := tree.Subtree(model.DataFolder, model.DefaultView)
	if data == nil || data.FileCount() != 2 {
		t.Fatalf("дерево архивной копии: %+v", data)
	}

	// Восстановление в новую папку download
	download := t.TempDir()
	rec := &model.DownloadRecord{Transfer: model.Transfer{TransferID: "d-1", DigitalObjectID: "obj-1"}}
	if err := adapter.Restore(ctx, rec, data, download); err != nil {
		t.Fatalf("ошибка Restore: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(download, "data", "sub", "b.txt"))
	if err != nil || string(got) != "bb" {
		t.Errorf("восстановленный файл: %q, %v", got, err)
	}
}

// TestRegistry_Unknown проверяет неизвестную реализацию.
func TestRegistry_Unknown(t *testing.T) {
	_, err := NewRegistry().Create("tape", nil, testLogger())
	if !errors.Is(err, ErrUnknownImplementation) {
		t.Errorf("ожидалась ErrUnknownImplementation, получено %v", err)
	}
}
