package task

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

// TestContainer_AddGeneratedAndClose проверяет добавление файлов и закрытие.
func TestContainer_AddGeneratedAndClose(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, model.DataFolder), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, model.DataFolder, "in.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := &model.Transfer{TransferID: "tr-1", DigitalObjectID: "obj-1"}
	c := New(tr, model.SystemContext, root, nil)

	if _, err := c.AddGeneratedFile("../escape", strings.NewReader("x")); err == nil {
		t.Error("имя с разделителем пути должно быть отклонено")
	}

	path, err := c.AddGeneratedFile("manifest.sha256", strings.NewReader("abc"))
	if err != nil {
		t.Fatalf("ошибка AddGeneratedFile: %v", err)
	}
	if path != filepath.Join(root, model.GeneratedFolder, "manifest.sha256") {
		t.Errorf("неожиданный путь: %s", path)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("ошибка Close: %v", err)
	}
	if !c.IsClosed() {
		t.Error("контейнер должен быть закрыт")
	}
	if c.Tree().FileCount() != 2 {
		t.Errorf("дерево после закрытия: ожидалось 2 файла, получено %d", c.Tree().FileCount())
	}

	if _, err := c.AddGeneratedFile("late.txt", strings.NewReader("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("после закрытия ожидалась ErrClosed, получено %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("повторный Close: %v", err)
	}
}
