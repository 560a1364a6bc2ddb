package atomicfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TestWriteAndRead проверяет запись и чтение JSON.
func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "sample.json")

	if err := WriteJSON(path, sample{Name: "a", Count: 3}); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	var got sample
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if got.Name != "a" || got.Count != 3 {
		t.Errorf("ожидалось {a 3}, получено %+v", got)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("временный файл не удалён после записи")
	}
}

// TestReadJSON_NotExist проверяет, что отсутствие файла распознаётся через os.ErrNotExist.
func TestReadJSON_NotExist(t *testing.T) {
	var got sample
	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &got)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ожидалась os.ErrNotExist, получено %v", err)
	}
}

// TestDelete_Idempotent проверяет повторное удаление.
func TestDelete_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.json")
	if err := Write(path, []byte("{}")); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}
	if err := Delete(path); err != nil {
		t.Fatalf("первое удаление: %v", err)
	}
	if err := Delete(path); err != nil {
		t.Errorf("повторное удаление должно вернуть nil, получено %v", err)
	}
	if Exists(path) {
		t.Error("файл должен быть удалён")
	}
}
