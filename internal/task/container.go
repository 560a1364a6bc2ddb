// Пакет task — контейнер задачи перемещения: папка перемещения в кэше,
// дерево её файлов и файлы, добавленные процессорами. Контейнер
// передаётся процессорам и адаптеру виртуализации хранилища.
package task

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/arturkryukov/artsore/staging-service/internal/dataorg"
	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

// ErrClosed — контейнер закрыт, добавление файлов невозможно.
var ErrClosed = errors.New("контейнер задачи закрыт")

// Container — контейнер задачи перемещения.
type Container struct {
	transfer  *model.Transfer
	auth      model.AuthContext
	localPath string

	mu         sync.Mutex
	tree       *model.FileTree
	generated  []string
	closed     bool
	storageURL string
}

// New создаёт контейнер для перемещения transfer с локальной папкой localPath.
// tree — дерево папки на момент создания (для download может быть nil).
func New(transfer *model.Transfer, auth model.AuthContext, localPath string, tree *model.FileTree) *Container {
	return &Container{
		transfer:  transfer,
		auth:      auth,
		localPath: localPath,
		tree:      tree,
	}
}

// Transfer возвращает запись перемещения.
func (c *Container) Transfer() *model.Transfer { return c.transfer }

// Auth возвращает контекст авторизации задачи.
func (c *Container) Auth() model.AuthContext { return c.auth }

// LocalPath возвращает локальную папку перемещения.
func (c *Container) LocalPath() string { return c.localPath }

// DataDir возвращает папку данных пользователя.
func (c *Container) DataDir() string { return filepath.Join(c.localPath, model.DataFolder) }

// GeneratedDir возвращает папку файлов процессоров.
func (c *Container) GeneratedDir() string { return filepath.Join(c.localPath, model.GeneratedFolder) }

// SettingsDir возвращает служебную папку.
func (c *Container) SettingsDir() string { return filepath.Join(c.localPath, model.SettingsFolder) }

// Tree возвращает текущее дерево файлов.
func (c *Container) Tree() *model.FileTree {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree
}

// AddGeneratedFile записывает файл name в generated/ из r.
// Возвращает путь созданного файла.
func (c *Container) AddGeneratedFile(name string, r io.Reader) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("недопустимое имя файла %q", name)
	}

	dir := filepath.Join(c.localPath, model.GeneratedFolder)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("не удалось создать %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("ошибка создания %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("ошибка записи %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("ошибка закрытия %s: %w", path, err)
	}

	c.generated = append(c.generated, name)
	return path, nil
}

// Generated возвращает имена файлов, добавленных процессорами.
func (c *Container) Generated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.generated...)
}

// Close закрывает контейнер: дерево пересканируется, чтобы включить
// файлы процессоров. Повторный вызов ничего не делает.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	tree, err := dataorg.Scan(c.localPath, c.transfer.DigitalObjectID)
	if err != nil {
		return fmt.Errorf("ошибка закрытия контейнера %s: %w", c.transfer.TransferID, err)
	}
	c.tree = tree
	c.closed = true
	return nil
}

// IsClosed проверяет, закрыт ли контейнер.
func (c *Container) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SetStorageURL запоминает расположение архивной копии.
func (c *Container) SetStorageURL(u string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storageURL = u
}

// StorageURL возвращает расположение архивной копии (пусто до store).
func (c *Container) StorageURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storageURL
}
