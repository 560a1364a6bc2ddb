// Пакет virtualization — виртуализация хранилища: перенос данных
// перемещения из кэша staging в архив (store) и восстановление данных
// представления из архива в кэш (restore).
package virtualization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/task"
)

// Adapter — порт виртуализации хранилища.
type Adapter interface {
	// Store архивирует закрытый контейнер и возвращает дерево архивной
	// копии. Расположение копии записывается в контейнер (SetStorageURL).
	Store(ctx context.Context, c *task.Container) (*model.FileTree, error)
	// Restore копирует файлы дерева tree в папку data/ каталога destination.
	Restore(ctx context.Context, rec *model.DownloadRecord, tree *model.FileTree, destination string) error
}

// Factory создаёт адаптер по параметрам слота конфигурации.
type Factory func(props map[string]string, logger *slog.Logger) (Adapter, error)

// ErrUnknownImplementation — реализация не зарегистрирована.
var ErrUnknownImplementation = errors.New("неизвестная реализация виртуализации хранилища")

// Registry — реестр реализаций: идентификатор → фабрика.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry создаёт реестр со встроенной реализацией local-archive.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(ImplLocalArchive, NewLocalArchive)
	return r
}

// Register добавляет или заменяет реализацию.
func (r *Registry) Register(impl string, f Factory) {
	r.factories[impl] = f
}

// Has проверяет, зарегистрирована ли реализация.
func (r *Registry) Has(impl string) bool {
	_, ok := r.factories[impl]
	return ok
}

// Implementations возвращает отсортированный список реализаций.
func (r *Registry) Implementations() []string {
	result := make([]string, 0, len(r.factories))
	for impl := range r.factories {
		result = append(result, impl)
	}
	sort.Strings(result)
	return result
}

// Create создаёт адаптер.
func (r *Registry) Create(impl string, props map[string]string, logger *slog.Logger) (Adapter, error) {
	f, ok := r.factories[impl]
	if !ok {
		return nil, fmt.Errorf("%q: %w", impl, ErrUnknownImplementation)
	}
	return f(props, logger)
}
