// Пакет processor — конвейер обработки перемещения (StagingProcessor).
//
// Процессор создаётся фабрикой из StagingProcessorConfig и выполняется
// над контейнером задачи в одной из фаз: до архивирования (pre),
// после архивирования (post) или после восстановления данных (download).
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/task"
)

// Phase — фаза выполнения процессора.
type Phase string

const (
	PhasePreArchive  Phase = "pre"
	PhasePostArchive Phase = "post"
	PhaseDownload    Phase = "download"
)

// Processor — шаг конвейера.
type Processor interface {
	// Supports проверяет, может ли процессор выполняться в фазе phase.
	Supports(phase Phase) bool
	// Execute выполняет процессор над контейнером.
	Execute(ctx context.Context, c *task.Container, phase Phase) error
}

// Factory создаёт и настраивает процессор по конфигурации.
type Factory func(cfg model.StagingProcessorConfig, logger *slog.Logger) (Processor, error)

// ErrUnknownImplementation — реализация процессора не зарегистрирована.
var ErrUnknownImplementation = errors.New("неизвестная реализация процессора")

// Операции, при которых возникает Error.
const (
	OpConfigure = "configure"
	OpExecute   = "execute"
)

// Error — ошибка настройки или выполнения процессора.
type Error struct {
	Processor string
	Phase     Phase
	Op        string
	Err       error
}

func (e *Error) Error() string {
	if e.Op == OpConfigure {
		return fmt.Sprintf("Не удалось настроить StagingProcessor '%s': %v", e.Processor, e.Err)
	}
	return fmt.Sprintf("Не удалось выполнить StagingProcessor '%s': %v", e.Processor, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Registry — реестр реализаций процессоров: идентификатор → фабрика.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry создаёт реестр со встроенными реализациями.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(ImplInputHash, NewInputHash)
	r.Register(ImplDownloadZipper, NewDownloadZipper)
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

// Create создаёт процессор и проверяет, что он поддерживает фазу phase.
func (r *Registry) Create(cfg model.StagingProcessorConfig, phase Phase, logger *slog.Logger) (Processor, error) {
	f, ok := r.factories[cfg.Implementation]
	if !ok {
		return nil, &Error{
			Processor: cfg.DisplayName(),
			Phase:     phase,
			Op:        OpConfigure,
			Err:       fmt.Errorf("%q: %w", cfg.Implementation, ErrUnknownImplementation),
		}
	}
	p, err := f(cfg, logger)
	if err != nil {
		return nil, &Error{Processor: cfg.DisplayName(), Phase: phase, Op: OpConfigure, Err: err}
	}
	if !p.Supports(phase) {
		return nil, &Error{
			Processor: cfg.DisplayName(),
			Phase:     phase,
			Op:        OpConfigure,
			Err:       fmt.Errorf("реализация %s не поддерживает фазу %s", cfg.Implementation, phase),
		}
	}
	return p, nil
}

// Validate проверяет, что все включённые процессоры создаются для фазы phase.
// Используется при загрузке конфигурации.
func (r *Registry) Validate(cfgs []model.StagingProcessorConfig, phase Phase, logger *slog.Logger) error {
	for _, cfg := range cfgs {
		if cfg.Disabled {
			continue
		}
		if _, err := r.Create(cfg, phase, logger); err != nil {
			return err
		}
	}
	return nil
}

// Ordered возвращает включённые процессоры в порядке приоритета.
func Ordered(cfgs []model.StagingProcessorConfig) []model.StagingProcessorConfig {
	result := make([]model.StagingProcessorConfig, 0, len(cfgs))
	for _, cfg := range cfgs {
		if !cfg.Disabled {
			result = append(result, cfg)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority < result[j].Priority
	})
	return result
}
