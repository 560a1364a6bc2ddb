package accesspoint

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

// Factory создаёт точку доступа по конфигурации.
type Factory func(cfg model.AccessPointConfig, logger *slog.Logger) (AccessPoint, error)

// Registry — реестр реализаций точек доступа: идентификатор → фабрика.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry создаёт реестр со встроенными реализациями basic и masking.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(ImplBasic, NewBasic)
	r.Register(ImplMasking, NewMasking)
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

// Create создаёт точку доступа по конфигурации.
func (r *Registry) Create(cfg model.AccessPointConfig, logger *slog.Logger) (AccessPoint, error) {
	f, ok := r.factories[cfg.Implementation]
	if !ok {
		return nil, fmt.Errorf("точка доступа %s: %q: %w", cfg.ID, cfg.Implementation, ErrUnknownImplementation)
	}
	return f(cfg, logger)
}

// Catalog — источник конфигураций точек доступа (YAML-файл или БД).
type Catalog interface {
	AccessPoints(ctx context.Context) ([]model.AccessPointConfig, error)
}

// Resolver разрешает идентификатор точки доступа в адаптер.
// Конфигурация перечитывается из каталога при каждом вызове.
type Resolver struct {
	catalog  Catalog
	registry *Registry
	logger   *slog.Logger
}

// NewResolver создаёт Resolver.
func NewResolver(catalog Catalog, registry *Registry, logger *slog.Logger) *Resolver {
	return &Resolver{catalog: catalog, registry: registry, logger: logger}
}

// Resolve возвращает точку доступа id для контекста auth.
// Пустой id означает точку доступа по умолчанию.
// Отключённая точка и точка чужой группы не разрешаются; системный
// контекст группой не ограничен.
func (r *Resolver) Resolve(ctx context.Context, id string, auth model.AuthContext) (AccessPoint, error) {
	cfg, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg.Disabled {
		return nil, fmt.Errorf("%s: %w", cfg.ID, ErrDisabled)
	}
	if cfg.GroupID != "" && auth != model.SystemContext && auth.GroupID != cfg.GroupID {
		return nil, fmt.Errorf("%s: %w %s", cfg.ID, ErrForbiddenGroup, auth.GroupID)
	}
	return r.registry.Create(cfg, r.logger)
}

// ResolveForRecord возвращает точку доступа записи без проверки
// отключения: фоновые операции над существующими перемещениями
// (финализация, очистка) выполняются и для отключённых точек.
func (r *Resolver) ResolveForRecord(ctx context.Context, t *model.Transfer) (AccessPoint, error) {
	cfg, err := r.lookup(ctx, t.AccessPointID)
	if err != nil {
		return nil, err
	}
	return r.registry.Create(cfg, r.logger)
}

func (r *Resolver) lookup(ctx context.Context, id string) (model.AccessPointConfig, error) {
	aps, err := r.catalog.AccessPoints(ctx)
	if err != nil {
		return model.AccessPointConfig{}, fmt.Errorf("ошибка чтения каталога точек доступа: %w", err)
	}
	for _, ap := range aps {
		if (id == "" && ap.Default) || (id != "" && ap.ID == id) {
			return ap, nil
		}
	}
	if id == "" {
		return model.AccessPointConfig{}, fmt.Errorf("точка доступа по умолчанию: %w", ErrUnknownAccessPoint)
	}
	return model.AccessPointConfig{}, fmt.Errorf("%q: %w", id, ErrUnknownAccessPoint)
}

// StaticCatalog — неизменяемый каталог в памяти.
type StaticCatalog []model.AccessPointConfig

// AccessPoints реализует Catalog.
func (c StaticCatalog) AccessPoints(context.Context) ([]model.AccessPointConfig, error) {
	return append([]model.AccessPointConfig(nil), c...), nil
}
