package dataorg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

var (
	// ErrNotFound — представление объекта не найдено.
	ErrNotFound = errors.New("представление не найдено")
	// ErrViewExists — представление объекта уже сохранено.
	ErrViewExists = errors.New("представление уже существует")
)

// Prometheus-метрики кэша деревьев.
var (
	treeCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stg_tree_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш деревьев представлений.",
	})
	treeCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stg_tree_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша деревьев представлений.",
	})
)

// Store — порт организации данных: хранение деревьев представлений.
type Store interface {
	// SaveFileTree сохраняет дерево представления. Повторное сохранение
	// существующего представления возвращает ErrViewExists.
	SaveFileTree(ctx context.Context, tree *model.FileTree) error
	// LoadFileTree возвращает дерево представления или ErrNotFound.
	LoadFileTree(ctx context.Context, objectID, view string) (*model.FileTree, error)
	// HasView проверяет наличие представления.
	HasView(ctx context.Context, objectID, view string) (bool, error)
}

// LocalStore — хранение деревьев в JSON-файлах
// {dir}/{object_id}/{view}.json с LRU-кэшем прочитанных деревьев.
type LocalStore struct {
	dir    string
	mu     sync.Mutex
	cache  *expirable.LRU[string, *model.FileTree]
	logger *slog.Logger
}

// NewLocalStore создаёт хранилище деревьев в директории dir.
// cacheSize и ttl задают параметры кэша.
func NewLocalStore(dir string, cacheSize int, ttl time.Duration, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию организации данных %s: %w", dir, err)
	}
	if cacheSize <= 0 {
		cacheSize = 128
	}
	return &LocalStore{
		dir:    dir,
		cache:  expirable.NewLRU[string, *model.FileTree](cacheSize, nil, ttl),
		logger: logger.With(slog.String("component", "data_organization")),
	}, nil
}

// SaveFileTree реализует Store.
func (s *LocalStore) SaveFileTree(_ context.Context, tree *model.FileTree) error {
	if tree == nil || tree.Root == nil {
		return errors.New("пустое дерево")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.viewPath(tree.DigitalObjectID, tree.ViewName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s/%s: %w", tree.DigitalObjectID, tree.ViewName, ErrViewExists)
	}

	if err := WriteTreeFile(path, tree); err != nil {
		return err
	}
	s.cache.Remove(cacheKey(tree.DigitalObjectID, tree.ViewName))

	s.logger.Debug("Представление сохранено",
		slog.String("object_id", tree.DigitalObjectID),
		slog.String("view", tree.ViewName),
		slog.Int("files", tree.FileCount()),
	)
	return nil
}

// LoadFileTree реализует Store. Возвращает копию дерева.
func (s *LocalStore) LoadFileTree(_ context.Context, objectID, view string) (*model.FileTree, error) {
	key := cacheKey(objectID, view)
	if tree, ok := s.cache.Get(key); ok {
		treeCacheHitsTotal.Inc()
		return copyTree(tree), nil
	}
	treeCacheMissesTotal.Inc()

	tree, err := ReadTreeFromFile(s.viewPath(objectID, view))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", objectID, view, ErrNotFound)
		}
		return nil, err
	}
	s.cache.Add(key, tree)
	return copyTree(tree), nil
}

// HasView реализует Store.
func (s *LocalStore) HasView(_ context.Context, objectID, view string) (bool, error) {
	_, err := os.Stat(s.viewPath(objectID, view))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("ошибка проверки представления %s/%s: %w", objectID, view, err)
}

func (s *LocalStore) viewPath(objectID, view string) string {
	return filepath.Join(s.dir, url.PathEscape(objectID), url.PathEscape(view)+".json")
}

func cacheKey(objectID, view string) string {
	return objectID + "\x00" + view
}

func copyTree(t *model.FileTree) *model.FileTree {
	c := *t
	c.Root = t.Root.Copy()
	return &c
}
