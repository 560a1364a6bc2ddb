// Пакет accesspoint — точки доступа к кэшу staging.
//
// Точка доступа отвечает за папку перемещения: создаёт её при подготовке,
// вычисляет URL, по которому клиент загружает или забирает данные,
// преобразует URL обратно в локальный путь и помечает папку на удаление.
// Реализация выбирается по идентификатору через Registry при каждом
// обращении, конфигурация перечитывается из каталога.
package accesspoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

// AccessPoint — адаптер точки доступа.
type AccessPoint interface {
	// Config возвращает конфигурацию точки доступа.
	Config() model.AccessPointConfig
	// Prepare создаёт (идемпотентно) папку перемещения с подпапками
	// data/, generated/, settings/ и возвращает её локальный путь.
	// Ошибки возвращаются как *PreparationError.
	Prepare(ctx context.Context, t *model.Transfer, auth model.AuthContext) (string, error)
	// AccessURL возвращает URL папки перемещения для клиента.
	AccessURL(t *model.Transfer, auth model.AuthContext) (string, error)
	// LocalPathForURL преобразует URL папки в локальный путь.
	LocalPathForURL(stagingURL string, auth model.AuthContext) (string, error)
	// PrepareCleanup помечает папку на удаление маркером settings/.deleted.
	// Данные не удаляются. Отсутствующая папка считается удалённой.
	PrepareCleanup(ctx context.Context, t *model.Transfer, auth model.AuthContext) bool
	// IsTransferDeleted проверяет наличие маркера удаления или отсутствие папки.
	IsTransferDeleted(t *model.Transfer, auth model.AuthContext) bool
}

// PreparationError — ошибка подготовки папки перемещения.
type PreparationError struct {
	AccessPointID string
	Reason        string
	Err           error
}

func (e *PreparationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("точка доступа %s: %s: %v", e.AccessPointID, e.Reason, e.Err)
	}
	return fmt.Sprintf("точка доступа %s: %s", e.AccessPointID, e.Reason)
}

func (e *PreparationError) Unwrap() error {
	return e.Err
}

var (
	// ErrUnknownAccessPoint — точка доступа не найдена в каталоге.
	ErrUnknownAccessPoint = errors.New("неизвестная точка доступа")
	// ErrDisabled — точка доступа отключена.
	ErrDisabled = errors.New("точка доступа отключена")
	// ErrForbiddenGroup — точка доступа недоступна группе пользователя.
	ErrForbiddenGroup = errors.New("точка доступа недоступна группе")
	// ErrUnknownImplementation — реализация не зарегистрирована.
	ErrUnknownImplementation = errors.New("неизвестная реализация точки доступа")
	// ErrForeignURL — URL не относится к точке доступа.
	ErrForeignURL = errors.New("URL не принадлежит точке доступа")
)

// folder — общая работа с папкой перемещения для реализаций точек доступа.
type folder struct {
	cfg    model.AccessPointConfig
	logger *slog.Logger
}

func newFolder(cfg model.AccessPointConfig, logger *slog.Logger) (folder, error) {
	if cfg.LocalBasePath == "" {
		return folder{}, fmt.Errorf("точка доступа %s: не задан localBasePath", cfg.ID)
	}
	if cfg.RemoteBaseURL == "" {
		return folder{}, fmt.Errorf("точка доступа %s: не задан remoteBaseUrl", cfg.ID)
	}
	cfg.LocalBasePath = WithTrailingSlash(cfg.LocalBasePath)
	cfg.RemoteBaseURL = WithTrailingSlash(cfg.RemoteBaseURL)
	return folder{
		cfg: cfg,
		logger: logger.With(
			slog.String("component", "access_point"),
			slog.String("access_point_id", cfg.ID),
		),
	}, nil
}

func (f folder) Config() model.AccessPointConfig {
	return f.cfg
}

// relFromURL возвращает часть URL после RemoteBaseURL без завершающего '/'.
func (f folder) relFromURL(stagingURL string) (string, error) {
	u := WithTrailingSlash(stagingURL)
	if !strings.HasPrefix(u, f.cfg.RemoteBaseURL) {
		return "", fmt.Errorf("%s: %w", stagingURL, ErrForeignURL)
	}
	rel := strings.Trim(strings.TrimPrefix(u, f.cfg.RemoteBaseURL), "/")
	if rel == "" || strings.Contains(rel, "..") {
		return "", fmt.Errorf("некорректный URL папки перемещения %q", stagingURL)
	}
	return rel, nil
}

// provision создаёт подпапки и проверяет запись. Маркер удаления
// от предыдущего использования снимается.
func (f folder) provision(path string) error {
	for _, sub := range []string{model.DataFolder, model.GeneratedFolder, model.SettingsFolder} {
		if err := os.MkdirAll(filepath.Join(path, sub), 0o770); err != nil {
			return &PreparationError{AccessPointID: f.cfg.ID, Reason: "не удалось создать папку", Err: err}
		}
	}

	probe := filepath.Join(path, model.SettingsFolder, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o640); err != nil {
		return &PreparationError{AccessPointID: f.cfg.ID, Reason: "папка недоступна для записи", Err: err}
	}
	os.Remove(probe)

	if err := os.Remove(filepath.Join(path, model.SettingsFolder, model.DeletedMarker)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &PreparationError{AccessPointID: f.cfg.ID, Reason: "не удалось снять маркер удаления", Err: err}
	}
	return nil
}

// clearContent удаляет содержимое data/ и generated/.
func (f folder) clearContent(path string) error {
	for _, sub := range []string{model.DataFolder, model.GeneratedFolder} {
		if err := os.RemoveAll(filepath.Join(path, sub)); err != nil {
			return &PreparationError{AccessPointID: f.cfg.ID, Reason: "не удалось очистить папку", Err: err}
		}
	}
	return nil
}

func (f folder) markDeleted(path, transferID string) bool {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return true
	}

	marker := filepath.Join(path, model.SettingsFolder, model.DeletedMarker)
	if err := os.MkdirAll(filepath.Dir(marker), 0o770); err != nil {
		f.logger.Warn("Не удалось создать папку settings для маркера удаления",
			slog.String("transfer_id", transferID),
			slog.String("error", err.Error()),
		)
		return false
	}
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := os.WriteFile(marker, []byte(stamp), 0o640); err != nil {
		f.logger.Warn("Не удалось записать маркер удаления",
			slog.String("transfer_id", transferID),
			slog.String("error", err.Error()),
		)
		return false
	}

	f.logger.Info("Папка перемещения помечена на удаление",
		slog.String("transfer_id", transferID),
		slog.String("path", path),
	)
	return true
}

func isDeleted(path string) bool {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return true
	}
	_, err := os.Stat(filepath.Join(path, model.SettingsFolder, model.DeletedMarker))
	return err == nil
}

// WithTrailingSlash добавляет завершающий '/' при его отсутствии.
func WithTrailingSlash(s string) string {
	if s == "" || strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
