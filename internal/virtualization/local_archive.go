package virtualization

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arturkryukov/artsore/staging-service/internal/dataorg"
	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/task"
)

// ImplLocalArchive — идентификатор реализации local-archive.
const ImplLocalArchive = "local-archive"

// LocalArchive — архив в локальной (или смонтированной) директории.
//
// Параметры:
//   - archiveUrl — корень архива, file:///..., $tmp заменяется на временную директорию;
//   - pathPattern — подкаталог архивной копии, поддерживает $year $month $day $owner $group.
//
// Архивная копия перемещения: {archive}/{pattern}/{transfer_id}/ с подпапками
// data/ и generated/.
type LocalArchive struct {
	root    string
	pattern string
	now     func() time.Time
	logger  *slog.Logger
}

// NewLocalArchive создаёт адаптер local-archive.
func NewLocalArchive(props map[string]string, logger *slog.Logger) (Adapter, error) {
	raw := props["archiveUrl"]
	if raw == "" {
		return nil, errors.New("local-archive: не задан archiveUrl")
	}
	raw = strings.ReplaceAll(raw, "$tmp", filepath.ToSlash(os.TempDir()))
	root, err := model.PathFromURL(raw)
	if err != nil {
		return nil, fmt.Errorf("local-archive: archiveUrl: %w", err)
	}

	pattern := props["pathPattern"]
	if strings.Contains(pattern, "..") {
		return nil, fmt.Errorf("local-archive: недопустимый pathPattern %q", pattern)
	}

	return &LocalArchive{
		root:    filepath.Clean(root),
		pattern: pattern,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "local_archive")),
	}, nil
}

// Root возвращает корень архива.
func (a *LocalArchive) Root() string {
	return a.root
}

// destination вычисляет папку архивной копии перемещения.
func (a *LocalArchive) destination(t *model.Transfer) string {
	now := a.now().UTC()
	sub := strings.NewReplacer(
		"$year", fmt.Sprintf("%04d", now.Year()),
		"$month", fmt.Sprintf("%02d", int(now.Month())),
		"$day", fmt.Sprintf("%02d", now.Day()),
		"$owner", t.OwnerID,
		"$group", t.GroupID,
	).Replace(a.pattern)
	return filepath.Join(a.root, filepath.FromSlash(sub), t.TransferID)
}

// Store реализует Adapter.
func (a *LocalArchive) Store(ctx context.Context, c *task.Container) (*model.FileTree, error) {
	if !c.IsClosed() {
		return nil, errors.New("контейнер задачи не закрыт")
	}
	t := c.Transfer()
	dest := a.destination(t)

	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("не удалось очистить архивную папку %s: %w", dest, err)
	}
	for _, folder := range []string{model.DataFolder, model.GeneratedFolder} {
		src := filepath.Join(c.LocalPath(), folder)
		if err := copyTree(ctx, src, filepath.Join(dest, folder)); err != nil {
			return nil, fmt.Errorf("ошибка архивирования %s: %w", folder, err)
		}
	}

	tree, err := dataorg.Scan(dest, t.DigitalObjectID)
	if err != nil {
		return nil, err
	}
	c.SetStorageURL(model.FileURL(dest) + "/")

	a.logger.Info("Данные перемещения архивированы",
		slog.String("transfer_id", t.TransferID),
		slog.String("destination", dest),
		slog.Int("files", tree.FileCount()),
	)
	return tree, nil
}

// Restore реализует Adapter.
func (a *LocalArchive) Restore(ctx context.Context, rec *model.DownloadRecord, tree *model.FileTree, destination string) error {
	if tree == nil || tree.Root == nil {
		return errors.New("дерево представления не задано")
	}
	dataDir := filepath.Join(destination, model.DataFolder)
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать %s: %w", dataDir, err)
	}

	files := 0
	err := tree.Root.Walk(func(rel string, n *model.Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(dataDir, filepath.FromSlash(rel))
		if n.IsCollection() {
			return os.MkdirAll(target, 0o750)
		}
		if n.LogicalURL == "" {
			return fmt.Errorf("у файла %s не задан LogicalURL", rel)
		}
		src, err := model.PathFromURL(n.LogicalURL)
		if err != nil {
			return err
		}
		if err := copyFile(src, target); err != nil {
			return fmt.Errorf("ошибка восстановления %s: %w", rel, err)
		}
		files++
		return nil
	})
	if err != nil {
		return err
	}

	a.logger.Info("Данные восстановлены из архива",
		slog.String("transfer_id", rec.TransferID),
		slog.String("view", tree.ViewName),
		slog.Int("files", files),
	)
	return nil
}

// copyTree копирует содержимое src в dst. Отсутствующий src — не ошибка.
func copyTree(ctx context.Context, src, dst string) error {
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
