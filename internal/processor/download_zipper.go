package processor

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/task"
)

// ImplDownloadZipper — идентификатор реализации download-zipper.
const ImplDownloadZipper = "download-zipper"

// DownloadZipper упаковывает восстановленные данные data/ в один архив
// data/{object_id}.zip. Только для download.
//
// Параметры: keepFiles=true — не удалять исходные файлы после упаковки.
type DownloadZipper struct {
	keepFiles bool
	logger    *slog.Logger
}

// NewDownloadZipper создаёт процессор download-zipper.
func NewDownloadZipper(cfg model.StagingProcessorConfig, logger *slog.Logger) (Processor, error) {
	keep := cfg.Property("keepFiles", "false")
	if keep != "true" && keep != "false" {
		return nil, fmt.Errorf("keepFiles: недопустимое значение %q", keep)
	}
	return &DownloadZipper{
		keepFiles: keep == "true",
		logger:    logger.With(slog.String("processor", ImplDownloadZipper)),
	}, nil
}

// Supports реализует Processor.
func (z *DownloadZipper) Supports(phase Phase) bool {
	return phase == PhaseDownload
}

// Execute реализует Processor. Архив собирается в generated/ и после
// успешной упаковки переносится в data/.
func (z *DownloadZipper) Execute(ctx context.Context, c *task.Container, _ Phase) error {
	name := archiveName(c.Transfer().DigitalObjectID)
	dataDir := c.DataDir()

	if err := os.MkdirAll(c.GeneratedDir(), 0o750); err != nil {
		return fmt.Errorf("не удалось создать %s: %w", c.GeneratedDir(), err)
	}
	tmp := filepath.Join(c.GeneratedDir(), name)

	files, err := zipDir(ctx, dataDir, tmp)
	if err != nil {
		os.Remove(tmp)
		return err
	}

	if !z.keepFiles {
		entries, err := os.ReadDir(dataDir)
		if err != nil {
			return fmt.Errorf("ошибка чтения %s: %w", dataDir, err)
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(dataDir, e.Name())); err != nil {
				return fmt.Errorf("ошибка удаления %s: %w", e.Name(), err)
			}
		}
	}

	if err := os.Rename(tmp, filepath.Join(dataDir, name)); err != nil {
		return fmt.Errorf("ошибка переноса архива в %s: %w", dataDir, err)
	}

	z.logger.Debug("Данные упакованы в архив",
		slog.String("transfer_id", c.Transfer().TransferID),
		slog.String("archive", name),
		slog.Int("files", files),
	)
	return nil
}

// zipDir упаковывает содержимое dir в архив dst. Возвращает число файлов.
func zipDir(ctx context.Context, dir, dst string) (int, error) {
	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания архива: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	files := 0

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return err
		}
		files++
		return nil
	})
	if err != nil {
		zw.Close()
		return 0, fmt.Errorf("ошибка упаковки %s: %w", dir, err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("ошибка завершения архива: %w", err)
	}
	return files, nil
}

func archiveName(objectID string) string {
	r := strings.NewReplacer("/", "_", `\`, "_", ":", "_")
	name := r.Replace(objectID)
	if name == "" {
		name = "download"
	}
	return name + ".zip"
}
