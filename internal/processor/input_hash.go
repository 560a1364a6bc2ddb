package processor

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/task"
)

// ImplInputHash — идентификатор реализации input-hash.
const ImplInputHash = "input-hash"

// InputHash до архивирования вычисляет SHA-256 каждого файла data/ и
// записывает манифест generated/{id}.sha256 в формате sha256sum.
// После архивирования сверяет архивную копию с манифестом.
//
// Параметры: manifest — имя файла манифеста (по умолчанию {id}.sha256).
type InputHash struct {
	manifest string
	logger   *slog.Logger
}

// NewInputHash создаёт процессор input-hash.
func NewInputHash(cfg model.StagingProcessorConfig, logger *slog.Logger) (Processor, error) {
	if cfg.ID == "" {
		return nil, errors.New("не задан идентификатор процессора")
	}
	manifest := cfg.Property("manifest", cfg.ID+".sha256")
	if strings.ContainsAny(manifest, `/\`) {
		return nil, fmt.Errorf("недопустимое имя манифеста %q", manifest)
	}
	return &InputHash{
		manifest: manifest,
		logger:   logger.With(slog.String("processor", ImplInputHash)),
	}, nil
}

// Supports реализует Processor.
func (h *InputHash) Supports(phase Phase) bool {
	return phase == PhasePreArchive || phase == PhasePostArchive
}

// Execute реализует Processor.
func (h *InputHash) Execute(ctx context.Context, c *task.Container, phase Phase) error {
	if phase == PhasePostArchive {
		return h.verify(ctx, c)
	}
	return h.generate(ctx, c)
}

func (h *InputHash) generate(ctx context.Context, c *task.Container) error {
	sums, err := hashDir(ctx, c.DataDir())
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, rel := range sortedKeys(sums) {
		fmt.Fprintf(&buf, "%s  %s\n", sums[rel], rel)
	}
	if _, err := c.AddGeneratedFile(h.manifest, &buf); err != nil {
		return err
	}

	h.logger.Debug("Манифест контрольных сумм записан",
		slog.String("transfer_id", c.Transfer().TransferID),
		slog.Int("files", len(sums)),
	)
	return nil
}

// verify сверяет архивную копию (или папку кэша, если архив неизвестен)
// с манифестом. Отсутствие манифеста не ошибка.
func (h *InputHash) verify(ctx context.Context, c *task.Container) error {
	manifestPath := filepath.Join(c.GeneratedDir(), h.manifest)
	expected, err := readManifest(manifestPath)
	if errors.Is(err, os.ErrNotExist) {
		h.logger.Debug("Манифест отсутствует, проверка пропущена",
			slog.String("transfer_id", c.Transfer().TransferID))
		return nil
	}
	if err != nil {
		return err
	}

	dataDir := c.DataDir()
	if u := c.StorageURL(); u != "" {
		archive, err := model.PathFromURL(u)
		if err != nil {
			return err
		}
		dataDir = filepath.Join(archive, model.DataFolder)
	}

	actual, err := hashDir(ctx, dataDir)
	if err != nil {
		return err
	}

	var mismatched []string
	for rel, sum := range expected {
		if actual[rel] != sum {
			mismatched = append(mismatched, rel)
		}
	}
	if len(mismatched) > 0 {
		sort.Strings(mismatched)
		return fmt.Errorf("контрольные суммы не совпадают: %s", strings.Join(mismatched, ", "))
	}
	return nil
}

// hashDir вычисляет SHA-256 всех файлов dir. Ключ — путь относительно dir
// через '/'. Отсутствующая директория даёт пустой результат.
func hashDir(ctx context.Context, dir string) (map[string]string, error) {
	sums := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		sum, err := hashFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		sums[filepath.ToSlash(rel)] = sum
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка вычисления контрольных сумм %s: %w", dir, err)
	}
	return sums, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readManifest(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		sum, rel, ok := strings.Cut(line, "  ")
		if !ok {
			return nil, fmt.Errorf("некорректная строка манифеста %q", line)
		}
		result[rel] = sum
	}
	return result, sc.Err()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
