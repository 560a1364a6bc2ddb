package processor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newContainer(t *testing.T, files map[string]string) *task.Container {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, model.DataFolder, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	tr := &model.Transfer{TransferID: "tr-1", DigitalObjectID: "obj/1"}
	return task.New(tr, model.SystemContext, root, nil)
}

// recorder — тестовый процессор, записывающий порядок вызовов.
type recorder struct {
	name  string
	calls *[]string
	fail  bool
}

func (r *recorder) Supports(Phase) bool { return true }

func (r *recorder) Execute(_ context.Context, _ *task.Container, _ Phase) error {
	*r.calls = append(*r.calls, r.name)
	if r.fail {
		return errors.New("сбой " + r.name)
	}
	return nil
}

func recorderRegistry(calls *[]string) *Registry {
	r := NewRegistry()
	r.Register("recorder", func(cfg model.StagingProcessorConfig, _ *slog.Logger) (Processor, error) {
		return &recorder{name: cfg.ID, calls: calls, fail: cfg.Property("fail", "") == "true"}, nil
	})
	return r
}

// TestPipeline_PreArchiveFailFast проверяет порядок и прерывание конвейера.
func TestPipeline_PreArchiveFailFast(t *testing.T) {
	var calls []string
	p := NewPipeline(recorderRegistry(&calls), testLogger())
	c := newContainer(t, nil)

	cfgs := []model.StagingProcessorConfig{
		{ID: "c", Implementation: "recorder", Priority: 30},
		{ID: "a", Implementation: "recorder", Priority: 10},
		{ID: "off", Implementation: "recorder", Priority: 5, Disabled: true},
		{ID: "b", Implementation: "recorder", Priority: 20, Properties: map[string]string{"fail": "true"}},
	}

	err := p.RunPreArchive(context.Background(), c, cfgs)
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("ожидалась processor.Error, получено %v", err)
	}
	if perr.Processor != "b" || perr.Op != OpExecute {
		t.Errorf("неожиданная ошибка: %+v", perr)
	}
	if !strings.Contains(err.Error(), "StagingProcessor 'b'") {
		t.Errorf("сообщение должно называть процессор: %s", err)
	}
	if strings.Join(calls, ",") != "a,b" {
		t.Errorf("ожидался порядок a,b, получено %v", calls)
	}
}

// TestPipeline_PostArchiveFailSoft проверяет продолжение после ошибки.
func TestPipeline_PostArchiveFailSoft(t *testing.T) {
	var calls []string
	p := NewPipeline(recorderRegistry(&calls), testLogger())
	c := newContainer(t, nil)

	cfgs := []model.StagingProcessorConfig{
		{ID: "a", Implementation: "recorder", Priority: 1, Properties: map[string]string{"fail": "true"}},
		{ID: "b", Implementation: "recorder", Priority: 2},
	}

	errs := p.RunPostArchive(context.Background(), c, cfgs)
	if len(errs) != 1 {
		t.Errorf("ожидалась 1 ошибка, получено %d", len(errs))
	}
	if strings.Join(calls, ",") != "a,b" {
		t.Errorf("все процессоры должны быть выполнены, получено %v", calls)
	}
}

// TestRegistry_ConfigErrors проверяет ошибки настройки.
func TestRegistry_ConfigErrors(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name  string
		cfg   model.StagingProcessorConfig
		phase Phase
	}{
		{"неизвестная реализация", model.StagingProcessorConfig{ID: "x", Implementation: "nope"}, PhasePreArchive},
		{"zipper для ingest", model.StagingProcessorConfig{ID: "z", Implementation: ImplDownloadZipper}, PhasePreArchive},
		{"hash для download", model.StagingProcessorConfig{ID: "h", Implementation: ImplInputHash}, PhaseDownload},
		{"неверный параметр", model.StagingProcessorConfig{ID: "z", Implementation: ImplDownloadZipper, Properties: map[string]string{"keepFiles": "maybe"}}, PhaseDownload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate([]model.StagingProcessorConfig{tt.cfg}, tt.phase, testLogger())
			var perr *Error
			if !errors.As(err, &perr) || perr.Op != OpConfigure {
				t.Errorf("ожидалась ошибка настройки, получено %v", err)
			}
		})
	}

	// Отключённые процессоры не проверяются
	off := model.StagingProcessorConfig{ID: "x", Implementation: "nope", Disabled: true}
	if err := r.Validate([]model.StagingProcessorConfig{off}, PhasePreArchive, testLogger()); err != nil {
		t.Errorf("отключённый процессор: %v", err)
	}
}

// TestInputHash_GenerateAndVerify проверяет манифест и сверку.
func TestInputHash_GenerateAndVerify(t *testing.T) {
	c := newContainer(t, map[string]string{"a.txt": "hello", "sub/b.txt": "world"})
	p, err := NewInputHash(model.StagingProcessorConfig{ID: "hash", Implementation: ImplInputHash}, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}
	ctx := context.Background()

	if err := p.Execute(ctx, c, PhasePreArchive); err != nil {
		t.Fatalf("ошибка генерации: %v", err)
	}
	manifest, err := os.ReadFile(filepath.Join(c.GeneratedDir(), "hash.sha256"))
	if err != nil {
		t.Fatalf("манифест не создан: %v", err)
	}
	// sha256("hello")
	if !strings.Contains(string(manifest), "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824  a.txt") {
		t.Errorf("неожиданный манифест:\n%s", manifest)
	}

	// Сверка без архива выполняется по папке кэша
	if err := p.Execute(ctx, c, PhasePostArchive); err != nil {
		t.Fatalf("сверка неизменённых данных: %v", err)
	}

	if err := os.WriteFile(filepath.Join(c.DataDir(), "a.txt"), []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := p.Execute(ctx, c, PhasePostArchive); err == nil {
		t.Error("изменённые данные должны вызвать ошибку сверки")
	}
}

// TestInputHash_VerifyWithoutManifest проверяет пропуск сверки без манифеста.
func TestInputHash_VerifyWithoutManifest(t *testing.T) {
	c := newContainer(t, map[string]string{"a.txt": "x"})
	p, _ := NewInputHash(model.StagingProcessorConfig{ID: "hash"}, testLogger())
	if err := p.Execute(context.Background(), c, PhasePostArchive); err != nil {
		t.Errorf("без манифеста сверка должна быть пропущена: %v", err)
	}
}

// TestDownloadZipper проверяет упаковку данных в архив.
func TestDownloadZipper(t *testing.T) {
	c := newContainer(t, map[string]string{"a.txt": "hello", "sub/b.txt": "world"})
	p, err := NewDownloadZipper(model.StagingProcessorConfig{ID: "zip"}, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}

	if err := p.Execute(context.Background(), c, PhaseDownload); err != nil {
		t.Fatalf("ошибка упаковки: %v", err)
	}

	entries, err := os.ReadDir(c.DataDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "obj_1.zip" {
		t.Fatalf("в data/ ожидался только obj_1.zip, получено %v", entries)
	}

	zr, err := zip.OpenReader(filepath.Join(c.DataDir(), "obj_1.zip"))
	if err != nil {
		t.Fatalf("ошибка открытия архива: %v", err)
	}
	defer zr.Close()

	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["a.txt"] || !names["sub/b.txt"] {
		t.Errorf("неожиданное содержимое архива: %v", names)
	}
}
