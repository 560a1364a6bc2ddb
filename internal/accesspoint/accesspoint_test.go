package accesspoint

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testTransfer(dir model.Direction) *model.Transfer {
	return &model.Transfer{
		TransferID:      "tr-1",
		Direction:       dir,
		DigitalObjectID: "obj-1",
		OwnerID:         "alice",
		GroupID:         "lab",
		AccessPointID:   "local-ap",
	}
}

// TestBasic_PrepareAndURL проверяет подготовку папки и преобразование URL.
func TestBasic_PrepareAndURL(t *testing.T) {
	base := t.TempDir()
	ap, err := NewBasic(model.AccessPointConfig{
		ID:             "local-ap",
		Implementation: ImplBasic,
		LocalBasePath:  base,
		RemoteBaseURL:  "https://staging.example/cache",
	}, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}
	ctx := context.Background()
	tr := testTransfer(model.DirectionIngest)
	auth := tr.Context()

	path, err := ap.Prepare(ctx, tr, auth)
	if err != nil {
		t.Fatalf("ошибка Prepare: %v", err)
	}
	if path != filepath.Join(base, "alice", "tr-1") {
		t.Errorf("неожиданный путь: %s", path)
	}
	for _, sub := range []string{model.DataFolder, model.GeneratedFolder, model.SettingsFolder} {
		if _, err := os.Stat(filepath.Join(path, sub)); err != nil {
			t.Errorf("подпапка %s не создана: %v", sub, err)
		}
	}

	// Повторная подготовка идемпотентна
	if _, err := ap.Prepare(ctx, tr, auth); err != nil {
		t.Fatalf("повторный Prepare: %v", err)
	}

	u, err := ap.AccessURL(tr, auth)
	if err != nil {
		t.Fatalf("ошибка AccessURL: %v", err)
	}
	if u != "https://staging.example/cache/alice/tr-1/" {
		t.Errorf("неожиданный URL: %s", u)
	}

	back, err := ap.LocalPathForURL(u, auth)
	if err != nil {
		t.Fatalf("ошибка LocalPathForURL: %v", err)
	}
	if back != path {
		t.Errorf("обратное преобразование: ожидалось %s, получено %s", path, back)
	}

	if _, err := ap.LocalPathForURL("https://other.example/x/", auth); !errors.Is(err, ErrForeignURL) {
		t.Errorf("чужой URL: ожидалась ErrForeignURL, получено %v", err)
	}
}

// TestBasic_DownloadClearsContent проверяет очистку папки при подготовке download.
func TestBasic_DownloadClearsContent(t *testing.T) {
	base := t.TempDir()
	ap, _ := NewBasic(model.AccessPointConfig{ID: "ap", LocalBasePath: base, RemoteBaseURL: "file:///cache/"}, testLogger())
	tr := testTransfer(model.DirectionDownload)

	path, err := ap.Prepare(context.Background(), tr, tr.Context())
	if err != nil {
		t.Fatalf("ошибка Prepare: %v", err)
	}
	stale := filepath.Join(path, model.DataFolder, "stale.txt")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ap.Prepare(context.Background(), tr, tr.Context()); err != nil {
		t.Fatalf("повторный Prepare: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("содержимое предыдущей выгрузки должно быть удалено")
	}
}

// TestMasking_URL проверяет скрытие пользователя в URL.
func TestMasking_URL(t *testing.T) {
	base := t.TempDir()
	ap, err := NewMasking(model.AccessPointConfig{ID: "mask", LocalBasePath: base, RemoteBaseURL: "sftp://host/upload/"}, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания: %v", err)
	}
	tr := testTransfer(model.DirectionIngest)

	path, err := ap.Prepare(context.Background(), tr, tr.Context())
	if err != nil {
		t.Fatalf("ошибка Prepare: %v", err)
	}
	u, _ := ap.AccessURL(tr, tr.Context())
	if u != "sftp://host/upload/tr-1/" {
		t.Errorf("неожиданный URL: %s", u)
	}
	back, err := ap.LocalPathForURL(u, tr.Context())
	if err != nil || back != path {
		t.Errorf("обратное преобразование: %s, %v (ожидалось %s)", back, err, path)
	}
}

// TestPrepareCleanup проверяет маркер удаления.
func TestPrepareCleanup(t *testing.T) {
	base := t.TempDir()
	ap, _ := NewBasic(model.AccessPointConfig{ID: "ap", LocalBasePath: base, RemoteBaseURL: "file:///cache/"}, testLogger())
	tr := testTransfer(model.DirectionIngest)
	ctx := context.Background()

	// Отсутствующая папка считается удалённой
	if !ap.PrepareCleanup(ctx, tr, tr.Context()) {
		t.Error("PrepareCleanup для отсутствующей папки должен вернуть true")
	}
	if !ap.IsTransferDeleted(tr, tr.Context()) {
		t.Error("отсутствующая папка должна считаться удалённой")
	}

	path, _ := ap.Prepare(ctx, tr, tr.Context())
	if ap.IsTransferDeleted(tr, tr.Context()) {
		t.Error("подготовленная папка не должна считаться удалённой")
	}
	if !ap.PrepareCleanup(ctx, tr, tr.Context()) {
		t.Fatal("PrepareCleanup вернул false")
	}
	if !ap.IsTransferDeleted(tr, tr.Context()) {
		t.Error("после PrepareCleanup папка должна считаться удалённой")
	}
	if _, err := os.Stat(filepath.Join(path, model.DataFolder)); err != nil {
		t.Error("PrepareCleanup не должен удалять данные")
	}
}

// TestResolver проверяет разрешение точек доступа.
func TestResolver(t *testing.T) {
	base := t.TempDir()
	catalog := StaticCatalog{
		{ID: "local-ap", Implementation: ImplBasic, LocalBasePath: base, RemoteBaseURL: "file:///a/", Default: true},
		{ID: "off", Implementation: ImplBasic, LocalBasePath: base, RemoteBaseURL: "file:///b/", Disabled: true},
		{ID: "lab-only", Implementation: ImplMasking, LocalBasePath: base, RemoteBaseURL: "file:///c/", GroupID: "lab"},
		{ID: "weird", Implementation: "ftp", LocalBasePath: base, RemoteBaseURL: "file:///d/"},
	}
	r := NewResolver(catalog, NewRegistry(), testLogger())
	ctx := context.Background()
	alice := model.AuthContext{UserID: "alice", GroupID: "lab"}
	bob := model.AuthContext{UserID: "bob", GroupID: "other"}

	tests := []struct {
		name    string
		id      string
		auth    model.AuthContext
		wantErr error
	}{
		{"по идентификатору", "local-ap", alice, nil},
		{"по умолчанию", "", bob, nil},
		{"неизвестная", "missing", alice, ErrUnknownAccessPoint},
		{"отключённая", "off", alice, ErrDisabled},
		{"своя группа", "lab-only", alice, nil},
		{"чужая группа", "lab-only", bob, ErrForbiddenGroup},
		{"системный контекст", "lab-only", model.SystemContext, nil},
		{"неизвестная реализация", "weird", alice, ErrUnknownImplementation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ap, err := r.Resolve(ctx, tt.id, tt.auth)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ожидалась %v, получено %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if ap == nil {
				t.Fatal("точка доступа nil")
			}
		})
	}

	// Фоновые операции разрешают и отключённые точки
	if _, err := r.ResolveForRecord(ctx, &model.Transfer{AccessPointID: "off"}); err != nil {
		t.Errorf("ResolveForRecord для отключённой точки: %v", err)
	}
}
