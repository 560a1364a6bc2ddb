package accesspoint

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

// ImplBasic — идентификатор реализации basic.
const ImplBasic = "basic"

// Basic — точка доступа, в которой URL и локальный путь совпадают
// по структуре: {base}/{owner_id}/{transfer_id}/.
type Basic struct {
	folder
}

// NewBasic создаёт точку доступа basic.
func NewBasic(cfg model.AccessPointConfig, logger *slog.Logger) (AccessPoint, error) {
	f, err := newFolder(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Basic{folder: f}, nil
}

func (b *Basic) localPath(t *model.Transfer) string {
	return filepath.Join(b.cfg.LocalBasePath, t.OwnerID, t.TransferID)
}

// Prepare реализует AccessPoint. Для download содержимое предыдущей
// выгрузки удаляется.
func (b *Basic) Prepare(_ context.Context, t *model.Transfer, _ model.AuthContext) (string, error) {
	if t.OwnerID == "" || t.TransferID == "" {
		return "", &PreparationError{AccessPointID: b.cfg.ID, Reason: "не заданы владелец или идентификатор перемещения"}
	}
	path := b.localPath(t)

	if t.Direction == model.DirectionDownload {
		if err := b.clearContent(path); err != nil {
			return "", err
		}
	}
	if err := b.provision(path); err != nil {
		return "", err
	}

	b.logger.Debug("Папка перемещения подготовлена",
		slog.String("transfer_id", t.TransferID),
		slog.String("path", path),
	)
	return path, nil
}

// AccessURL реализует AccessPoint.
func (b *Basic) AccessURL(t *model.Transfer, _ model.AuthContext) (string, error) {
	if t.OwnerID == "" || t.TransferID == "" {
		return "", fmt.Errorf("точка доступа %s: не заданы владелец или идентификатор перемещения", b.cfg.ID)
	}
	return b.cfg.RemoteBaseURL + t.OwnerID + "/" + t.TransferID + "/", nil
}

// LocalPathForURL реализует AccessPoint.
func (b *Basic) LocalPathForURL(stagingURL string, _ model.AuthContext) (string, error) {
	rel, err := b.relFromURL(stagingURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.cfg.LocalBasePath, filepath.FromSlash(rel)), nil
}

// PrepareCleanup реализует AccessPoint.
func (b *Basic) PrepareCleanup(_ context.Context, t *model.Transfer, _ model.AuthContext) bool {
	return b.markDeleted(b.localPath(t), t.TransferID)
}

// IsTransferDeleted реализует AccessPoint.
func (b *Basic) IsTransferDeleted(t *model.Transfer, _ model.AuthContext) bool {
	return isDeleted(b.localPath(t))
}
