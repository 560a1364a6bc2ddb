package accesspoint

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

// ImplMasking — идентификатор реализации masking.
const ImplMasking = "masking"

// Masking — точка доступа, скрывающая идентификатор пользователя от клиента:
// URL {base}/{transfer_id}/, локальный путь {local}/{owner_id}/{transfer_id}/.
// Владелец при обратном преобразовании URL берётся из контекста авторизации.
type Masking struct {
	folder
}

// NewMasking создаёт точку доступа masking.
func NewMasking(cfg model.AccessPointConfig, logger *slog.Logger) (AccessPoint, error) {
	f, err := newFolder(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Masking{folder: f}, nil
}

func (m *Masking) localPath(userID, transferID string) string {
	return filepath.Join(m.cfg.LocalBasePath, userID, transferID)
}

// Prepare реализует AccessPoint.
func (m *Masking) Prepare(_ context.Context, t *model.Transfer, _ model.AuthContext) (string, error) {
	if t.OwnerID == "" || t.TransferID == "" {
		return "", &PreparationError{AccessPointID: m.cfg.ID, Reason: "не заданы владелец или идентификатор перемещения"}
	}
	path := m.localPath(t.OwnerID, t.TransferID)
	if err := m.provision(path); err != nil {
		return "", err
	}

	m.logger.Debug("Папка перемещения подготовлена",
		slog.String("transfer_id", t.TransferID),
		slog.String("path", path),
	)
	return path, nil
}

// AccessURL реализует AccessPoint.
func (m *Masking) AccessURL(t *model.Transfer, _ model.AuthContext) (string, error) {
	if t.TransferID == "" {
		return "", fmt.Errorf("точка доступа %s: не задан идентификатор перемещения", m.cfg.ID)
	}
	return m.cfg.RemoteBaseURL + t.TransferID + "/", nil
}

// LocalPathForURL реализует AccessPoint.
func (m *Masking) LocalPathForURL(stagingURL string, auth model.AuthContext) (string, error) {
	rel, err := m.relFromURL(stagingURL)
	if err != nil {
		return "", err
	}
	if strings.Contains(rel, "/") {
		return "", fmt.Errorf("некорректный URL папки перемещения %q", stagingURL)
	}
	if auth.UserID == "" {
		return "", fmt.Errorf("точка доступа %s: не задан пользователь", m.cfg.ID)
	}
	return m.localPath(auth.UserID, rel), nil
}

// PrepareCleanup реализует AccessPoint.
func (m *Masking) PrepareCleanup(_ context.Context, t *model.Transfer, _ model.AuthContext) bool {
	return m.markDeleted(m.localPath(t.OwnerID, t.TransferID), t.TransferID)
}

// IsTransferDeleted реализует AccessPoint.
func (m *Masking) IsTransferDeleted(t *model.Transfer, _ model.AuthContext) bool {
	return isDeleted(m.localPath(t.OwnerID, t.TransferID))
}
