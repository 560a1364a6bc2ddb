// leader_info.go — сведения о текущем leader на общей файловой системе.
//
// Leader записывает файл при получении роли, follower читает его
// для проксирования изменяющих запросов.
//
// Формат файла:
//
//	{"addr": "stg-0:8090", "updated_at": "2026-01-01T00:00:00Z"}
package replica

import (
	"errors"
	"fmt"
	"time"

	"github.com/arturkryukov/artsore/staging-service/internal/storage/atomicfile"
)

// LeaderInfo — содержимое файла сведений о leader.
type LeaderInfo struct {
	// Addr — адрес leader (hostname:port).
	Addr string `json:"addr"`
	// UpdatedAt — время получения роли.
	UpdatedAt time.Time `json:"updated_at"`
}

// WriteLeaderInfo атомарно записывает адрес leader в path.
func WriteLeaderInfo(path, addr string) error {
	info := LeaderInfo{Addr: addr, UpdatedAt: time.Now().UTC()}
	if err := atomicfile.WriteJSON(path, info); err != nil {
		return fmt.Errorf("ошибка записи сведений о leader: %w", err)
	}
	return nil
}

// ReadLeaderInfo читает сведения о leader из path.
func ReadLeaderInfo(path string) (LeaderInfo, error) {
	var info LeaderInfo
	if err := atomicfile.ReadJSON(path, &info); err != nil {
		return LeaderInfo{}, fmt.Errorf("ошибка чтения сведений о leader: %w", err)
	}
	if info.Addr == "" {
		return LeaderInfo{}, errors.New("в сведениях о leader не задан адрес")
	}
	return info, nil
}
