package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

// AccessPointRepository — каталог точек доступа в таблице access_points.
type AccessPointRepository struct {
	db DBTX
}

// NewAccessPointRepository создаёт репозиторий точек доступа.
func NewAccessPointRepository(db DBTX) *AccessPointRepository {
	return &AccessPointRepository{db: db}
}

// AccessPoints возвращает все точки доступа. Вызывается при каждом
// разрешении точки доступа, поэтому изменения в таблице видны сразу.
func (r *AccessPointRepository) AccessPoints(ctx context.Context) ([]model.AccessPointConfig, error) {
	query := `
		SELECT id, name, implementation, local_base_path, remote_base_url,
			group_id, is_default, disabled, properties
		FROM access_points
		ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения точек доступа: %w", err)
	}
	defer rows.Close()

	result := make([]model.AccessPointConfig, 0)
	for rows.Next() {
		var ap model.AccessPointConfig
		var props []byte
		if err := rows.Scan(
			&ap.ID, &ap.Name, &ap.Implementation, &ap.LocalBasePath, &ap.RemoteBaseURL,
			&ap.GroupID, &ap.Default, &ap.Disabled, &props,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования точки доступа: %w", err)
		}
		if err := json.Unmarshal(props, &ap.Properties); err != nil {
			return nil, fmt.Errorf("точка доступа %s: properties: %w", ap.ID, err)
		}
		result = append(result, ap)
	}
	return result, rows.Err()
}

// Upsert создаёт или заменяет точку доступа.
func (r *AccessPointRepository) Upsert(ctx context.Context, ap model.AccessPointConfig) error {
	props := ap.Properties
	if props == nil {
		props = map[string]string{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("ошибка сериализации properties: %w", err)
	}

	query := `
		INSERT INTO access_points (id, name, implementation, local_base_path, remote_base_url,
			group_id, is_default, disabled, properties)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			implementation = EXCLUDED.implementation,
			local_base_path = EXCLUDED.local_base_path,
			remote_base_url = EXCLUDED.remote_base_url,
			group_id = EXCLUDED.group_id,
			is_default = EXCLUDED.is_default,
			disabled = EXCLUDED.disabled,
			properties = EXCLUDED.properties`

	_, err = r.db.Exec(ctx, query,
		ap.ID, ap.Name, ap.Implementation, ap.LocalBasePath, ap.RemoteBaseURL,
		ap.GroupID, ap.Default, ap.Disabled, propsJSON,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения точки доступа %s: %w", ap.ID, err)
	}
	return nil
}
