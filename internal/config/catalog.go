package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

// FileCatalog — каталог точек доступа из документа staging.
// Файл перечитывается при каждом обращении, изменения точек доступа
// применяются без перезапуска.
type FileCatalog struct {
	path string
}

// NewFileCatalog создаёт каталог, читающий файл path.
func NewFileCatalog(path string) *FileCatalog {
	return &FileCatalog{path: path}
}

// AccessPoints реализует accesspoint.Catalog.
func (c *FileCatalog) AccessPoints(ctx context.Context) ([]model.AccessPointConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("чтение каталога точек доступа %s: %w", c.path, err)
	}

	var doc struct {
		AccessPoints AccessPoints `yaml:"accessPoints"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("разбор каталога точек доступа %s: %w", c.path, err)
	}
	items := doc.AccessPoints.Items
	for i := range items {
		normalizeAccessPoint(&items[i])
	}
	if err := ValidateAccessPoints(items); err != nil {
		return nil, err
	}
	return items, nil
}
