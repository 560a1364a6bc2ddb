// Пакет dataorg — организация данных: построение дерева файлов
// по содержимому папки перемещения и хранение деревьев представлений
// цифровых объектов.
package dataorg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/atomicfile"
)

// Scan строит дерево файлов папки перемещения root для объекта objectID.
// В дерево попадают только коллекции data/ и generated/, служебная
// папка settings/ и файл блокировки игнорируются. Отсутствующая
// коллекция в дерево не добавляется.
func Scan(root, objectID string) (*model.FileTree, error) {
	tree := model.NewFileTree(objectID, model.DefaultView)

	for _, folder := range []string{model.DataFolder, model.GeneratedFolder} {
		dir := filepath.Join(root, folder)
		info, err := os.Stat(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка доступа к %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s не является директорией", dir)
		}

		node, err := ScanDir(dir, folder)
		if err != nil {
			return nil, err
		}
		tree.Root.AddChild(node)
	}

	return tree, nil
}

// ScanDir строит узел-коллекцию name по содержимому директории dir.
// LogicalURL файлов — file:// URL их абсолютного пути.
func ScanDir(dir, name string) (*model.Node, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка вычисления пути %s: %w", dir, err)
	}

	node := model.NewCollection(name)
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", abs, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		path := filepath.Join(abs, e.Name())
		if e.IsDir() {
			child, err := ScanDir(path, e.Name())
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
			continue
		}
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения атрибутов %s: %w", path, err)
		}
		node.Children = append(node.Children, &model.Node{
			Name:       e.Name(),
			Type:       model.NodeFile,
			Size:       info.Size(),
			LogicalURL: model.FileURL(path),
		})
	}

	return node, nil
}

// WriteTreeFile атомарно записывает дерево в файл path.
func WriteTreeFile(path string, tree *model.FileTree) error {
	if err := atomicfile.WriteJSON(path, tree); err != nil {
		return fmt.Errorf("ошибка записи дерева %s: %w", path, err)
	}
	return nil
}

// ReadTreeFromFile читает дерево из файла path.
func ReadTreeFromFile(path string) (*model.FileTree, error) {
	var tree model.FileTree
	if err := atomicfile.ReadJSON(path, &tree); err != nil {
		return nil, err
	}
	if tree.Root == nil {
		return nil, fmt.Errorf("файл дерева %s не содержит корневой коллекции", path)
	}
	return &tree, nil
}
