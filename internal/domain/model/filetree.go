package model

import (
	"path"
	"sort"
)

// NodeType — тип узла дерева файлов.
type NodeType string

const (
	NodeCollection NodeType = "collection"
	NodeFile       NodeType = "file"
)

// Node — узел дерева файлов (коллекция или файл).
type Node struct {
	Name string   `json:"name"`
	Type NodeType `json:"type"`
	// Size — размер файла в байтах (только для файлов)
	Size int64 `json:"size,omitempty"`
	// LogicalURL — расположение содержимого файла (file:///..., для архива — архивная копия)
	LogicalURL string  `json:"logical_url,omitempty"`
	Children   []*Node `json:"children,omitempty"`
}

// NewCollection создаёт узел-коллекцию.
func NewCollection(name string) *Node {
	return &Node{Name: name, Type: NodeCollection}
}

// IsCollection проверяет, является ли узел коллекцией.
func (n *Node) IsCollection() bool {
	return n.Type == NodeCollection
}

// Child возвращает прямого потомка с указанным именем или nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AddChild добавляет потомка, сохраняя порядок по имени.
func (n *Node) AddChild(child *Node) {
	n.Children = append(n.Children, child)
	sort.SliceStable(n.Children, func(i, j int) bool {
		return n.Children[i].Name < n.Children[j].Name
	})
}

// Copy возвращает глубокую копию узла.
func (n *Node) Copy() *Node {
	c := *n
	c.Children = nil
	for _, ch := range n.Children {
		c.Children = append(c.Children, ch.Copy())
	}
	return &c
}

// Walk обходит поддерево в глубину. rel — путь узла относительно n.
func (n *Node) Walk(fn func(rel string, node *Node) error) error {
	return n.walk("", fn)
}

func (n *Node) walk(prefix string, fn func(string, *Node) error) error {
	for _, c := range n.Children {
		rel := path.Join(prefix, c.Name)
		if err := fn(rel, c); err != nil {
			return err
		}
		if c.IsCollection() {
			if err := c.walk(rel, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// FileTree — иерархическое представление файлов цифрового объекта.
type FileTree struct {
	DigitalObjectID string `json:"digital_object_id"`
	ViewName        string `json:"view_name"`
	Root            *Node  `json:"root"`
}

// NewFileTree создаёт пустое дерево для объекта и представления.
func NewFileTree(objectID, view string) *FileTree {
	return &FileTree{
		DigitalObjectID: objectID,
		ViewName:        view,
		Root:            NewCollection(objectID),
	}
}

// FileCount возвращает количество файлов в дереве.
func (t *FileTree) FileCount() int {
	count := 0
	_ = t.Root.Walk(func(_ string, n *Node) error {
		if !n.IsCollection() {
			count++
		}
		return nil
	})
	return count
}

// Subtree строит дерево представления view из потомков коллекции с именем name.
// Возвращает nil, если такой коллекции в корне нет.
func (t *FileTree) Subtree(name, view string) *FileTree {
	node := t.Root.Child(name)
	if node == nil || !node.IsCollection() {
		return nil
	}
	sub := NewFileTree(t.DigitalObjectID, view)
	for _, c := range node.Children {
		sub.Root.AddChild(c.Copy())
	}
	return sub
}
