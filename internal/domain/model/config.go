package model

// AccessPointConfig — описание настроенной точки доступа.
// Неизменяема после загрузки, перечитывается при каждом использовании.
type AccessPointConfig struct {
	// ID — уникальный идентификатор точки доступа (например, "local-ap")
	ID string `json:"id" yaml:"id"`
	// Name — человекочитаемое имя
	Name string `json:"name,omitempty" yaml:"name"`
	// Implementation — идентификатор реализации в реестре ("basic", "masking")
	Implementation string `json:"implementation" yaml:"implementation"`
	// LocalBasePath — локальный корень кэша
	LocalBasePath string `json:"local_base_path" yaml:"localBasePath"`
	// RemoteBaseURL — корень кэша в виде URL, доступного клиенту
	RemoteBaseURL string `json:"remote_base_url" yaml:"remoteBaseUrl"`
	// GroupID — группа, которой доступна точка (пусто — всем)
	GroupID string `json:"group_id,omitempty" yaml:"groupId"`
	// Default — точка доступа по умолчанию
	Default bool `json:"default,omitempty" yaml:"default"`
	// Disabled — точка отключена
	Disabled bool `json:"disabled,omitempty" yaml:"disabled"`
	// Properties — произвольные параметры реализации
	Properties map[string]string `json:"properties,omitempty" yaml:"properties"`
}

// StagingProcessorConfig — описание шага конвейера обработки.
type StagingProcessorConfig struct {
	// ID — уникальный идентификатор процессора
	ID string `json:"id" yaml:"id"`
	// Name — человекочитаемое имя
	Name string `json:"name,omitempty" yaml:"name"`
	// Implementation — идентификатор реализации в реестре ("input-hash", "download-zipper")
	Implementation string `json:"implementation" yaml:"implementation"`
	// Priority — порядок выполнения, меньше — раньше
	Priority int `json:"priority" yaml:"priority"`
	// Disabled — процессор пропускается без побочных эффектов
	Disabled bool `json:"disabled,omitempty" yaml:"disabled"`
	// Properties — произвольные параметры реализации
	Properties map[string]string `json:"properties,omitempty" yaml:"properties"`
}

// DisplayName возвращает имя процессора для сообщений об ошибках.
func (c StagingProcessorConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Property возвращает значение параметра или значение по умолчанию.
func (c StagingProcessorConfig) Property(key, def string) string {
	if v, ok := c.Properties[key]; ok && v != "" {
		return v
	}
	return def
}

// Раскладка папки перемещения в кэше staging.
const (
	// DataFolder — данные пользователя
	DataFolder = "data"
	// GeneratedFolder — файлы, созданные процессорами
	GeneratedFolder = "generated"
	// SettingsFolder — служебные файлы (дерево, уведомление, маркер удаления)
	SettingsFolder = "settings"
	// DeletedMarker — маркер удаления в папке settings
	DeletedMarker = ".deleted"
	// LockFile — файл advisory-блокировки папки перемещения
	LockFile = ".staging.lock"
)

// Имена представлений дерева файлов.
const (
	DefaultView   = "default"
	GeneratedView = "generated"
)

// Служебные файлы в папке settings.
const (
	// TreeFile — дерево представления, записанное при планировании download
	TreeFile = "filetree.json"
	// NotifyFile — параметры уведомления о готовности download
	NotifyFile = "notify.json"
)
