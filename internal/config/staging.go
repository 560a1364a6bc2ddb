package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/notify"
)

// Реализации хранилища записей о перемещениях.
const (
	// RecordsFile — JSON-файлы в локальной директории
	RecordsFile = "file"
	// RecordsPostgres — таблицы PostgreSQL
	RecordsPostgres = "postgres"
)

// Реализации организации данных.
const (
	// DataOrgLocalTree — деревья представлений в JSON-файлах с LRU-кэшем
	DataOrgLocalTree = "local-tree"
)

// TargetLocal — адаптер работает в локальном процессе.
const TargetLocal = "local"

// Источники каталога точек доступа.
const (
	SourceFile     = "file"
	SourceDatabase = "database"
)

// Значения лимитов по умолчанию.
const (
	DefaultMaxParallelIngests   = 2
	DefaultMaxParallelDownloads = 2
	DefaultTransferLifetime     = 168 * time.Hour
)

// Error — ошибка конфигурации с указанием поля документа.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("конфигурация staging: %s: %s", e.Field, e.Message)
}

// AdapterSlot — настройка одного адаптера: реализация и её расположение.
type AdapterSlot struct {
	// Implementation — идентификатор реализации в реестре
	Implementation string `yaml:"implementation"`
	// Target — "local" или URL удалённого сервиса (для postgres — DSN)
	Target string `yaml:"target"`
	// Properties — параметры реализации
	Properties map[string]string `yaml:"properties"`
}

// IsLocal проверяет, выполняется ли адаптер в локальном процессе.
func (s AdapterSlot) IsLocal() bool {
	return s.Target == "" || s.Target == TargetLocal
}

// Property возвращает значение параметра или значение по умолчанию.
func (s AdapterSlot) Property(key, def string) string {
	if v, ok := s.Properties[key]; ok && v != "" {
		return v
	}
	return def
}

// Adapters — четыре слота адаптеров.
type Adapters struct {
	DataOrganization      AdapterSlot `yaml:"dataOrganization"`
	IngestInformation     AdapterSlot `yaml:"ingestInformation"`
	DownloadInformation   AdapterSlot `yaml:"downloadInformation"`
	StorageVirtualization AdapterSlot `yaml:"storageVirtualization"`
}

// RemoteAccess — параметры удалённого доступа к внешнему REST API.
type RemoteAccess struct {
	RestURL string `yaml:"restUrl"`
}

// Limits — лимиты параллельной обработки и срок жизни перемещений.
type Limits struct {
	MaxParallelIngests   int           `yaml:"maxParallelIngests"`
	MaxParallelDownloads int           `yaml:"maxParallelDownloads"`
	TransferLifetime     time.Duration `yaml:"transferLifetime"`
	// RequireUploadedData — ingest без файлов в data/ завершается ошибкой
	RequireUploadedData bool `yaml:"requireUploadedData"`
}

// AccessPoints — каталог точек доступа.
type AccessPoints struct {
	// Source — file (список в этом документе) или database (таблица access_points)
	Source string `yaml:"source"`
	// Items — точки доступа; при source=database используются для начального заполнения таблицы
	Items []model.AccessPointConfig `yaml:"items"`
}

// Processors — процессоры, назначаемые новым перемещениям.
type Processors struct {
	PreArchive  []model.StagingProcessorConfig `yaml:"preArchive"`
	PostArchive []model.StagingProcessorConfig `yaml:"postArchive"`
	Download    []model.StagingProcessorConfig `yaml:"download"`
}

// Staging — документ конфигурации staging.
type Staging struct {
	Adapters     Adapters          `yaml:"adapters"`
	RemoteAccess RemoteAccess      `yaml:"remoteAccess"`
	Mail         notify.MailConfig `yaml:"mail"`
	Limits       Limits            `yaml:"limits"`
	AccessPoints AccessPoints      `yaml:"accessPoints"`
	Processors   Processors        `yaml:"processors"`
}

// LoadStaging читает, дополняет значениями по умолчанию и проверяет
// документ staging.
func LoadStaging(path string) (*Staging, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации staging %s: %w", path, err)
	}
	return ParseStaging(data)
}

// ParseStaging разбирает документ staging из YAML.
func ParseStaging(data []byte) (*Staging, error) {
	var s Staging
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("разбор конфигурации staging: %w", err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Staging) applyDefaults() {
	if s.Limits.MaxParallelIngests == 0 {
		s.Limits.MaxParallelIngests = DefaultMaxParallelIngests
	}
	if s.Limits.MaxParallelDownloads == 0 {
		s.Limits.MaxParallelDownloads = DefaultMaxParallelDownloads
	}
	if s.Limits.TransferLifetime == 0 {
		s.Limits.TransferLifetime = DefaultTransferLifetime
	}
	if s.AccessPoints.Source == "" {
		s.AccessPoints.Source = SourceFile
	}
	if s.Adapters.DataOrganization.Implementation == "" {
		s.Adapters.DataOrganization.Implementation = DataOrgLocalTree
	}
	for i := range s.AccessPoints.Items {
		normalizeAccessPoint(&s.AccessPoints.Items[i])
	}
}

// Validate проверяет структуру документа. Наличие реализаций адаптеров,
// точек доступа и процессоров в реестрах проверяется при сборке сервиса.
func (s *Staging) Validate() error {
	var errs []error

	slots := []struct {
		field string
		slot  AdapterSlot
	}{
		{"adapters.dataOrganization", s.Adapters.DataOrganization},
		{"adapters.ingestInformation", s.Adapters.IngestInformation},
		{"adapters.downloadInformation", s.Adapters.DownloadInformation},
		{"adapters.storageVirtualization", s.Adapters.StorageVirtualization},
	}
	for _, sl := range slots {
		if sl.slot.Implementation == "" {
			errs = append(errs, &Error{Field: sl.field + ".implementation", Message: "не задана реализация"})
		}
	}
	for _, sl := range slots[1:3] {
		switch sl.slot.Implementation {
		case "":
		case RecordsFile:
			if sl.slot.Property("dir", "") == "" {
				errs = append(errs, &Error{Field: sl.field + ".properties.dir", Message: "не задана директория записей"})
			}
		case RecordsPostgres:
			if sl.slot.IsLocal() {
				errs = append(errs, &Error{Field: sl.field + ".target", Message: "для postgres требуется DSN"})
			}
		default:
			errs = append(errs, &Error{Field: sl.field + ".implementation",
				Message: fmt.Sprintf("неизвестная реализация %q", sl.slot.Implementation)})
		}
	}
	if s.Adapters.DataOrganization.Implementation != DataOrgLocalTree {
		errs = append(errs, &Error{Field: "adapters.dataOrganization.implementation",
			Message: fmt.Sprintf("неизвестная реализация %q", s.Adapters.DataOrganization.Implementation)})
	} else if s.Adapters.DataOrganization.Property("dir", "") == "" {
		errs = append(errs, &Error{Field: "adapters.dataOrganization.properties.dir", Message: "не задана директория деревьев"})
	}
	ing, dl := s.Adapters.IngestInformation, s.Adapters.DownloadInformation
	if ing.Implementation == RecordsPostgres && dl.Implementation == RecordsPostgres && ing.Target != dl.Target {
		errs = append(errs, &Error{Field: "adapters.downloadInformation.target", Message: "записи ingest и download должны храниться в одной базе"})
	}

	if s.Limits.MaxParallelIngests < 0 {
		errs = append(errs, &Error{Field: "limits.maxParallelIngests", Message: "значение не может быть отрицательным"})
	}
	if s.Limits.MaxParallelDownloads < 0 {
		errs = append(errs, &Error{Field: "limits.maxParallelDownloads", Message: "значение не может быть отрицательным"})
	}
	if s.Limits.TransferLifetime < 0 {
		errs = append(errs, &Error{Field: "limits.transferLifetime", Message: "значение не может быть отрицательным"})
	}

	switch s.AccessPoints.Source {
	case SourceFile, SourceDatabase:
	default:
		errs = append(errs, &Error{Field: "accessPoints.source",
			Message: fmt.Sprintf("недопустимое значение %q, допустимые: file, database", s.AccessPoints.Source)})
	}
	if s.AccessPoints.Source == SourceDatabase && !s.usesPostgres() {
		errs = append(errs, &Error{Field: "accessPoints.source", Message: "database требует хранилища записей postgres"})
	}
	if err := ValidateAccessPoints(s.AccessPoints.Items); err != nil {
		errs = append(errs, err)
	}

	for _, group := range []struct {
		field string
		cfgs  []model.StagingProcessorConfig
	}{
		{"processors.preArchive", s.Processors.PreArchive},
		{"processors.postArchive", s.Processors.PostArchive},
		{"processors.download", s.Processors.Download},
	} {
		seen := make(map[string]bool)
		for i, p := range group.cfgs {
			field := fmt.Sprintf("%s[%d]", group.field, i)
			if p.ID == "" {
				errs = append(errs, &Error{Field: field + ".id", Message: "не задан идентификатор"})
			} else if seen[p.ID] {
				errs = append(errs, &Error{Field: field + ".id", Message: fmt.Sprintf("повторяющийся идентификатор %q", p.ID)})
			}
			seen[p.ID] = true
			if p.Implementation == "" {
				errs = append(errs, &Error{Field: field + ".implementation", Message: "не задана реализация"})
			}
		}
	}

	return errors.Join(errs...)
}

// PostgresDSN возвращает DSN PostgreSQL хранилища записей.
// Оба слота записей, если используют postgres, обязаны указывать на одну базу.
func (s *Staging) PostgresDSN() string {
	if s.Adapters.IngestInformation.Implementation == RecordsPostgres {
		return s.Adapters.IngestInformation.Target
	}
	if s.Adapters.DownloadInformation.Implementation == RecordsPostgres {
		return s.Adapters.DownloadInformation.Target
	}
	return ""
}

func (s *Staging) usesPostgres() bool {
	return s.PostgresDSN() != ""
}

// ValidateAccessPoints проверяет список точек доступа: уникальность
// идентификаторов, обязательные поля и не более одной точки по умолчанию.
func ValidateAccessPoints(items []model.AccessPointConfig) error {
	var errs []error
	seen := make(map[string]bool)
	defaults := 0
	for i, ap := range items {
		field := fmt.Sprintf("accessPoints.items[%d]", i)
		if ap.ID == "" {
			errs = append(errs, &Error{Field: field + ".id", Message: "не задан идентификатор"})
		} else if seen[ap.ID] {
			errs = append(errs, &Error{Field: field + ".id", Message: fmt.Sprintf("повторяющийся идентификатор %q", ap.ID)})
		}
		seen[ap.ID] = true
		if ap.Implementation == "" {
			errs = append(errs, &Error{Field: field + ".implementation", Message: "не задана реализация"})
		}
		if ap.LocalBasePath == "" {
			errs = append(errs, &Error{Field: field + ".localBasePath", Message: "не задан локальный путь"})
		}
		if ap.RemoteBaseURL == "" {
			errs = append(errs, &Error{Field: field + ".remoteBaseUrl", Message: "не задан удалённый URL"})
		}
		if ap.Default {
			defaults++
		}
	}
	if defaults > 1 {
		errs = append(errs, &Error{Field: "accessPoints.items", Message: "задано несколько точек доступа по умолчанию"})
	}
	return errors.Join(errs...)
}

// normalizeAccessPoint дополняет локальный путь и URL завершающим слэшем.
func normalizeAccessPoint(ap *model.AccessPointConfig) {
	if ap.LocalBasePath != "" && !strings.HasSuffix(ap.LocalBasePath, "/") {
		ap.LocalBasePath += "/"
	}
	if ap.RemoteBaseURL != "" && !strings.HasSuffix(ap.RemoteBaseURL, "/") {
		ap.RemoteBaseURL += "/"
	}
}
