// Пакет model — доменные модели Staging Service.
// TransferRecord — общая часть записи о перемещении данных одного
// цифрового объекта между кэшем staging и архивом. IngestRecord и
// DownloadRecord добавляют к ней собственный статус и списки процессоров.
package model

import (
	"time"
)

// Direction — направление перемещения данных.
type Direction string

const (
	// DirectionIngest — загрузка данных пользователем и архивирование
	DirectionIngest Direction = "ingest"
	// DirectionDownload — восстановление данных из архива в кэш
	DirectionDownload Direction = "download"
)

// AuthContext — контекст авторизации, от имени которого выполняется операция.
// Проверка прав не входит в Staging Service, контекст используется
// для построения путей и передаётся адаптерам.
type AuthContext struct {
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
}

// SystemContext — контекст фоновых процессов (финализация, очистка).
var SystemContext = AuthContext{UserID: "SYSTEM", GroupID: "SYSTEM"}

// Transfer — общая часть записи о перемещении (TransferRecord).
type Transfer struct {
	// ID — суррогатный числовой идентификатор записи в хранилище
	ID int64 `json:"id"`

	// TransferID — уникальный идентификатор перемещения
	TransferID string `json:"transfer_id"`

	// Direction — ingest или download
	Direction Direction `json:"direction"`

	// DigitalObjectID — идентификатор цифрового объекта
	DigitalObjectID string `json:"digital_object_id"`

	// OwnerID — владелец перемещения
	OwnerID string `json:"owner_id"`

	// GroupID — группа владельца
	GroupID string `json:"group_id"`

	// AccessPointID — идентификатор точки доступа
	AccessPointID string `json:"access_point_id"`

	// StagingURL — URL кэша, доступный клиенту. Пустой до подготовки.
	StagingURL string `json:"staging_url,omitempty"`

	// ErrorMessage — описание последней ошибки. Пустая строка — ошибки нет.
	ErrorMessage string `json:"error_message,omitempty"`

	// ExpiresAt — момент истечения в миллисекундах Unix
	ExpiresAt int64 `json:"expires_at"`

	// CreatedAt — время создания записи (UTC)
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего сохранения записи (UTC)
	UpdatedAt time.Time `json:"updated_at"`
}

// Context возвращает контекст авторизации владельца перемещения.
func (t *Transfer) Context() AuthContext {
	return AuthContext{UserID: t.OwnerID, GroupID: t.GroupID}
}

// IsExpired проверяет, истёк ли срок жизни перемещения.
func (t *Transfer) IsExpired(now time.Time) bool {
	return t.ExpiresAt > 0 && t.ExpiresAt < now.UnixMilli()
}

// ExpiresAtFor вычисляет ExpiresAt для перемещения, созданного в момент now.
func ExpiresAtFor(now time.Time, lifetime time.Duration) int64 {
	return now.Add(lifetime).UnixMilli()
}

// IngestRecord — запись о загрузке (ingest) цифрового объекта.
type IngestRecord struct {
	Transfer

	// Status — текущий статус ingest
	Status IngestStatus `json:"status"`

	// StorageURL — расположение архивной копии, заполняется адаптером виртуализации
	StorageURL string `json:"storage_url,omitempty"`

	// PreProcessors — процессоры, выполняемые до архивирования
	PreProcessors []StagingProcessorConfig `json:"pre_processors,omitempty"`

	// PostProcessors — процессоры, выполняемые после архивирования
	PostProcessors []StagingProcessorConfig `json:"post_processors,omitempty"`
}

// DownloadRecord — запись о выгрузке (download) цифрового объекта.
type DownloadRecord struct {
	Transfer

	// Status — текущий статус download
	Status DownloadStatus `json:"status"`

	// ViewName — имя представления дерева файлов для выгрузки
	ViewName string `json:"view_name,omitempty"`

	// NotificationReceiver — адрес для уведомления о готовности (опционально)
	NotificationReceiver string `json:"notification_receiver,omitempty"`

	// Processors — процессоры, выполняемые после восстановления данных
	Processors []StagingProcessorConfig `json:"processors,omitempty"`
}

// View возвращает имя представления, по умолчанию DefaultView.
func (d *DownloadRecord) View() string {
	if d.ViewName == "" {
		return DefaultView
	}
	return d.ViewName
}

// PreparationResult — результат подготовки перемещения (prepareIngest,
// scheduleDownload). Ожидаемые ошибки возвращаются в ErrorMessage,
// а не через error.
type PreparationResult struct {
	Status       string `json:"status"`
	StagingURL   string `json:"staging_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}
