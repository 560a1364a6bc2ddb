// Пакет wal — журнал финализаций перемещений (transition log).
// Перед финализацией создаётся запись pending с исходным статусом,
// после сохранения итогового статуса запись коммитится.
// Записи, оставшиеся pending после рестарта, указывают на прерванные
// финализации и используются восстановлением зависших перемещений.
// Каждая транзакция — отдельный файл {tx_id}.wal.json в STG_WAL_DIR.
package wal

import (
	"time"
)

// OperationType — тип финализации, записываемой в журнал.
type OperationType string

const (
	// OpIngestFinalize — финализация ingest
	OpIngestFinalize OperationType = "ingest_finalize"
	// OpDownloadFinalize — финализация download
	OpDownloadFinalize OperationType = "download_finalize"
)

// TransactionStatus — статус транзакции журнала.
type TransactionStatus string

const (
	// StatusPending — финализация начата
	StatusPending TransactionStatus = "pending"
	// StatusCommitted — итоговый статус сохранён
	StatusCommitted TransactionStatus = "committed"
	// StatusRolledBack — финализация отменена до изменения записи
	StatusRolledBack TransactionStatus = "rolled_back"
)

// Entry — запись журнала. Хранится как JSON-файл {tx_id}.wal.json.
type Entry struct {
	// TransactionID — уникальный идентификатор транзакции (UUID v4)
	TransactionID string `json:"transaction_id"`

	// Operation — тип финализации
	Operation OperationType `json:"operation"`

	// Status — статус транзакции
	Status TransactionStatus `json:"status"`

	// TransferID — идентификатор перемещения
	TransferID string `json:"transfer_id"`

	// FromStatus — статус записи перед финализацией
	FromStatus string `json:"from_status"`

	// FinalStatus — сохранённый итоговый статус. Пуст для pending.
	FinalStatus string `json:"final_status,omitempty"`

	// StartedAt — время начала (UTC)
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время завершения (UTC), nil для pending
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// walFileName возвращает имя файла журнала для данной транзакции.
func walFileName(txID string) string {
	return txID + ".wal.json"
}
