package model

import "fmt"

// IngestStatus — статус ingest.
type IngestStatus string

const (
	IngestUnknown            IngestStatus = "UNKNOWN"
	IngestPreparing          IngestStatus = "PREPARING"
	IngestPreparationFailed  IngestStatus = "PREPARATION_FAILED"
	IngestPreIngestScheduled IngestStatus = "PRE_INGEST_SCHEDULED"
	IngestPreIngestRunning   IngestStatus = "PRE_INGEST_RUNNING"
	IngestPreIngestFinished  IngestStatus = "PRE_INGEST_FINISHED"
	IngestPreIngestFailed    IngestStatus = "PRE_INGEST_FAILED"
	IngestRunning            IngestStatus = "INGEST_RUNNING"
	IngestFinished           IngestStatus = "INGEST_FINISHED"
	IngestFailed             IngestStatus = "INGEST_FAILED"
	IngestRemoved            IngestStatus = "INGEST_REMOVED"
)

// FinalizableIngestStatuses — статусы, из которых возможна финализация ingest.
var FinalizableIngestStatuses = []IngestStatus{
	IngestPreIngestFinished,
	IngestPreIngestRunning,
	IngestPreIngestScheduled,
}

// IsFinalizable проверяет, возможна ли финализация из данного статуса.
func (s IngestStatus) IsFinalizable() bool {
	for _, f := range FinalizableIngestStatuses {
		if s == f {
			return true
		}
	}
	return false
}

// IsError проверяет, является ли статус ошибочным.
func (s IngestStatus) IsError() bool {
	switch s {
	case IngestPreparationFailed, IngestPreIngestFailed, IngestFailed:
		return true
	default:
		return false
	}
}

// IsActive — запись не в конечном и не в удалённом статусе.
func (s IngestStatus) IsActive() bool {
	switch s {
	case IngestFinished, IngestRemoved, IngestUnknown:
		return false
	default:
		return !s.IsError()
	}
}

// ParseIngestStatus преобразует строку в IngestStatus.
func ParseIngestStatus(s string) (IngestStatus, error) {
	st := IngestStatus(s)
	switch st {
	case IngestUnknown, IngestPreparing, IngestPreparationFailed,
		IngestPreIngestScheduled, IngestPreIngestRunning, IngestPreIngestFinished,
		IngestPreIngestFailed, IngestRunning, IngestFinished, IngestFailed, IngestRemoved:
		return st, nil
	default:
		return "", fmt.Errorf("недопустимый статус ingest: %q", s)
	}
}

// DownloadStatus — статус download.
type DownloadStatus string

const (
	DownloadUnknown           DownloadStatus = "UNKNOWN"
	DownloadScheduled         DownloadStatus = "SCHEDULED"
	DownloadPreparing         DownloadStatus = "PREPARING"
	DownloadReady             DownloadStatus = "DOWNLOAD_READY"
	DownloadPreparationFailed DownloadStatus = "PREPARATION_FAILED"
	DownloadRemoved           DownloadStatus = "DOWNLOAD_REMOVED"
)

// IsActive — запись не в конечном и не в удалённом статусе.
func (s DownloadStatus) IsActive() bool {
	switch s {
	case DownloadScheduled, DownloadPreparing, DownloadReady:
		return true
	default:
		return false
	}
}

// ParseDownloadStatus преобразует строку в DownloadStatus.
func ParseDownloadStatus(s string) (DownloadStatus, error) {
	st := DownloadStatus(s)
	switch st {
	case DownloadUnknown, DownloadScheduled, DownloadPreparing, DownloadReady,
		DownloadPreparationFailed, DownloadRemoved:
		return st, nil
	default:
		return "", fmt.Errorf("недопустимый статус download: %q", s)
	}
}
