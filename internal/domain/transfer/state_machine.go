// Пакет transfer — конечные автоматы ingest и download.
//
// Жизненный цикл ingest:
//
//	PREPARING → PRE_INGEST_SCHEDULED → PRE_INGEST_RUNNING → PRE_INGEST_FINISHED
//	→ INGEST_RUNNING → INGEST_FINISHED | INGEST_FAILED
//
// Жизненный цикл download:
//
//	SCHEDULED → PREPARING → DOWNLOAD_READY | PREPARATION_FAILED,
//	DOWNLOAD_READY → SCHEDULED (повторная подготовка)
//
// Из любого статуса, кроме удалённого, допустим переход в удалённый.
package transfer

import (
	"fmt"

	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

// Коды ошибок переходов.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeUnknownStatus     = "UNKNOWN_STATUS"
)

// Machine — матрица допустимых переходов для одного направления.
type Machine[S ~string] struct {
	name        string
	transitions map[S]map[S]bool
	removed     S
}

// Ingest — автомат статусов ingest.
var Ingest = &Machine[model.IngestStatus]{
	name:    "ingest",
	removed: model.IngestRemoved,
	transitions: map[model.IngestStatus]map[model.IngestStatus]bool{
		model.IngestUnknown: {model.IngestPreparing: true},
		model.IngestPreparing: {
			model.IngestPreIngestScheduled: true,
			model.IngestPreparationFailed:  true,
		},
		model.IngestPreIngestScheduled: {
			model.IngestPreIngestRunning: true,
			model.IngestPreIngestFailed:  true,
			model.IngestRunning:          true,
		},
		model.IngestPreIngestRunning: {
			model.IngestPreIngestFinished: true,
			model.IngestPreIngestFailed:   true,
			model.IngestRunning:           true,
		},
		model.IngestPreIngestFinished: {model.IngestRunning: true},
		model.IngestRunning: {
			model.IngestFinished: true,
			model.IngestFailed:   true,
			// Восстановление зависшего ingest без архивной копии
			model.IngestPreIngestFinished: true,
		},
		model.IngestPreparationFailed: {},
		model.IngestPreIngestFailed:   {},
		model.IngestFinished:          {},
		model.IngestFailed:            {},
		model.IngestRemoved:           {},
	},
}

// Download — автомат статусов download.
var Download = &Machine[model.DownloadStatus]{
	name:    "download",
	removed: model.DownloadRemoved,
	transitions: map[model.DownloadStatus]map[model.DownloadStatus]bool{
		model.DownloadUnknown: {model.DownloadScheduled: true},
		model.DownloadScheduled: {
			model.DownloadPreparing:         true,
			model.DownloadPreparationFailed: true,
		},
		model.DownloadPreparing: {
			model.DownloadReady:             true,
			model.DownloadPreparationFailed: true,
			// Восстановление зависшей подготовки
			model.DownloadScheduled: true,
		},
		model.DownloadReady:             {model.DownloadScheduled: true},
		model.DownloadPreparationFailed: {},
		model.DownloadRemoved:           {},
	},
}

// Name возвращает имя автомата (ingest, download).
func (m *Machine[S]) Name() string {
	return m.name
}

// Can проверяет, допустим ли переход from → to.
func (m *Machine[S]) Can(from, to S) bool {
	return m.Check(from, to) == nil
}

// Check возвращает TransitionError, если переход from → to недопустим.
func (m *Machine[S]) Check(from, to S) error {
	transitions, ok := m.transitions[from]
	if !ok {
		return &TransitionError{
			Code:    CodeUnknownStatus,
			Message: fmt.Sprintf("%s: неизвестный статус %q", m.name, from),
		}
	}
	if _, known := m.transitions[to]; !known {
		return &TransitionError{
			Code:    CodeUnknownStatus,
			Message: fmt.Sprintf("%s: неизвестный целевой статус %q", m.name, to),
		}
	}
	if to == m.removed && from != m.removed {
		return nil
	}
	if !transitions[to] {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("%s: переход %s → %s недопустим", m.name, from, to),
		}
	}
	return nil
}

// Targets возвращает допустимые целевые статусы для from (без удалённого).
func (m *Machine[S]) Targets(from S) []S {
	result := make([]S, 0, len(m.transitions[from]))
	for to := range m.transitions[from] {
		result = append(result, to)
	}
	return result
}

// TransitionError — ошибка перехода между статусами.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION, UNKNOWN_STATUS)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
