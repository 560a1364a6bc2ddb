package transfer

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Entry — запись журнала переходов.
type Entry[S ~string] struct {
	Seq       int       `json:"seq"`
	From      S         `json:"from"`
	To        S         `json:"to"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Checkpoint — сохранение состояния записи во внешнее хранилище.
type Checkpoint[S ~string] struct {
	Name      string    `json:"name"`
	Status    S         `json:"status"`
	Seq       int       `json:"seq"`
	Err       string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Имена контрольных точек финализации.
const (
	CheckpointStart = "start"
	CheckpointEnd   = "end"
)

// Journal — журнал переходов одной финализации, только на добавление.
// Рабочая копия записи меняет статус только через Transition,
// а во внешнее хранилище попадает только через Checkpoint.
type Journal[S ~string] struct {
	machine    *Machine[S]
	transferID string

	mu          sync.Mutex
	current     S
	entries     []Entry[S]
	checkpoints []Checkpoint[S]
	message     string
}

// NewJournal создаёт журнал для записи с начальным статусом initial.
func NewJournal[S ~string](m *Machine[S], transferID string, initial S) *Journal[S] {
	return &Journal[S]{
		machine:    m,
		transferID: transferID,
		current:    initial,
	}
}

// TransferID возвращает идентификатор перемещения.
func (j *Journal[S]) TransferID() string {
	return j.transferID
}

// Current возвращает текущий статус рабочей копии.
func (j *Journal[S]) Current() S {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.current
}

// Message возвращает сообщение последнего перехода (пусто — без ошибки).
func (j *Journal[S]) Message() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.message
}

// Transition добавляет переход в журнал. Недопустимый переход
// возвращает TransitionError и не меняет журнал.
func (j *Journal[S]) Transition(to S, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.machine.Check(j.current, to); err != nil {
		return err
	}

	j.entries = append(j.entries, Entry[S]{
		Seq:       len(j.entries) + 1,
		From:      j.current,
		To:        to,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	j.current = to
	j.message = message
	return nil
}

// Fail переводит запись в ошибочный статус failed с сообщением.
// Если запись уже в failed, заменяется только сообщение.
func (j *Journal[S]) Fail(failed S, message string) error {
	j.mu.Lock()
	if j.current == failed {
		j.message = message
		if n := len(j.entries); n > 0 {
			j.entries[n-1].Message = message
		}
		j.mu.Unlock()
		return nil
	}
	j.mu.Unlock()

	return j.Transition(failed, message)
}

// Checkpoint сохраняет текущее состояние через persist и фиксирует
// контрольную точку в журнале, даже если persist вернул ошибку.
func (j *Journal[S]) Checkpoint(ctx context.Context, name string, persist func(context.Context) error) error {
	err := persist(ctx)

	j.mu.Lock()
	cp := Checkpoint[S]{
		Name:      name,
		Status:    j.current,
		Seq:       len(j.entries),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		cp.Err = err.Error()
	}
	j.checkpoints = append(j.checkpoints, cp)
	j.mu.Unlock()

	if err != nil {
		return fmt.Errorf("контрольная точка %s для %s: %w", name, j.transferID, err)
	}
	return nil
}

// Entries возвращает копию записей журнала.
func (j *Journal[S]) Entries() []Entry[S] {
	j.mu.Lock()
	defer j.mu.Unlock()
	result := make([]Entry[S], len(j.entries))
	copy(result, j.entries)
	return result
}

// Checkpoints возвращает копию контрольных точек.
func (j *Journal[S]) Checkpoints() []Checkpoint[S] {
	j.mu.Lock()
	defer j.mu.Unlock()
	result := make([]Checkpoint[S], len(j.checkpoints))
	copy(result, j.checkpoints)
	return result
}
