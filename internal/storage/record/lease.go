package record

import (
	"context"
	"sync"
)

// Leaser — эксклюзивная аренда пакетной финализации одного направления.
// Acquire возвращает ok=false, если аренда уже удерживается другим
// исполнителем; release освобождает аренду.
type Leaser interface {
	Acquire(ctx context.Context, name string) (release func(), ok bool, err error)
}

// LocalLeaser — аренда внутри одного процесса.
type LocalLeaser struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLeaser создаёт LocalLeaser.
func NewLocalLeaser() *LocalLeaser {
	return &LocalLeaser{held: make(map[string]bool)}
}

// Acquire реализует Leaser.
func (l *LocalLeaser) Acquire(_ context.Context, name string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[name] {
		return nil, false, nil
	}
	l.held[name] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, name)
			l.mu.Unlock()
		})
	}, true, nil
}
