package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLeaser — аренда пакетной финализации через
// pg_try_advisory_lock. Блокировка сессионная, поэтому удерживается
// на выделенном соединении пула до вызова release.
type AdvisoryLeaser struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAdvisoryLeaser создаёт аренду поверх пула.
func NewAdvisoryLeaser(pool *pgxpool.Pool, logger *slog.Logger) *AdvisoryLeaser {
	return &AdvisoryLeaser{
		pool:   pool,
		logger: logger.With(slog.String("component", "pg_lease")),
	}
}

// Acquire реализует record.Leaser.
func (l *AdvisoryLeaser) Acquire(ctx context.Context, name string) (func(), bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка получения соединения для аренды: %w", err)
	}

	key := "staging:" + name
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, key).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("ошибка захвата advisory lock %s: %w", key, err)
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() { l.unlock(conn, key) })
	}
	return release, true, nil
}

func (l *AdvisoryLeaser) unlock(conn *pgxpool.Conn, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, key); err != nil {
		l.logger.Warn("Не удалось освободить advisory lock",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	conn.Release()
}
