// refresh.go — периодическое перечитывание записей о перемещениях на follower.
//
// При хранении записей в файлах (ingestInformation.implementation=file)
// каждый экземпляр держит записи в памяти. Изменения выполняет leader,
// follower перечитывает директорию записей, чтобы операционный API
// возвращал актуальные статусы. Для PostgreSQL сервис не нужен.
package replica

import (
	"context"
	"log/slog"
	"time"
)

// Reloader — хранилище, умеющее перечитать состояние с диска.
type Reloader interface {
	Reload() error
}

// FollowerRefreshService — сервис периодического обновления данных на follower.
type FollowerRefreshService struct {
	store    Reloader
	role     RoleProvider
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewFollowerRefreshService создаёт сервис обновления для follower.
// На leader обновление пропускается.
func NewFollowerRefreshService(store Reloader, role RoleProvider, interval time.Duration, logger *slog.Logger) *FollowerRefreshService {
	return &FollowerRefreshService{
		store:    store,
		role:     role,
		interval: interval,
		logger:   logger.With(slog.String("component", "follower_refresh")),
	}
}

// Start запускает фоновую горутину обновления.
func (s *FollowerRefreshService) Start(ctx context.Context) {
	refreshCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(refreshCtx)

	s.logger.Info("FollowerRefreshService запущен",
		slog.String("interval", s.interval.String()),
	)
}

// Stop останавливает фоновой процесс обновления.
func (s *FollowerRefreshService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("FollowerRefreshService остановлен")
}

func (s *FollowerRefreshService) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh()
		}
	}
}

// Refresh перечитывает записи, если экземпляр не leader.
// Возвращает true, если обновление выполнено.
func (s *FollowerRefreshService) Refresh() bool {
	if s.role.IsLeader() {
		return false
	}
	if err := s.store.Reload(); err != nil {
		s.logger.Error("Ошибка перечитывания записей о перемещениях",
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}
