// election.go — leader election через файловую блокировку на общей FS (NFS v4+).
//
// Алгоритм:
//  1. Попытка захватить эксклюзивную блокировку STG_LEADER_LOCK_FILE (gofslock)
//  2. Если блокировка получена — роль leader, адрес записывается в {lock}.info
//  3. Если нет — роль follower, адрес leader читается из {lock}.info
//  4. Follower периодически (STG_ELECTION_RETRY_INTERVAL) пытается захватить lock
//
// В K8s с headless Service hostname = "stg-0", "stg-1" — резолвится через DNS.
package replica

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/danjacques/gofslock/fslock"
)

// defaultRetryInterval — интервал попыток захвата lock для follower по умолчанию.
const defaultRetryInterval = 5 * time.Second

// Election — leader election через файловую блокировку на общей FS.
// Реализует интерфейс RoleProvider.
type Election struct {
	lockPath      string
	infoPath      string
	port          int
	retryInterval time.Duration
	logger        *slog.Logger

	// Коллбэки при смене роли
	onBecomeLeader   func()
	onBecomeFollower func()

	mu         sync.RWMutex
	role       Role
	leaderAddr string
	handle     fslock.Handle

	stopCh chan struct{}
	done   chan struct{}
}

// NewElection создаёт экземпляр leader election.
//
// Параметры:
//   - lockPath: файл блокировки на общей FS (STG_LEADER_LOCK_FILE)
//   - port: порт HTTP-сервера текущего экземпляра
//   - retryInterval: интервал попыток follower (0 — 5 секунд)
//   - onBecomeLeader: вызывается при получении роли leader
//   - onBecomeFollower: вызывается при получении роли follower
func NewElection(
	lockPath string,
	port int,
	retryInterval time.Duration,
	onBecomeLeader func(),
	onBecomeFollower func(),
	logger *slog.Logger,
) *Election {
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}
	return &Election{
		lockPath:         lockPath,
		infoPath:         lockPath + ".info",
		port:             port,
		retryInterval:    retryInterval,
		onBecomeLeader:   onBecomeLeader,
		onBecomeFollower: onBecomeFollower,
		logger:           logger.With(slog.String("component", "election")),
		role:             RoleFollower,
		stopCh:           make(chan struct{}),
		done:             make(chan struct{}),
	}
}

// Start запускает процесс leader election.
// Блокирует до первого определения роли, затем возвращает управление.
func (e *Election) Start() error {
	if err := os.MkdirAll(filepath.Dir(e.lockPath), 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию lock-файла: %w", err)
	}

	acquired, err := e.tryAcquireLock()
	if err != nil {
		return fmt.Errorf("ошибка при попытке захвата lock: %w", err)
	}

	if acquired {
		e.becomeLeader()
		// Leader не запускает retry горутину — закрываем done сразу
		close(e.done)
	} else {
		e.becomeFollower()
		go e.retryLoop()
	}

	return nil
}

// Stop останавливает election, освобождает lock.
func (e *Election) Stop() {
	close(e.stopCh)
	<-e.done

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle != nil {
		if err := e.handle.Unlock(); err != nil {
			e.logger.Warn("Ошибка освобождения lock", slog.String("error", err.Error()))
		}
		e.handle = nil
		e.logger.Info("Lock освобождён")
	}
}

// CurrentRole возвращает текущую роль экземпляра.
func (e *Election) CurrentRole() Role {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.role
}

// IsLeader возвращает true, если экземпляр является leader.
func (e *Election) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.role == RoleLeader
}

// LeaderAddr возвращает адрес leader (host:port).
func (e *Election) LeaderAddr() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.leaderAddr
}

// tryAcquireLock пытается захватить блокировку без ожидания.
// Возвращает true, если блокировка получена.
func (e *Election) tryAcquireLock() (bool, error) {
	h, err := fslock.Lock(e.lockPath)
	switch err {
	case nil:
	case fslock.ErrLockHeld:
		return false, nil
	default:
		return false, fmt.Errorf("не удалось заблокировать %s: %w", e.lockPath, err)
	}

	e.mu.Lock()
	e.handle = h
	e.mu.Unlock()

	return true, nil
}

// becomeLeader переводит экземпляр в роль leader.
func (e *Election) becomeLeader() {
	addr := e.buildAddr()

	e.mu.Lock()
	e.role = RoleLeader
	e.leaderAddr = addr
	e.mu.Unlock()

	if err := WriteLeaderInfo(e.infoPath, addr); err != nil {
		e.logger.Error("Ошибка записи сведений о leader",
			slog.String("path", e.infoPath),
			slog.String("error", err.Error()),
		)
	}

	e.logger.Info("Роль: LEADER", slog.String("addr", addr))

	if e.onBecomeLeader != nil {
		e.onBecomeLeader()
	}
}

// becomeFollower переводит экземпляр в роль follower.
func (e *Election) becomeFollower() {
	addr := e.readLeaderAddr()

	e.mu.Lock()
	e.role = RoleFollower
	e.leaderAddr = addr
	e.mu.Unlock()

	e.logger.Info("Роль: FOLLOWER", slog.String("leader_addr", addr))

	if e.onBecomeFollower != nil {
		e.onBecomeFollower()
	}
}

// retryLoop — горутина follower, периодически пытающаяся захватить lock.
func (e *Election) retryLoop() {
	defer close(e.done)

	ticker := time.NewTicker(e.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			// Адрес leader мог измениться
			addr := e.readLeaderAddr()
			e.mu.Lock()
			e.leaderAddr = addr
			e.mu.Unlock()

			acquired, err := e.tryAcquireLock()
			if err != nil {
				e.logger.Warn("Ошибка retry захвата lock", slog.String("error", err.Error()))
				continue
			}
			if acquired {
				e.becomeLeader()
				return
			}
		}
	}
}

// buildAddr формирует адрес текущего экземпляра: hostname:port.
func (e *Election) buildAddr() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return fmt.Sprintf("%s:%d", hostname, e.port)
}

// readLeaderAddr возвращает адрес leader или пустую строку, если
// сведения не записаны.
func (e *Election) readLeaderAddr() string {
	info, err := ReadLeaderInfo(e.infoPath)
	if err != nil {
		return ""
	}
	return info.Addr
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ RoleProvider = (*Election)(nil)
