// Пакет replica — несколько демонов staging над общим корнем кэша.
//
// Экземпляры работают с общей файловой системой (NFS v4+). Leader
// выполняет периодическую финализацию и очистку и обрабатывает
// изменяющие запросы операционного API, follower обслуживает чтение
// и проксирует изменения к leader.
package replica

// Role — роль экземпляра демона.
type Role string

const (
	// RoleStandalone — единственный экземпляр (STG_LEADER_LOCK_FILE не задан).
	RoleStandalone Role = "standalone"
	// RoleLeader — leader: финализация, очистка, изменяющие запросы.
	RoleLeader Role = "leader"
	// RoleFollower — follower: чтение, проксирование изменений к leader.
	RoleFollower Role = "follower"
)

// RoleProvider — интерфейс получения текущей роли экземпляра.
// Реализации: StandaloneProvider, Election.
type RoleProvider interface {
	// CurrentRole возвращает текущую роль экземпляра.
	CurrentRole() Role
	// IsLeader возвращает true, если экземпляр является leader.
	IsLeader() bool
	// LeaderAddr возвращает адрес leader (host:port).
	// Пустая строка, если leader неизвестен.
	LeaderAddr() string
}

// StandaloneProvider — RoleProvider единственного экземпляра.
// Всегда возвращает RoleStandalone и IsLeader() = true.
type StandaloneProvider struct{}

// CurrentRole возвращает RoleStandalone.
func (p *StandaloneProvider) CurrentRole() Role {
	return RoleStandalone
}

// IsLeader возвращает true — единственный экземпляр всегда «leader».
func (p *StandaloneProvider) IsLeader() bool {
	return true
}

// LeaderAddr возвращает пустую строку — отдельного leader нет.
func (p *StandaloneProvider) LeaderAddr() string {
	return ""
}
