// Пакет bootstrap — сборка компонентов staging по конфигурации:
// хранилища записей, адаптеры, реестры реализаций и оркестратор.
// Используется демоном и CLI-финализатором. Ошибки сборки означают
// ошибку конфигурации и фатальны при старте.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/arturkryukov/artsore/staging-service/internal/accesspoint"
	"github.com/arturkryukov/artsore/staging-service/internal/config"
	"github.com/arturkryukov/artsore/staging-service/internal/dataorg"
	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
	"github.com/arturkryukov/artsore/staging-service/internal/notify"
	"github.com/arturkryukov/artsore/staging-service/internal/processor"
	"github.com/arturkryukov/artsore/staging-service/internal/service"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/postgres"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/record"
	"github.com/arturkryukov/artsore/staging-service/internal/storage/wal"
	"github.com/arturkryukov/artsore/staging-service/internal/virtualization"
)

// Registries — реестры реализаций точек доступа, процессоров и
// адаптеров виртуализации хранилища.
type Registries struct {
	AccessPoints *accesspoint.Registry
	Processors   *processor.Registry
	Storage      *virtualization.Registry
}

// DefaultRegistries возвращает реестры со встроенными реализациями.
func DefaultRegistries() Registries {
	return Registries{
		AccessPoints: accesspoint.NewRegistry(),
		Processors:   processor.NewRegistry(),
		Storage:      virtualization.NewRegistry(),
	}
}

// ReadinessChecker — проверка готовности хранилища записей.
type ReadinessChecker interface {
	CheckReady() (status string, message string)
}

// Components — собранные компоненты staging.
type Components struct {
	Orchestrator *service.Orchestrator
	Ingests      record.IngestStore
	Downloads    record.DownloadStore
	// Readiness — готовность хранилищ записей для /health/ready
	Readiness ReadinessChecker
	// FileStores — файловые хранилища записей, перечитываемые на follower
	FileStores []*record.FileStore
	// Pool — пул PostgreSQL (nil, если записи хранятся в файлах)
	Pool *pgxpool.Pool
	// WAL — журнал финализаций (nil — отключён)
	WAL *wal.WAL
	// StagingDirs — локальные корни точек доступа на момент старта
	StagingDirs []string
	// Dephealth — зависимости для topologymetrics (без JWKS)
	Dephealth service.DephealthTargets

	closers []func()
}

// Close освобождает ресурсы в обратном порядке.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build собирает компоненты со встроенными реестрами.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	return BuildWith(ctx, cfg, DefaultRegistries(), logger)
}

// BuildWith собирает компоненты с заданными реестрами.
// При ошибке уже открытые ресурсы закрываются.
func BuildWith(ctx context.Context, cfg *config.Config, reg Registries, logger *slog.Logger) (_ *Components, err error) {
	st := cfg.Staging
	c := &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	// 1. Проверка реализаций по реестрам
	if err := validateRegistries(st, reg, logger); err != nil {
		return nil, err
	}

	// 2. Хранилища записей
	var (
		leaser  record.Leaser
		catalog accesspoint.Catalog = config.NewFileCatalog(cfg.ConfigFile)
		checks  multiReadiness
	)
	if dsn := st.PostgresDSN(); dsn != "" {
		if cfg.DBMigrate {
			if err := postgres.Migrate(dsn, logger); err != nil {
				return nil, fmt.Errorf("миграции PostgreSQL: %w", err)
			}
		}
		pool, err := postgres.Connect(ctx, dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("подключение к PostgreSQL: %w", err)
		}
		c.Pool = pool
		c.closers = append(c.closers, pool.Close)

		db := stdlib.OpenDBFromPool(pool)
		c.closers = append(c.closers, func() { _ = db.Close() })
		c.Dephealth.DB = db
		c.Dephealth.PostgresURL = redactDSN(dsn)

		leaser = postgres.NewAdvisoryLeaser(pool, logger)
		checks = append(checks, postgres.NewReadinessChecker(pool))

		if st.AccessPoints.Source == config.SourceDatabase {
			repo := postgres.NewAccessPointRepository(pool)
			for _, ap := range st.AccessPoints.Items {
				if err := repo.Upsert(ctx, ap); err != nil {
					return nil, fmt.Errorf("заполнение каталога точек доступа: %w", err)
				}
			}
			catalog = repo
		}
	}

	fileStores := make(map[string]*record.FileStore)
	openRecords := func(slot config.AdapterSlot) (record.Store, error) {
		if slot.Implementation == config.RecordsPostgres {
			return postgres.NewStore(c.Pool), nil
		}
		dir := slot.Property("dir", "")
		if fs, ok := fileStores[dir]; ok {
			return fs, nil
		}
		fs, err := record.NewFileStore(dir, logger)
		if err != nil {
			return nil, err
		}
		fileStores[dir] = fs
		c.FileStores = append(c.FileStores, fs)
		checks = append(checks, fs)
		return fs, nil
	}
	ingests, err := openRecords(st.Adapters.IngestInformation)
	if err != nil {
		return nil, fmt.Errorf("хранилище записей ingest: %w", err)
	}
	downloads, err := openRecords(st.Adapters.DownloadInformation)
	if err != nil {
		return nil, fmt.Errorf("хранилище записей download: %w", err)
	}
	c.Ingests, c.Downloads = ingests, downloads
	c.Readiness = checks
	if leaser == nil {
		leaser = record.NewLocalLeaser()
	}

	// 3. Организация данных
	trees, err := openDataOrganization(st.Adapters.DataOrganization, logger)
	if err != nil {
		return nil, err
	}

	// 4. Виртуализация хранилища
	storageSlot := st.Adapters.StorageVirtualization
	storage, err := reg.Storage.Create(storageSlot.Implementation, storageSlot.Properties, logger)
	if err != nil {
		return nil, &config.Error{Field: "adapters.storageVirtualization", Message: err.Error()}
	}

	// 5. Журнал финализаций
	if cfg.WALDir != "" {
		c.WAL, err = wal.New(cfg.WALDir, logger)
		if err != nil {
			return nil, fmt.Errorf("журнал финализаций: %w", err)
		}
	}

	for _, ap := range st.AccessPoints.Items {
		c.StagingDirs = append(c.StagingDirs, ap.LocalBasePath)
	}
	c.Dephealth.RestURL = st.RemoteAccess.RestURL
	c.Dephealth.TLSSkipVerify = cfg.TLSSkipVerify

	deps := service.Deps{
		Ingests:    ingests,
		Downloads:  downloads,
		Resolver:   accesspoint.NewResolver(catalog, reg.AccessPoints, logger),
		Pipeline:   processor.NewPipeline(reg.Processors, logger),
		Trees:      trees,
		Storage:    storage,
		Mailer:     notify.NewMailer(st.Mail, logger),
		WAL:        c.WAL,
		Leaser:     leaser,
		Limits:     st.Limits,
		Processors: st.Processors,
	}
	c.Orchestrator = service.NewOrchestrator(deps, logger)

	logger.Info("Компоненты staging собраны",
		slog.String("ingest_records", st.Adapters.IngestInformation.Implementation),
		slog.String("download_records", st.Adapters.DownloadInformation.Implementation),
		slog.String("storage", storageSlot.Implementation),
		slog.String("access_points", st.AccessPoints.Source),
		slog.Bool("wal", c.WAL != nil),
	)
	return c, nil
}

// validateRegistries проверяет, что все реализации из конфигурации
// известны реестрам.
func validateRegistries(st *config.Staging, reg Registries, logger *slog.Logger) error {
	var errs []error

	storageSlot := st.Adapters.StorageVirtualization
	if !storageSlot.IsLocal() {
		errs = append(errs, &config.Error{Field: "adapters.storageVirtualization.target",
			Message: fmt.Sprintf("удалённый адаптер %q не поддерживается", storageSlot.Target)})
	}
	if !reg.Storage.Has(storageSlot.Implementation) {
		errs = append(errs, &config.Error{Field: "adapters.storageVirtualization.implementation",
			Message: fmt.Sprintf("неизвестная реализация %q", storageSlot.Implementation)})
	}
	if !st.Adapters.DataOrganization.IsLocal() {
		errs = append(errs, &config.Error{Field: "adapters.dataOrganization.target",
			Message: fmt.Sprintf("удалённый адаптер %q не поддерживается", st.Adapters.DataOrganization.Target)})
	}

	for i, ap := range st.AccessPoints.Items {
		if !reg.AccessPoints.Has(ap.Implementation) {
			errs = append(errs, &config.Error{Field: fmt.Sprintf("accessPoints.items[%d].implementation", i),
				Message: fmt.Sprintf("неизвестная реализация %q", ap.Implementation)})
		}
	}

	for _, group := range []struct {
		field string
		cfgs  []model.StagingProcessorConfig
		phase processor.Phase
	}{
		{"processors.preArchive", st.Processors.PreArchive, processor.PhasePreArchive},
		{"processors.postArchive", st.Processors.PostArchive, processor.PhasePostArchive},
		{"processors.download", st.Processors.Download, processor.PhaseDownload},
	} {
		if err := reg.Processors.Validate(group.cfgs, group.phase, logger); err != nil {
			errs = append(errs, &config.Error{Field: group.field, Message: err.Error()})
		}
	}

	return errors.Join(errs...)
}

// openDataOrganization создаёт хранилище деревьев представлений.
// Параметры: dir, cacheSize (по умолчанию 128), cacheTTL (по умолчанию 10m).
func openDataOrganization(slot config.AdapterSlot, logger *slog.Logger) (dataorg.Store, error) {
	size, err := strconv.Atoi(slot.Property("cacheSize", "128"))
	if err != nil {
		return nil, &config.Error{Field: "adapters.dataOrganization.properties.cacheSize", Message: "некорректное целое число"}
	}
	ttl, err := time.ParseDuration(slot.Property("cacheTTL", "10m"))
	if err != nil {
		return nil, &config.Error{Field: "adapters.dataOrganization.properties.cacheTTL", Message: "некорректная длительность"}
	}
	return dataorg.NewLocalStore(slot.Property("dir", ""), size, ttl, logger)
}

// redactDSN убирает учётные данные и параметры из DSN для меток метрик.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return ""
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

// multiReadiness объединяет проверки: первая неуспешная определяет результат.
type multiReadiness []ReadinessChecker

// CheckReady реализует ReadinessChecker.
func (m multiReadiness) CheckReady() (string, string) {
	for _, c := range m {
		if status, msg := c.CheckReady(); status != "ok" {
			return status, msg
		}
	}
	return "ok", "хранилища записей доступны"
}
