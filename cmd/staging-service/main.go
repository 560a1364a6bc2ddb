// Точка входа Staging Service — демона оркестрации перемещений:
// периодическая финализация и очистка, операционный API, мониторинг
// зависимостей и выборы leader среди демонов с общим корнем staging.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/arturkryukov/artsore/staging-service/internal/api/generated"
	"github.com/arturkryukov/artsore/staging-service/internal/api/handlers"
	"github.com/arturkryukov/artsore/staging-service/internal/api/middleware"
	"github.com/arturkryukov/artsore/staging-service/internal/bootstrap"
	"github.com/arturkryukov/artsore/staging-service/internal/config"
	"github.com/arturkryukov/artsore/staging-service/internal/replica"
	"github.com/arturkryukov/artsore/staging-service/internal/server"
	"github.com/arturkryukov/artsore/staging-service/internal/service"
)

// Интервал обновления метрик дискового пространства staging.
const diskUsageInterval = time.Minute

func main() {
	// Загрузка конфигурации из переменных окружения и документа staging
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Staging Service запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("config_file", cfg.ConfigFile),
		slog.Bool("election", cfg.LeaderLockFile != ""),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Инициализация компонентов ---

	// 1. Хранилища, адаптеры, оркестратор
	components, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации staging", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer components.Close()
	orch := components.Orchestrator

	recoverStale := func() {
		if !cfg.RecoverStale {
			return
		}
		if _, err := orch.RecoverStale(ctx); err != nil {
			logger.Error("Ошибка восстановления зависших перемещений", slog.String("error", err.Error()))
		}
	}

	// 2. Роль экземпляра
	var (
		role     replica.RoleProvider
		election *replica.Election
	)
	if cfg.LeaderLockFile != "" {
		onLeader := func() {
			// Новый leader продолжает с записей, сохранённых предыдущим.
			for _, fs := range components.FileStores {
				if err := fs.Reload(); err != nil {
					logger.Error("Ошибка перечитывания записей", slog.String("dir", fs.Dir()), slog.String("error", err.Error()))
				}
			}
			go recoverStale()
		}
		onFollower := func() {
			logger.Info("Экземпляр работает как follower, финализация выполняется leader")
		}
		election = replica.NewElection(cfg.LeaderLockFile, cfg.Port, cfg.ElectionRetryInterval, onLeader, onFollower, logger)
		if err := election.Start(); err != nil {
			logger.Error("Ошибка запуска выборов leader", slog.String("error", err.Error()))
			os.Exit(1)
		}
		role = election
	} else {
		role = &replica.StandaloneProvider{}
		recoverStale()
	}
	logger.Info("Роль экземпляра определена", slog.String("role", string(role.CurrentRole())))

	// 3. Фоновые процессы
	finalizer := service.NewFinalizerService(orch, cfg.FinalizeInterval, role.IsLeader, logger)
	finalizer.Start(ctx)

	cleanup := service.NewCleanupService(orch, cfg.CleanupInterval, role.IsLeader, logger)
	cleanup.Start(ctx)

	var refreshers []*replica.FollowerRefreshService
	if election != nil {
		for _, fs := range components.FileStores {
			r := replica.NewFollowerRefreshService(fs, role, cfg.FollowerRefreshInterval, logger)
			r.Start(ctx)
			refreshers = append(refreshers, r)
		}
	}

	go reportDiskUsage(ctx, components.StagingDirs, diskUsageInterval, logger)

	// 4. topologymetrics — мониторинг зависимостей
	targets := components.Dephealth
	targets.JWKSURL = cfg.JWKSUrl
	dephealthSvc, err := service.NewDephealthService(
		dephealthName(cfg.DephealthName),
		cfg.DephealthGroup,
		targets,
		cfg.DephealthCheckInterval,
		logger,
	)
	switch {
	case errors.Is(err, service.ErrNoDependencies):
		logger.Info("Нет зависимостей для topologymetrics, мониторинг не запущен")
	case err != nil:
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	default:
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 5. Handlers и middleware
	routes := server.Routes{
		Health: handlers.NewHealthHandler(components.Readiness, components.StagingDirs, cfg.WALDir, role),
	}
	if cfg.JWKSUrl != "" {
		jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSUrl,
			CACertPath:      cfg.JWKSCACert,
			TLSSkipVerify:   cfg.TLSSkipVerify,
			ClientTimeout:   10 * time.Second,
			RefreshInterval: cfg.JWKSRefreshInterval,
			JWTLeeway:       cfg.JWTLeeway,
		}, logger)
		if err != nil {
			logger.Error("Ошибка инициализации JWT", slog.String("error", err.Error()))
			os.Exit(1)
		}
		swagger, err := generated.GetSwagger()
		if err != nil {
			logger.Error("Ошибка загрузки OpenAPI-документа", slog.String("error", err.Error()))
			os.Exit(1)
		}
		validator, err := middleware.NewOpenAPIValidator(swagger, logger)
		if err != nil {
			logger.Error("Ошибка инициализации валидации запросов", slog.String("error", err.Error()))
			os.Exit(1)
		}
		routes.Auth = jwtAuth.Middleware()
		routes.Validator = validator.Middleware()
		routes.Transfers = handlers.NewTransfersHandler(orch, components.Ingests, components.Downloads, logger)
		if election != nil {
			useTLS := cfg.TLSCert != "" && cfg.TLSKey != ""
			routes.Proxy = replica.NewLeaderProxy(role, useTLS, cfg.TLSSkipVerify, logger).Middleware
		}
		logger.Info("Операционный API включён", slog.String("jwks_url", cfg.JWKSUrl))
	} else {
		logger.Warn("STG_JWKS_URL не задан, операционный API отключён")
	}

	// 6. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, routes)
	runErr := srv.Run(ctx)

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	finalizer.Stop()
	cleanup.Stop()
	for _, r := range refreshers {
		r.Stop()
	}
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	if election != nil {
		election.Stop()
	}
	cancel()

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		components.Close()
		os.Exit(1)
	}
	logger.Info("Staging Service остановлен")
}
