// Пакет server — HTTP-сервер демона Staging Service с TLS и graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apierrors "github.com/arturkryukov/artsore/staging-service/internal/api/errors"
	"github.com/arturkryukov/artsore/staging-service/internal/api/generated"
	"github.com/arturkryukov/artsore/staging-service/internal/api/handlers"
	"github.com/arturkryukov/artsore/staging-service/internal/api/middleware"
	"github.com/arturkryukov/artsore/staging-service/internal/config"
)

// Routes — обработчики и middleware, из которых собирается роутер.
type Routes struct {
	Health *handlers.HealthHandler
	// Transfers — операционный API (nil — API отключён)
	Transfers generated.ServerInterface
	// Auth — JWT middleware операционного API
	Auth func(http.Handler) http.Handler
	// Validator — проверка запросов по OpenAPI-документу, после Auth
	Validator func(http.Handler) http.Handler
	// Proxy — проксирование изменяющих запросов к leader (nil — единственный экземпляр)
	Proxy func(http.Handler) http.Handler
}

// Server — HTTP-сервер демона.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, routes Routes) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, routes),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
		cfg:        cfg,
	}
}

// NewRouter собирает роутер chi: health, metrics и /api/v1.
// Маршруты /api/v1 регистрирует сгенерированный из api/openapi.yaml код.
// Follower проксирует изменяющие запросы к leader до проверки JWT,
// токен проверяет leader.
func NewRouter(logger *slog.Logger, routes Routes) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	if routes.Health != nil {
		router.Get("/health/live", routes.Health.HealthLive)
		router.Get("/health/ready", routes.Health.HealthReady)
	}
	router.Handle("/metrics", promhttp.Handler())

	if routes.Transfers != nil {
		router.Group(func(r chi.Router) {
			if routes.Proxy != nil {
				r.Use(routes.Proxy)
			}
			if routes.Auth != nil {
				r.Use(routes.Auth)
			}
			if routes.Validator != nil {
				r.Use(routes.Validator)
			}
			generated.HandlerWithOptions(routes.Transfers, generated.ChiServerOptions{
				BaseRouter: r,
				ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
					apierrors.ValidationError(w, err.Error())
				},
			})
		})
	}
	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. Затем выполняется graceful shutdown с таймаутом
// STG_SHUTDOWN_TIMEOUT.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	useTLS := s.cfg.TLSCert != "" && s.cfg.TLSKey != ""

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.Bool("tls", useTLS),
		)

		var err error
		if useTLS {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
