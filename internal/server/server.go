// Пакет server — HTTP-сервер senadocs с graceful shutdown.
// Без TLS: TLS termination на reverse proxy.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/bigkaa/senadocs/internal/api/errors"
	"github.com/bigkaa/senadocs/internal/api/handlers"
	"github.com/bigkaa/senadocs/internal/api/middleware"
	"github.com/bigkaa/senadocs/internal/config"
	uihandlers "github.com/bigkaa/senadocs/internal/ui/handlers"
	uimiddleware "github.com/bigkaa/senadocs/internal/ui/middleware"
	"github.com/bigkaa/senadocs/internal/ui/static"
)

// Components — обработчики и middleware, из которых собирается router.
type Components struct {
	Health      *handlers.HealthHandler
	Proposals   *handlers.ProposalsHandler
	Maintenance *handlers.MaintenanceHandler
	// JWTAuth — nil, если SD_JWT_SECRET не задан: maintenance API отвечает 503.
	JWTAuth *middleware.JWTAuth

	Auth        *uihandlers.AuthHandler
	UIProposals *uihandlers.ProposalsHandler
	UIDocuments *uihandlers.DocumentsHandler
	UIAuth      *uimiddleware.UIAuth
	// Sweeper — очистка при обращениях к UI (nil — отключена).
	Sweeper uimiddleware.Sweeper
}

// Server — HTTP-сервер senadocs.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, c *Components) *Server {
	// Конвертация в PDF может занимать до SD_CONVERSION_TIMEOUT
	writeTimeout := cfg.ConversionTimeout + 60*time.Second

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, c),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi router.
func NewRouter(logger *slog.Logger, c *Components) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(chimw.Recoverer)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Публичные endpoints: probes, метрики, статика
	router.Get("/health/live", c.Health.HealthLive)
	router.Get("/health/ready", c.Health.HealthReady)
	router.Get("/metrics", c.Health.GetMetrics)
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static.FileSystem())))

	// Вход и выход
	router.Get("/login", c.Auth.HandleLoginPage)
	router.Post("/login", c.Auth.HandleLogin)
	router.Post("/logout", c.Auth.HandleLogout)

	// Maintenance API (Bearer JWT)
	router.Route("/api/v1/maintenance", func(r chi.Router) {
		if c.JWTAuth == nil {
			r.Post("/sweep", func(w http.ResponseWriter, _ *http.Request) {
				apierrors.Unavailable(w, "Maintenance API desativada: SD_JWT_SECRET não configurado.")
			})
			return
		}
		r.Use(c.JWTAuth.Middleware(middleware.RoleMaintenance))
		r.Post("/sweep", c.Maintenance.Sweep)
	})

	// JSON для модального окна "Ver" (сессия сотрудника)
	router.Group(func(r chi.Router) {
		r.Use(c.UIAuth.APIMiddleware())
		r.Get("/api/proposta/{id}", c.Proposals.GetProposal)
	})

	// Страницы UI (сессия сотрудника)
	router.Group(func(r chi.Router) {
		r.Use(c.UIAuth.Middleware())
		if c.Sweeper != nil {
			r.Use(uimiddleware.AutoSweep(c.Sweeper))
		}

		r.Get("/", c.Auth.HandleHome)

		r.Get("/proposta", c.UIProposals.HandleForm)
		r.Post("/proposta", c.UIProposals.HandleSubmit)
		r.Get("/recentes", c.UIProposals.HandleRecent)
		r.Get("/proposta/{id}/baixar", c.UIProposals.HandleDownload)
		r.Post("/proposta/{id}/excluir", c.UIProposals.HandleDelete)

		r.Get("/contrato", c.UIDocuments.HandleContractForm)
		r.Post("/contrato", c.UIDocuments.HandleContract)
		r.Get("/contrato/{id}", c.UIDocuments.HandleContractFromProposalForm)
		r.Post("/contrato/{id}", c.UIDocuments.HandleContractFromProposal)

		r.Get("/promissoria", c.UIDocuments.HandlePromissoryForm)
		r.Post("/promissoria", c.UIDocuments.HandlePromissory)

		r.Get("/termo", c.UIDocuments.HandleReceiptForm)
		r.Post("/termo", c.UIDocuments.HandleReceipt)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
