// Точка входа senadocs — веб-приложение для подготовки документов
// аренды оборудования (предложения, контракты, промиссории, акты выдачи).
// Загружает конфигурацию, применяет миграции, открывает хранилище записей,
// создаёт конвейер DOCX → PDF и сервисный слой, запускает фоновую очистку,
// мониторинг зависимостей и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/senadocs/internal/api/handlers"
	"github.com/bigkaa/senadocs/internal/api/middleware"
	"github.com/bigkaa/senadocs/internal/config"
	"github.com/bigkaa/senadocs/internal/database"
	"github.com/bigkaa/senadocs/internal/render/convert"
	"github.com/bigkaa/senadocs/internal/render/docx"
	"github.com/bigkaa/senadocs/internal/repository"
	"github.com/bigkaa/senadocs/internal/server"
	"github.com/bigkaa/senadocs/internal/service"
	"github.com/bigkaa/senadocs/internal/storage/filestore"
	"github.com/bigkaa/senadocs/internal/storage/s3mirror"
	"github.com/bigkaa/senadocs/internal/ui/auth"
	uihandlers "github.com/bigkaa/senadocs/internal/ui/handlers"
	uimiddleware "github.com/bigkaa/senadocs/internal/ui/middleware"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("senadocs запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("db_driver", cfg.DBDriver),
	)

	// 3. Применение миграций
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Хранилище записей
	ctx := context.Background()
	var (
		repo repository.ProposalRepository
		ping database.PingFunc
		// pgDB — адаптер pgxpool → *sql.DB для topologymetrics (nil для SQLite)
		pgDB *sql.DB
	)
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		repo = repository.NewPostgresProposalRepository(pool)
		ping = pool.Ping
	default:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath(), logger)
		if err != nil {
			logger.Error("Ошибка открытия SQLite", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()

		repo = repository.NewSQLiteProposalRepository(db)
		ping = db.PingContext
	}

	// 5. Файловое хранилище
	store, err := filestore.New(cfg.StorageDir)
	if err != nil {
		logger.Error("Ошибка инициализации каталога хранения", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Зеркало PDF в S3 (опционально)
	var mirror service.Mirror
	if cfg.S3Enabled() {
		m, err := s3mirror.New(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка создания S3-зеркала", slog.String("error", err.Error()))
			os.Exit(1)
		}
		mirror = m
		logger.Info("S3-зеркало включено",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("prefix", cfg.S3Prefix),
		)
	}

	// 7. Конвейер DOCX → PDF
	renderer := docx.NewRenderer(cfg.TemplateCacheSize, cfg.TemplateCacheTTL, logger)
	converter := convert.NewSoffice(cfg.SofficePath, cfg.ConversionTimeout, logger)

	// 8. Services
	docsSvc := service.NewDocumentService(cfg, store, renderer, converter, logger)
	proposalsSvc := service.NewProposalService(cfg, repo, docsSvc, store, mirror, logger)
	sweeper := service.NewSweeper(cfg, repo, store, mirror, logger)

	// 9. Фоновая очистка
	sweeper.Start(ctx)

	// 10. topologymetrics — мониторинг зависимостей (PostgreSQL, S3)
	var dephealthSvc *service.DephealthService
	if service.NeedsDephealth(cfg) {
		if os.Getenv("SD_DEPHEALTH_GROUP") == "" {
			logger.Warn("SD_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
				slog.String("default", cfg.DephealthGroup),
			)
		}
		svc, dephealthErr := service.NewDephealthService(cfg, pgDB, logger)
		if dephealthErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dephealthErr.Error()),
			)
		} else if startErr := svc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			dephealthSvc = svc
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 11. Health handler
	var deps handlers.DependencyReporter
	if dephealthSvc != nil {
		deps = dephealthSvc
	}
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(cfg.DBDriver, ping), deps)

	// 12. JWT для maintenance API (опционально)
	var jwtAuth *middleware.JWTAuth
	if cfg.JWTSecret != "" {
		jwtAuth, err = middleware.NewJWTAuth(cfg.JWTSecret, cfg.JWTIssuer, logger)
		if err != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Maintenance API включён", slog.String("issuer", cfg.JWTIssuer))
	} else {
		logger.Info("SD_JWT_SECRET не задан, maintenance API отключён")
	}

	// 13. UI: сессии и сотрудники
	sessionMgr, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SecureCookie, cfg.SessionTTL)
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SD_SESSION_SECRET не задан, UI-сессии не сохраняются между рестартами")
	}
	staff := auth.NewStaff(cfg.StaffUsers)
	if staff.Empty() {
		logger.Warn("SD_STAFF_USERS не задана, вход в UI невозможен")
	}

	components := &server.Components{
		Health:      healthHandler,
		Proposals:   handlers.NewProposalsHandler(proposalsSvc, logger),
		Maintenance: handlers.NewMaintenanceHandler(sweeper, logger),
		JWTAuth:     jwtAuth,
		Auth:        uihandlers.NewAuthHandler(staff, sessionMgr, logger),
		UIProposals: uihandlers.NewProposalsHandler(proposalsSvc, store, logger),
		UIDocuments: uihandlers.NewDocumentsHandler(docsSvc, proposalsSvc, store, logger),
		UIAuth:      uimiddleware.NewUIAuth(sessionMgr, logger),
		Sweeper:     sweeper,
	}

	// 14. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, components)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 15. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	sweeper.Stop()

	logger.Info("senadocs остановлен")
}
