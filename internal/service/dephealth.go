// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// senadocs мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical),
//     только при SD_DATABASE_URL=postgres://...
//   - S3/MinIO — HTTP checker к health endpoint (не critical: зеркало вспомогательное),
//     только при заданных SD_S3_BUCKET и SD_S3_ENDPOINT
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для S3
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"     // PostgreSQL checker (pool mode)
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bigkaa/senadocs/internal/config"
)

// serviceID — имя вершины графа senadocs.
const serviceID = "senadocs"

// s3HealthPath — health endpoint MinIO.
const s3HealthPath = "/minio/health/live"

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	names  []string
	logger *slog.Logger
}

// NeedsDephealth сообщает, есть ли у конфигурации внешние зависимости.
func NeedsDephealth(cfg *config.Config) bool {
	return cfg.DBDriver == config.DriverPostgres || (cfg.S3Enabled() && cfg.S3Endpoint != "")
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// db — *sql.DB из pgxpool через stdlib.OpenDBFromPool() (nil для SQLite).
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, db, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	cfg *config.Config,
	db *sql.DB,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(cfg, db, logger, dephealth.WithRegisterer(registerer))
}

// newDephealthService — внутренний конструктор.
func newDephealthService(
	cfg *config.Config,
	db *sql.DB,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	opts := []dephealth.Option{dephealth.WithLogger(logger)}
	var names []string

	if cfg.DBDriver == config.DriverPostgres && db != nil {
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)),
			dephealth.FromURL(cfg.DatabaseURL),
			dephealth.CheckInterval(cfg.DephealthCheckInterval),
			dephealth.Critical(true),
		))
		names = append(names, "postgresql")
	}

	if cfg.S3Enabled() && cfg.S3Endpoint != "" {
		opts = append(opts, dephealth.HTTP("s3-mirror",
			dephealth.FromURL(cfg.S3Endpoint),
			dephealth.WithHTTPHealthPath(s3HealthPath),
			dephealth.CheckInterval(cfg.DephealthCheckInterval),
			dephealth.Critical(false),
		))
		names = append(names, "s3-mirror")
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, cfg.DephealthGroup, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		names:  names,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен", slog.Any("dependencies", ds.names))
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
