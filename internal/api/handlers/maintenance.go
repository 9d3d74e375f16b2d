// maintenance.go — API обслуживания: запуск прохода очистки по требованию
// (например, из CronJob). Защищён JWT middleware с ролью maintenance.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/senadocs/internal/api/middleware"
	"github.com/bigkaa/senadocs/internal/domain/model"
)

// SweepRunner — запуск прохода очистки (реализуется *service.Sweeper).
type SweepRunner interface {
	RunOnce(ctx context.Context) *model.SweepResult
}

// MaintenanceHandler — обработчик POST /api/v1/maintenance/sweep.
type MaintenanceHandler struct {
	sweeper SweepRunner
	logger  *slog.Logger
}

// NewMaintenanceHandler создаёт обработчик API обслуживания.
func NewMaintenanceHandler(sweeper SweepRunner, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		sweeper: sweeper,
		logger:  logger.With(slog.String("component", "api.maintenance")),
	}
}

// sweepResponse — результат прохода очистки.
type sweepResponse struct {
	StartedAt        string `json:"started_at"`
	RecordsRemoved   int    `json:"records_removed"`
	TempFilesRemoved int    `json:"temp_files_removed"`
	DurationMs       int64  `json:"duration_ms"`
	Skipped          bool   `json:"skipped"`
}

// Sweep — POST /api/v1/maintenance/sweep. Выполняет проход синхронно.
func (h *MaintenanceHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	subject := ""
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		subject = claims.Subject
	}

	result := h.sweeper.RunOnce(r.Context())

	h.logger.Info("Очистка запущена через API",
		slog.String("subject", subject),
		slog.Int("records_removed", result.RecordsRemoved),
		slog.Int("temp_files_removed", result.TempFilesRemoved),
	)

	writeJSON(w, http.StatusOK, sweepResponse{
		StartedAt:        result.StartedAt.UTC().Format(time.RFC3339),
		RecordsRemoved:   result.RecordsRemoved,
		TempFilesRemoved: result.TempFilesRemoved,
		DurationMs:       result.Duration.Milliseconds(),
		Skipped:          result.Skipped,
	})
}
