// health.go — обработчики health endpoints senadocs.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (хранилище записей доступно)
// /metrics — Prometheus метрики
package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/senadocs/internal/config"
)

// serviceName — имя сервиса в ответах probe.
const serviceName = "senadocs"

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status string, message string)
}

// DependencyReporter — текущее состояние внешних зависимостей
// (реализуется *service.DephealthService).
type DependencyReporter interface {
	Health() map[string]bool
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	storeChecker ReadinessChecker
	deps         DependencyReporter
	promHandler  http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// storeChecker — проверка хранилища записей (nil — readiness вернёт "fail").
// deps — мониторинг зависимостей (может быть nil).
func NewHealthHandler(storeChecker ReadinessChecker, deps DependencyReporter) *HealthHandler {
	return &HealthHandler{
		storeChecker: storeChecker,
		deps:         deps,
		promHandler:  promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		Storage      healthCheckResult            `json:"storage"`
		Dependencies map[string]healthCheckResult `json:"dependencies,omitempty"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	resp := healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady — readiness probe. Проверяет хранилище записей; недоступность
// внешних зависимостей из мониторинга понижает статус до degraded.
// Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}

	// Хранилище записей
	if h.storeChecker != nil {
		status, msg := h.storeChecker.CheckReady()
		resp.Checks.Storage = healthCheckResult{Status: status, Message: msg}
	} else {
		resp.Checks.Storage = healthCheckResult{Status: "fail", Message: "не инициализирован"}
	}
	statuses := []string{resp.Checks.Storage.Status}

	// Внешние зависимости
	if h.deps != nil {
		health := h.deps.Health()
		names := make([]string, 0, len(health))
		for name := range health {
			names = append(names, name)
		}
		sort.Strings(names)

		resp.Checks.Dependencies = make(map[string]healthCheckResult, len(names))
		for _, name := range names {
			if health[name] {
				resp.Checks.Dependencies[name] = healthCheckResult{Status: "ok"}
				continue
			}
			resp.Checks.Dependencies[name] = healthCheckResult{Status: "degraded", Message: "зависимость недоступна"}
			statuses = append(statuses, "degraded")
		}
	}

	// Определяем итоговый статус
	resp.Status = overallStatus(statuses...)

	w.Header().Set("Content-Type", "application/json")
	if resp.Status == "fail" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
// Иначе — ok.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == "fail" {
			return "fail"
		}
		if s == "degraded" {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return "degraded"
	}
	return "ok"
}
