package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/senadocs/internal/domain/model"
	"github.com/bigkaa/senadocs/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Моки ---

type mockChecker struct {
	status, message string
}

func (m mockChecker) CheckReady() (string, string) { return m.status, m.message }

type mockDeps map[string]bool

func (m mockDeps) Health() map[string]bool { return m }

type mockProposals struct {
	items map[int64]*model.Proposal
	err   error
}

func (m *mockProposals) Get(_ context.Context, id int64) (*model.Proposal, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.items[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	return p, nil
}

type mockSweeper struct {
	calls  int
	result *model.SweepResult
}

func (m *mockSweeper) RunOnce(context.Context) *model.SweepResult {
	m.calls++
	return m.result
}

// --- Health ---

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200", rec.Code)
	}
	var body healthLiveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Service != "senadocs" {
		t.Errorf("ответ = %+v", body)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		checker    ReadinessChecker
		deps       DependencyReporter
		wantCode   int
		wantStatus string
	}{
		{"хранилище доступно", mockChecker{"ok", "подключение активно"}, nil, http.StatusOK, "ok"},
		{"хранилище недоступно", mockChecker{"fail", "SQLite недоступен"}, nil, http.StatusServiceUnavailable, "fail"},
		{"не инициализирован", nil, nil, http.StatusServiceUnavailable, "fail"},
		{"зависимости в порядке", mockChecker{"ok", ""}, mockDeps{"postgresql": true, "s3-mirror": true}, http.StatusOK, "ok"},
		{"зеркало недоступно", mockChecker{"ok", ""}, mockDeps{"postgresql": true, "s3-mirror": false}, http.StatusOK, "degraded"},
		{"хранилище fail важнее", mockChecker{"fail", ""}, mockDeps{"s3-mirror": false}, http.StatusServiceUnavailable, "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checker, tt.deps)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("статус = %d, ожидался %d", rec.Code, tt.wantCode)
			}
			var body healthReadyResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, ожидался %q", body.Status, tt.wantStatus)
			}
		})
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"ok", "ok"}, "ok"},
		{[]string{"ok", "degraded"}, "degraded"},
		{[]string{"degraded", "fail"}, "fail"},
		{nil, "ok"},
	}
	for _, tt := range tests {
		if got := overallStatus(tt.in...); got != tt.want {
			t.Errorf("overallStatus(%v) = %q, ожидался %q", tt.in, got, tt.want)
		}
	}
}

// --- Proposals ---

func newProposalsRouter(m *mockProposals) http.Handler {
	h := NewProposalsHandler(m, testLogger())
	h.loc = time.UTC
	r := chi.NewRouter()
	r.Get("/api/proposta/{id}", h.GetProposal)
	return r
}

func TestGetProposal(t *testing.T) {
	created := time.Date(2026, time.February, 20, 15, 4, 0, 0, time.UTC)
	m := &mockProposals{items: map[int64]*model.Proposal{
		7: {
			ID:         7,
			ClientName: "Maria Silva",
			CreatedAt:  created,
			ExpiresAt:  created.Add(10 * 24 * time.Hour),
			Payload: map[string]string{
				model.FieldClient:    "Maria Silva",
				model.FieldCPF:       "123.456.789-00",
				model.FieldModel:     "Ricoh MP 301",
				model.FieldFranchise: "5000",
				model.FieldValue:     "350,00",
			},
		},
	}}

	rec := httptest.NewRecorder()
	newProposalsRouter(m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/proposta/7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200 (%s)", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}

	want := map[string]any{
		"id":          float64(7),
		"client_name": "Maria Silva",
		"criada":      "20/02/2026 15:04",
		"expira":      "02/03/2026 15:04",
		"cpf":         "123.456.789-00",
		"modelo":      "Ricoh MP 301",
		"franquia":    "5000",
		"valor":       "350,00",
	}
	for k, v := range want {
		if body[k] != v {
			t.Errorf("%s = %v, ожидалось %v", k, body[k], v)
		}
	}
	if len(body) != len(want) {
		t.Errorf("лишние ключи в ответе: %v", body)
	}
}

func TestGetProposal_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"не найдено", "/api/proposta/99", nil, http.StatusNotFound, "NOT_FOUND"},
		{"не число", "/api/proposta/abc", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"ноль", "/api/proposta/0", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"ошибка хранилища", "/api/proposta/1", errors.New("disk I/O error"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newProposalsRouter(&mockProposals{err: tt.err}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("статус = %d, ожидался %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantErr) {
				t.Errorf("тело %q не содержит %s", rec.Body.String(), tt.wantErr)
			}
			if strings.Contains(rec.Body.String(), "disk I/O") {
				t.Error("внутренняя ошибка не должна попадать в ответ")
			}
		})
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID("42"); err != nil || id != 42 {
		t.Errorf("ParseID(42) = %d, %v", id, err)
	}
	for _, s := range []string{"", "-1", "0", "1.5", "x"} {
		if _, err := ParseID(s); err == nil {
			t.Errorf("ParseID(%q) должен вернуть ошибку", s)
		}
	}
}

// --- Maintenance ---

func TestMaintenanceSweep(t *testing.T) {
	started := time.Date(2026, time.February, 20, 3, 0, 0, 0, time.UTC)
	m := &mockSweeper{result: &model.SweepResult{
		StartedAt:        started,
		RecordsRemoved:   3,
		TempFilesRemoved: 5,
		Duration:         1500 * time.Millisecond,
	}}
	h := NewMaintenanceHandler(m, testLogger())

	rec := httptest.NewRecorder()
	h.Sweep(rec, httptest.NewRequest(http.MethodPost, "/api/v1/maintenance/sweep", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200", rec.Code)
	}
	if m.calls != 1 {
		t.Errorf("RunOnce вызван %d раз, ожидался 1", m.calls)
	}

	var body sweepResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	want := sweepResponse{
		StartedAt:        "2026-02-20T03:00:00Z",
		RecordsRemoved:   3,
		TempFilesRemoved: 5,
		DurationMs:       1500,
	}
	if body != want {
		t.Errorf("ответ = %+v, ожидался %+v", body, want)
	}
}
