// proposals.go — JSON-представление предложения для окна просмотра в списке последних.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/senadocs/internal/api/errors"
	"github.com/bigkaa/senadocs/internal/domain/model"
	"github.com/bigkaa/senadocs/internal/service"
)

// displayLayout — формат дат в ответе (dd/mm/YYYY HH:MM).
const displayLayout = "02/01/2006 15:04"

// ProposalReader — чтение предложений (реализуется *service.ProposalService).
type ProposalReader interface {
	Get(ctx context.Context, id int64) (*model.Proposal, error)
}

// ProposalsHandler — обработчик GET /api/proposta/{id}.
type ProposalsHandler struct {
	proposals ProposalReader
	loc       *time.Location
	logger    *slog.Logger
}

// NewProposalsHandler создаёт обработчик. Даты выводятся в локальном часовом поясе.
func NewProposalsHandler(proposals ProposalReader, logger *slog.Logger) *ProposalsHandler {
	return &ProposalsHandler{
		proposals: proposals,
		loc:       time.Local,
		logger:    logger.With(slog.String("component", "api.proposals")),
	}
}

// proposalResponse — тело ответа.
type proposalResponse struct {
	ID         int64  `json:"id"`
	ClientName string `json:"client_name"`
	Criada     string `json:"criada"`
	Expira     string `json:"expira"`
	CPF        string `json:"cpf"`
	Modelo     string `json:"modelo"`
	Franquia   string `json:"franquia"`
	Valor      string `json:"valor"`
}

// GetProposal — GET /api/proposta/{id}.
func (h *ProposalsHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.ValidationError(w, "Identificador inválido")
		return
	}

	p, err := h.proposals.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, err.Error())
			return
		}
		h.logger.Error("Ошибка получения предложения",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Erro interno")
		return
	}

	writeJSON(w, http.StatusOK, proposalResponse{
		ID:         p.ID,
		ClientName: p.ClientName,
		Criada:     p.CreatedAt.In(h.loc).Format(displayLayout),
		Expira:     p.ExpiresAt.In(h.loc).Format(displayLayout),
		CPF:        p.Payload[model.FieldCPF],
		Modelo:     p.Payload[model.FieldModel],
		Franquia:   p.Payload[model.FieldFranchise],
		Valor:      p.Payload[model.FieldValue],
	})
}

// ParseID разбирает положительный целочисленный идентификатор из URL.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("идентификатор должен быть положительным")
	}
	return id, nil
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
