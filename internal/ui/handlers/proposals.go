// proposals.go — коммерческие предложения: форма, список последних,
// скачивание и удаление.
package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	apihandlers "github.com/bigkaa/senadocs/internal/api/handlers"
	"github.com/bigkaa/senadocs/internal/besteffort"
	"github.com/bigkaa/senadocs/internal/domain/model"
	"github.com/bigkaa/senadocs/internal/service"
	"github.com/bigkaa/senadocs/internal/storage/filestore"
	"github.com/bigkaa/senadocs/internal/ui/pages"
)

// ProposalService — операции с предложениями (реализуется *service.ProposalService).
type ProposalService interface {
	Create(ctx context.Context, payload map[string]string) (*model.Proposal, error)
	Get(ctx context.Context, id int64) (*model.Proposal, error)
	ListRecent(ctx context.Context, limit int) ([]*model.Proposal, error)
	Generate(ctx context.Context, p *model.Proposal, imagePath string) error
	Delete(ctx context.Context, id int64) error
	PDFPath(ctx context.Context, id int64) (string, error)
}

// UploadStore — приём загруженных изображений (реализуется *filestore.FileStore).
type UploadStore interface {
	SaveUpload(reader io.Reader, originalFilename string) (*filestore.SaveResult, error)
}

// ProposalsHandler — обработчики страниц предложений.
type ProposalsHandler struct {
	proposals ProposalService
	uploads   UploadStore
	loc       *time.Location
	logger    *slog.Logger
}

// NewProposalsHandler создаёт обработчик страниц предложений.
func NewProposalsHandler(proposals ProposalService, uploads UploadStore, logger *slog.Logger) *ProposalsHandler {
	return &ProposalsHandler{
		proposals: proposals,
		uploads:   uploads,
		loc:       time.Local,
		logger:    logger.With(slog.String("component", "ui.proposals")),
	}
}

// HandleForm — GET /proposta.
func (h *ProposalsHandler) HandleForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, pages.ProposalForm(pages.FormData{
		Username: username(r),
		Action:   "/proposta",
		BackURL:  "/",
	}), h.logger)
}

// HandleSubmit — POST /proposta.
// Сохраняет изображение, создаёт запись, формирует PDF и перенаправляет на /recentes.
func (h *ProposalsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.fail(w, r, pages.FormData{Username: username(r), Action: "/proposta", BackURL: "/"},
			"Formulário inválido ou imagem grande demais.", http.StatusBadRequest)
		return
	}

	sub := readForm(r, proposalFields, false)
	sub.form.BackURL = "/"

	// 1. Изображение оборудования
	file, header, err := r.FormFile("imagem")
	if err != nil {
		h.fail(w, r, sub.form, "Envie a imagem do equipamento.", http.StatusBadRequest)
		return
	}
	saved, err := h.uploads.SaveUpload(file, header.Filename)
	file.Close()
	if err != nil {
		msg, status := formFailure(err, h.logger)
		h.fail(w, r, sub.form, msg, status)
		return
	}

	// 2. Запись (поля проверяются до сохранения)
	p, err := h.proposals.Create(r.Context(), sub.fields)
	if err != nil {
		besteffort.Remove(h.logger, saved.FullPath)
		msg, status := formFailure(err, h.logger)
		h.fail(w, r, sub.form, msg, status)
		return
	}

	// 3. PDF (изображение удаляется сервисом)
	if err := h.proposals.Generate(r.Context(), p, saved.FullPath); err != nil {
		msg, status := formFailure(err, h.logger, slog.Int64("id", p.ID))
		h.fail(w, r, sub.form, msg, status)
		return
	}

	http.Redirect(w, r, "/recentes", http.StatusSeeOther)
}

// HandleRecent — GET /recentes.
func (h *ProposalsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	items, err := h.proposals.ListRecent(r.Context(), service.DefaultRecentLimit)
	if err != nil {
		h.logger.Error("Ошибка получения списка предложений", slog.String("error", err.Error()))
		http.Error(w, "Erro ao carregar propostas.", http.StatusInternalServerError)
		return
	}

	data := pages.RecentData{Username: username(r), Items: make([]pages.RecentItem, 0, len(items))}
	for _, p := range items {
		data.Items = append(data.Items, pages.RecentItem{
			ID:         p.ID,
			ClientName: p.ClientName,
			CreatedAt:  p.CreatedAt.In(h.loc).Format(displayLayout),
			ExpiresAt:  p.ExpiresAt.In(h.loc).Format(displayLayout),
			HasPDF:     p.HasPDF(),
		})
	}
	renderPage(w, r, http.StatusOK, pages.Recent(data), h.logger)
}

// HandleDownload — GET /proposta/{id}/baixar.
func (h *ProposalsHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := apihandlers.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	path, err := h.proposals.PDFPath(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			http.Error(w, "PDF não encontrado.", http.StatusNotFound)
			return
		}
		h.logger.Error("Ошибка получения PDF", slog.Int64("id", id), slog.String("error", err.Error()))
		http.Error(w, "Erro interno", http.StatusInternalServerError)
		return
	}

	if err := sendAttachment(w, r, path, filepath.Base(path)); err != nil {
		h.logger.Error("Ошибка отправки PDF", slog.Int64("id", id), slog.String("error", err.Error()))
		http.Error(w, "PDF não encontrado.", http.StatusNotFound)
	}
}

// HandleDelete — POST /proposta/{id}/excluir.
func (h *ProposalsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := apihandlers.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := h.proposals.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			http.Error(w, "Proposta não encontrada.", http.StatusNotFound)
			return
		}
		h.logger.Error("Ошибка удаления предложения", slog.Int64("id", id), slog.String("error", err.Error()))
		http.Error(w, "Erro interno", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Предложение удалено сотрудником",
		slog.Int64("id", id),
		slog.String("username", username(r)),
	)
	http.Redirect(w, r, "/recentes", http.StatusSeeOther)
}

func (h *ProposalsHandler) fail(w http.ResponseWriter, r *http.Request, form pages.FormData, msg string, status int) {
	form.Error = msg
	renderPage(w, r, status, pages.ProposalForm(form), h.logger)
}
