// documents.go — разовые документы: контракт (вручную и по предложению),
// промиссория, акт выдачи. Результат отдаётся как вложение; сам файл
// остаётся во временном подкаталоге до очистки по возрасту.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	apihandlers "github.com/bigkaa/senadocs/internal/api/handlers"
	"github.com/bigkaa/senadocs/internal/besteffort"
	"github.com/bigkaa/senadocs/internal/config"
	"github.com/bigkaa/senadocs/internal/domain/model"
	"github.com/bigkaa/senadocs/internal/storage/filestore"
	"github.com/bigkaa/senadocs/internal/ui/pages"
)

// DocumentGenerator формирует документ во временном подкаталоге
// (реализуется *service.DocumentService).
type DocumentGenerator interface {
	GenerateTemp(ctx context.Context, kind string, fields map[string]string, imagePath string) (string, error)
}

// ProposalGetter — чтение предложения для предзаполнения контракта.
type ProposalGetter interface {
	Get(ctx context.Context, id int64) (*model.Proposal, error)
}

// DocumentsHandler — обработчики форм разовых документов.
type DocumentsHandler struct {
	docs      DocumentGenerator
	proposals ProposalGetter
	uploads   UploadStore
	logger    *slog.Logger
}

// NewDocumentsHandler создаёт обработчик форм документов.
func NewDocumentsHandler(docs DocumentGenerator, proposals ProposalGetter, uploads UploadStore, logger *slog.Logger) *DocumentsHandler {
	return &DocumentsHandler{
		docs:      docs,
		proposals: proposals,
		uploads:   uploads,
		logger:    logger.With(slog.String("component", "ui.documents")),
	}
}

// HandleContractForm — GET /contrato.
func (h *DocumentsHandler) HandleContractForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, pages.ContractForm(pages.FormData{
		Username: username(r),
		Action:   "/contrato",
		BackURL:  "/",
	}), h.logger)
}

// HandleContract — POST /contrato.
func (h *DocumentsHandler) HandleContract(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Requisição inválida.", http.StatusBadRequest)
		return
	}
	sub := readForm(r, contractFields, true)
	sub.form.BackURL = "/"
	h.generate(w, r, config.KindContract, sub, "", pages.ContractForm,
		downloadName("CONTRATO", sub.fields["DENOMINACAO"]))
}

// HandleContractFromProposalForm — GET /contrato/{id}. Форма предзаполнена
// данными предложения.
func (h *DocumentsHandler) HandleContractFromProposalForm(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProposal(w, r)
	if !ok {
		return
	}
	renderPage(w, r, http.StatusOK, pages.ContractForm(pages.FormData{
		Username: username(r),
		Action:   r.URL.Path,
		BackURL:  "/recentes",
		Values: map[string]string{
			"denominacao":  p.Payload[model.FieldClient],
			"cpf_cnpj":     p.Payload[model.FieldCPF],
			"equipamento":  p.Payload[model.FieldModel],
			"franquia":     p.Payload[model.FieldFranchise],
			"valor_mensal": p.Payload[model.FieldValue],
		},
	}), h.logger)
}

// HandleContractFromProposal — POST /contrato/{id}.
func (h *DocumentsHandler) HandleContractFromProposal(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadProposal(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Requisição inválida.", http.StatusBadRequest)
		return
	}
	sub := readForm(r, contractFields, true)
	sub.form.BackURL = "/recentes"
	name := fmt.Sprintf("CONTRATO - %s - #%d.pdf", filestore.SafeName(p.ClientName), p.ID)
	h.generate(w, r, config.KindContract, sub, "", pages.ContractForm, name)
}

// HandlePromissoryForm — GET /promissoria.
func (h *DocumentsHandler) HandlePromissoryForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, pages.PromissoryForm(pages.FormData{
		Username: username(r),
		Action:   "/promissoria",
		BackURL:  "/",
	}), h.logger)
}

// HandlePromissory — POST /promissoria. Требует копию документа (imagem_rg).
func (h *DocumentsHandler) HandlePromissory(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.fail(w, r, pages.PromissoryForm, pages.FormData{Username: username(r), Action: "/promissoria", BackURL: "/"},
			"Formulário inválido ou imagem grande demais.", http.StatusBadRequest)
		return
	}
	sub := readForm(r, promissoryFields, false)
	sub.form.BackURL = "/"

	file, header, err := r.FormFile("imagem_rg")
	if err != nil {
		h.fail(w, r, pages.PromissoryForm, sub.form, "Envie a imagem do RG/CPF.", http.StatusBadRequest)
		return
	}
	saved, err := h.uploads.SaveUpload(file, header.Filename)
	file.Close()
	if err != nil {
		msg, status := formFailure(err, h.logger)
		h.fail(w, r, pages.PromissoryForm, sub.form, msg, status)
		return
	}
	defer besteffort.Remove(h.logger, saved.FullPath)

	h.generate(w, r, config.KindPromissory, sub, saved.FullPath, pages.PromissoryForm,
		downloadName("PROMISSORIA", sub.fields["NOME"]))
}

// HandleReceiptForm — GET /termo.
func (h *DocumentsHandler) HandleReceiptForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, pages.ReceiptForm(pages.FormData{
		Username: username(r),
		Action:   "/termo",
		BackURL:  "/",
	}), h.logger)
}

// HandleReceipt — POST /termo.
func (h *DocumentsHandler) HandleReceipt(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Requisição inválida.", http.StatusBadRequest)
		return
	}
	sub := readForm(r, receiptFields, true)
	sub.form.BackURL = "/"
	h.generate(w, r, config.KindReceipt, sub, "", pages.ReceiptForm,
		downloadName("TERMO", sub.fields["NOME"]))
}

// formPage — конструктор страницы формы.
type formPage func(pages.FormData) templ.Component

// generate формирует документ и отдаёт его; при ошибке форма выводится
// повторно с сообщением и введёнными значениями.
func (h *DocumentsHandler) generate(
	w http.ResponseWriter,
	r *http.Request,
	kind string,
	sub submission,
	imagePath string,
	page formPage,
	name string,
) {
	path, err := h.docs.GenerateTemp(r.Context(), kind, sub.fields, imagePath)
	if err != nil {
		msg, status := formFailure(err, h.logger, slog.String("kind", kind))
		h.fail(w, r, page, sub.form, msg, status)
		return
	}

	if err := sendAttachment(w, r, path, name); err != nil {
		h.logger.Error("Ошибка отправки документа",
			slog.String("kind", kind),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Erro interno", http.StatusInternalServerError)
	}
}

// loadProposal читает предложение по {id}; при ошибке ответ уже отправлен.
func (h *DocumentsHandler) loadProposal(w http.ResponseWriter, r *http.Request) (*model.Proposal, bool) {
	id, err := apihandlers.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	p, err := h.proposals.Get(r.Context(), id)
	if err != nil {
		msg, status := formFailure(err, h.logger, slog.Int64("id", id))
		http.Error(w, msg, status)
		return nil, false
	}
	return p, true
}

func (h *DocumentsHandler) fail(w http.ResponseWriter, r *http.Request, page formPage, form pages.FormData, msg string, status int) {
	form.Error = msg
	renderPage(w, r, status, page(form), h.logger)
}

// downloadName — имя вложения: "PREFIXO - nome.pdf".
func downloadName(prefix, name string) string {
	return prefix + " - " + filestore.SafeName(name) + ".pdf"
}
